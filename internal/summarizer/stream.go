package summarizer

import (
	"context"

	"github.com/bugmaker2/Inspector/internal/model"
)

// Progress event types.
const (
	EventStart            = "start"
	EventProgress         = "progress"
	EventLanguageStart    = "language_start"
	EventChunk            = "chunk"
	EventLanguageComplete = "language_complete"
	EventComplete         = "complete"
	EventError            = "error"
)

// Progress stages.
const (
	StageCollecting      = "collecting"
	StageActivitiesFound = "activities_found"
	StageSaving          = "saving"
)

var (
	languageStartProgress    = map[string]int{LanguageZH: 30, LanguageEN: 70}
	languageCompleteProgress = map[string]int{LanguageZH: 60, LanguageEN: 90}
)

// ProgressEvent is one step of a streamed summary.
type ProgressEvent struct {
	Type          string         `json:"type"`
	Stage         string         `json:"stage,omitempty"`
	Progress      int            `json:"progress,omitempty"`
	Message       string         `json:"message,omitempty"`
	Language      string         `json:"language,omitempty"`
	Content       string         `json:"content,omitempty"`
	ActivityCount int            `json:"activity_count,omitempty"`
	Summary       *model.Summary `json:"summary,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func errorEvent(err error) ProgressEvent {
	return ProgressEvent{Type: EventError, Message: "总结生成失败", Error: err.Error()}
}

// StreamSummary runs req and reports every step through emit, including the
// text chunks of each language as they arrive. Languages run one after the
// other. The returned summary and error match Generate.
func (g *Generator) StreamSummary(ctx context.Context, req Request, emit func(ProgressEvent)) (*model.Summary, error) {
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	return g.run(ctx, req, emit)
}
