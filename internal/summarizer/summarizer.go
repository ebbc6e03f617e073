// Package summarizer turns stored activities into bilingual LLM summaries.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/llm"
	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository"
)

var (
	// ErrUnavailable means no language provider is configured.
	ErrUnavailable = errors.New("summarization unavailable")
	// ErrNoActivities means the window is empty and no summary was created.
	ErrNoActivities = errors.New("no activities in range")
	// ErrGenerationFailed means a language call failed. Nothing was persisted.
	ErrGenerationFailed = errors.New("summary generation failed")
	// ErrMemberNotFound means a member summary was requested for an unknown member.
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidWindow means the requested window is empty or reversed.
	ErrInvalidWindow = errors.New("invalid summary window")
)

const defaultMemberDays = 7

// Options tunes a Generator.
type Options struct {
	// MaxTokens defaults to 2000. Temperature is passed through as is, zero
	// included.
	MaxTokens   int
	Temperature float32
	// Now defaults to time.Now.
	Now func() time.Time
	// Location is used to compute day and week boundaries. Defaults to UTC.
	Location *time.Location
}

// Request selects the kind of summary and its window. Zero values take the
// defaults of the matching Generate method.
type Request struct {
	Type     string
	Date     time.Time
	Start    time.Time
	End      time.Time
	MemberID uint
	Days     int
	Title    string
}

// Generator produces and persists bilingual summaries.
type Generator struct {
	store    repository.Store
	provider llm.Provider
	sink     notify.Sink
	metrics  *metrics.Metrics
	opts     Options
}

// New returns a Generator. A nil provider makes every generation fail with
// ErrUnavailable.
func New(store repository.Store, provider llm.Provider, sink notify.Sink, mtr *metrics.Metrics, opts Options) *Generator {
	if sink == nil {
		sink = notify.Nop{}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Generator{store: store, provider: provider, sink: sink, metrics: metrics.OrDiscard(mtr), opts: opts}
}

// CanSummarize reports whether a language provider is configured.
func (g *Generator) CanSummarize() bool {
	return g.provider != nil
}

// GenerateDaily summarizes the calendar day of date, today when zero.
func (g *Generator) GenerateDaily(ctx context.Context, date time.Time) (*model.Summary, error) {
	return g.Generate(ctx, Request{Type: model.SummaryDaily, Date: date})
}

// GenerateWeekly summarizes the seven days starting on weekStart's calendar
// day. A zero weekStart selects the current Monday-start week.
func (g *Generator) GenerateWeekly(ctx context.Context, weekStart time.Time) (*model.Summary, error) {
	return g.Generate(ctx, Request{Type: model.SummaryWeekly, Date: weekStart})
}

// GenerateMember summarizes one member. end defaults to now, start to
// end minus days, days to 7.
func (g *Generator) GenerateMember(ctx context.Context, memberID uint, start, end time.Time, days int) (*model.Summary, error) {
	return g.Generate(ctx, Request{Type: model.SummaryMember, MemberID: memberID, Start: start, End: end, Days: days})
}

// GenerateCustom summarizes exactly [start, end].
func (g *Generator) GenerateCustom(ctx context.Context, start, end time.Time, title string) (*model.Summary, error) {
	return g.Generate(ctx, Request{Type: model.SummaryCustom, Start: start, End: end, Title: title})
}

// Generate runs a summary without progress reporting.
func (g *Generator) Generate(ctx context.Context, req Request) (*model.Summary, error) {
	return g.run(ctx, req, nil)
}

// plan is a resolved Request.
type plan struct {
	summaryType string
	start, end  time.Time
	title       string
	memberID    *uint
}

func (g *Generator) resolve(ctx context.Context, req Request) (plan, error) {
	loc := g.opts.Location
	now := g.opts.Now().In(loc)

	switch req.Type {
	case model.SummaryDaily:
		date := req.Date
		if date.IsZero() {
			date = now
		}
		start, end := DayWindow(date, loc)
		return plan{
			summaryType: model.SummaryDaily,
			start:       start,
			end:         end,
			title:       fmt.Sprintf("Daily Activity Summary - %s", start.Format(dateLayout)),
		}, nil

	case model.SummaryWeekly:
		var start, end time.Time
		if req.Date.IsZero() {
			start, end = WeekWindow(now, loc)
		} else {
			start, _ = DayWindow(req.Date, loc)
			end = start.AddDate(0, 0, 6).Add(endOfDay)
		}
		return plan{
			summaryType: model.SummaryWeekly,
			start:       start,
			end:         end,
			title:       fmt.Sprintf("Weekly Activity Summary - %s to %s", start.Format(dateLayout), end.Format(dateLayout)),
		}, nil

	case model.SummaryMember:
		member, err := g.store.GetMember(ctx, req.MemberID)
		if err != nil {
			return plan{}, fmt.Errorf("failed to load member %d: %w", req.MemberID, err)
		}
		if member == nil {
			return plan{}, ErrMemberNotFound
		}
		days := req.Days
		if days <= 0 {
			days = defaultMemberDays
		}
		end := req.End
		if end.IsZero() {
			end = now
		}
		start := req.Start
		if start.IsZero() {
			start = end.AddDate(0, 0, -days)
		}
		if end.Before(start) {
			return plan{}, ErrInvalidWindow
		}
		id := member.ID
		return plan{
			summaryType: model.SummaryMember,
			start:       start.In(loc),
			end:         end.In(loc),
			title:       fmt.Sprintf("Member Activity Summary - %s - %s to %s", member.Name, start.In(loc).Format(dateLayout), end.In(loc).Format(dateLayout)),
			memberID:    &id,
		}, nil

	case model.SummaryCustom:
		if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
			return plan{}, ErrInvalidWindow
		}
		start, end := req.Start.In(loc), req.End.In(loc)
		title := req.Title
		if title == "" {
			title = fmt.Sprintf("Custom Activity Summary - %s to %s", start.Format(dateLayout), end.Format(dateLayout))
		}
		return plan{summaryType: model.SummaryCustom, start: start, end: end, title: title}, nil
	}
	return plan{}, fmt.Errorf("unknown summary type %q", req.Type)
}

// run is shared by the buffered and streaming paths. emit is nil for the
// buffered path.
func (g *Generator) run(ctx context.Context, req Request, emit func(ProgressEvent)) (*model.Summary, error) {
	streaming := emit != nil
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	started := time.Now()

	fail := func(p plan, result string, err error) (*model.Summary, error) {
		if p.summaryType != "" {
			g.metrics.SummaryGenerations.WithLabelValues(p.summaryType, result).Inc()
		}
		emit(errorEvent(err))
		return nil, err
	}

	if !g.CanSummarize() {
		g.metrics.SummaryGenerations.WithLabelValues(req.Type, "unavailable").Inc()
		emit(errorEvent(ErrUnavailable))
		return nil, ErrUnavailable
	}

	p, err := g.resolve(ctx, req)
	if err != nil {
		return fail(plan{}, "failed", err)
	}
	log := logrus.WithFields(logrus.Fields{
		"summary_type": p.summaryType,
		"start":        p.start.Format(time.RFC3339),
		"end":          p.end.Format(time.RFC3339),
	})

	emit(ProgressEvent{Type: EventStart, Progress: 10, Message: "开始生成总结"})
	emit(ProgressEvent{Type: EventProgress, Stage: StageCollecting, Progress: 20, Message: "正在收集活动数据"})

	activities, err := g.store.ListActivitiesInRange(ctx, repository.ActivityQuery{Start: p.start, End: p.end, MemberID: p.memberID})
	if err != nil {
		return fail(p, "failed", fmt.Errorf("failed to load activities: %w", err))
	}
	if len(activities) == 0 {
		log.Info("No activities in range, skipping summary")
		return fail(p, "empty", ErrNoActivities)
	}
	emit(ProgressEvent{
		Type:          EventProgress,
		Stage:         StageActivitiesFound,
		Progress:      30,
		ActivityCount: len(activities),
		Message:       fmt.Sprintf("找到 %d 条活动记录", len(activities)),
	})

	groups, err := groupByMember(ctx, g.store, activities)
	if err != nil {
		return fail(p, "failed", err)
	}

	texts := make(map[string]string, len(languages))
	for _, lang := range languages {
		emit(ProgressEvent{Type: EventLanguageStart, Language: lang, Progress: languageStartProgress[lang]})

		system, user := buildPrompt(lang, p.summaryType, p.start, p.end, groups)
		llmReq := llm.Request{System: system, User: user, MaxTokens: g.opts.MaxTokens, Temperature: g.opts.Temperature}

		var text string
		if streaming {
			lang := lang
			text, err = g.provider.CompleteStream(ctx, llmReq, func(chunk string) {
				emit(ProgressEvent{Type: EventChunk, Language: lang, Content: chunk})
			})
		} else {
			text, err = g.provider.Complete(ctx, llmReq)
		}
		if err != nil {
			g.metrics.LLMCalls.WithLabelValues(g.provider.Name(), lang, "failed").Inc()
			log.WithField("language", lang).Errorf("Language generation failed: %v", err)
			return fail(p, "failed", fmt.Errorf("%w: %s: %v", ErrGenerationFailed, lang, err))
		}
		g.metrics.LLMCalls.WithLabelValues(g.provider.Name(), lang, "success").Inc()
		texts[lang] = text

		emit(ProgressEvent{Type: EventLanguageComplete, Language: lang, Progress: languageCompleteProgress[lang]})
	}

	emit(ProgressEvent{Type: EventProgress, Stage: StageSaving, Progress: 95, Message: "正在保存总结"})

	english := texts[LanguageEN]
	summary := &model.Summary{
		Title:         p.title,
		Content:       texts[LanguageZH],
		ContentEn:     &english,
		SummaryType:   p.summaryType,
		StartDate:     p.start.UTC(),
		EndDate:       p.end.UTC(),
		MemberCount:   distinctMembers(activities),
		ActivityCount: len(activities),
	}
	if err := g.store.CreateSummary(ctx, summary); err != nil {
		return fail(p, "failed", fmt.Errorf("failed to save summary: %w", err))
	}

	g.metrics.SummaryGenerations.WithLabelValues(p.summaryType, "success").Inc()
	g.metrics.SummaryDuration.Observe(time.Since(started).Seconds())
	log.WithFields(logrus.Fields{
		"summary_id":     summary.ID,
		"activity_count": summary.ActivityCount,
		"member_count":   summary.MemberCount,
	}).Info("Summary generated")

	g.sink.Notify(ctx, notify.SummaryGeneratedEvent(summary))
	emit(ProgressEvent{Type: EventComplete, Progress: 100, Message: "总结生成完成", Summary: summary})
	return summary, nil
}
