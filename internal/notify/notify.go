package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/model"
)

type EventType string

const (
	EventNewActivity      EventType = "new_activity"
	EventSummaryGenerated EventType = "summary_generated"
	EventMonitoringError  EventType = "monitoring_error"
)

// Event is a one-way notification emitted by the monitors and the summarizer.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Level     string                 `json:"level"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Read      bool                   `json:"read"`

	// Summary is set on summary_generated events for sinks that deliver it.
	Summary *model.Summary `json:"-"`
}

// Sink receives events. Notify must not block on delivery and never reports
// failures to the caller.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

func newEvent(t EventType, level, title, message string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Level:     level,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// NewActivityEvent reports a batch of activities stored for one profile.
func NewActivityEvent(platform string, profile *model.SocialProfile, activities []model.Activity) Event {
	ids := make([]uint, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	return newEvent(EventNewActivity, "info", "新活动",
		fmt.Sprintf("成员 %d 在 %s 发布了 %d 条新内容", profile.MemberID, platform, len(activities)),
		map[string]interface{}{
			"member_id":    profile.MemberID,
			"profile_id":   profile.ID,
			"platform":     platform,
			"activity_ids": ids,
		})
}

// SummaryGeneratedEvent reports a persisted summary.
func SummaryGeneratedEvent(summary *model.Summary) Event {
	ev := newEvent(EventSummaryGenerated, "success", "总结生成完成",
		fmt.Sprintf("%s 总结已生成完成", summary.SummaryType),
		map[string]interface{}{
			"summary_id":   summary.ID,
			"summary_type": summary.SummaryType,
			"title":        summary.Title,
		})
	ev.Summary = summary
	return ev
}

// MonitoringErrorEvent reports a failed fetch or a rolled back profile batch.
func MonitoringErrorEvent(platform string, profileID uint, err error) Event {
	return newEvent(EventMonitoringError, "error", "监控错误",
		fmt.Sprintf("%s 平台监控出现错误: %v", platform, err),
		map[string]interface{}{
			"platform":   platform,
			"profile_id": profileID,
			"error":      err.Error(),
		})
}

// LogSink writes every event as a structured log line.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, ev Event) {
	entry := logrus.WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"data":       ev.Data,
	})
	if ev.Type == EventMonitoringError {
		entry.Warn(ev.Message)
		return
	}
	entry.Info(ev.Message)
}
