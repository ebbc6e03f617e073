package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
)

// SlackSink posts events to an incoming webhook.
type SlackSink struct {
	webhookURL string
}

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Deliver(ctx context.Context, ev Event) error {
	color := "#36a64f"
	switch ev.Level {
	case "error":
		color = "#d00000"
	case "info":
		color = "#439fe0"
	}

	msg := &slack.WebhookMessage{
		Text: ev.Title,
		Attachments: []slack.Attachment{{
			Color:  color,
			Text:   ev.Message,
			Footer: string(ev.Type),
			Ts:     json.Number(strconv.FormatInt(ev.CreatedAt.Unix(), 10)),
		}},
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	return nil
}
