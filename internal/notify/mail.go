package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/model"
)

const maxSendAttempts = 3

// Sender transmits a raw RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, raw []byte) error
}

// SentMarker records that a summary was delivered.
type SentMarker interface {
	MarkSummarySent(ctx context.Context, id uint, sentAt time.Time) error
}

// GmailSender sends messages through the Gmail API
type GmailSender struct {
	service   *gmail.Service
	userEmail string
}

// NewGmailSender creates a Gmail API client from a stored refresh token
func NewGmailSender(ctx context.Context, cfg config.GmailConfig) (*GmailSender, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	userEmail := cfg.UserEmail
	if userEmail == "" {
		userEmail = "me"
	}
	return &GmailSender{service: service, userEmail: userEmail}, nil
}

func (g *GmailSender) Send(ctx context.Context, raw []byte) error {
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	_, err := g.service.Users.Messages.Send(g.userEmail, message).Context(ctx).Do()
	return err
}

// MailSink emails generated summaries to a fixed recipient list.
type MailSink struct {
	sender     Sender
	from       string
	recipients []string
	marker     SentMarker
	backoff    func(attempt int) time.Duration
}

func NewMailSink(sender Sender, from string, recipients []string, marker SentMarker) *MailSink {
	return &MailSink{
		sender:     sender,
		from:       from,
		recipients: recipients,
		marker:     marker,
		backoff:    func(attempt int) time.Duration { return time.Duration(attempt*attempt) * time.Second },
	}
}

func (s *MailSink) Name() string { return "mail" }

func (s *MailSink) Deliver(ctx context.Context, ev Event) error {
	if ev.Type != EventSummaryGenerated || ev.Summary == nil {
		return nil
	}

	raw, err := s.buildMessage(ev.Summary)
	if err != nil {
		return fmt.Errorf("failed to build summary email: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		lastErr = s.sender.Send(ctx, raw)
		if lastErr == nil {
			break
		}
		logrus.Warnf("Failed to send summary %d (attempt %d/%d): %v", ev.Summary.ID, attempt, maxSendAttempts, lastErr)

		// Only quota errors are worth retrying.
		msg := lastErr.Error()
		if !strings.Contains(msg, "quota") && !strings.Contains(msg, "rate") {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to send summary %d: %w", ev.Summary.ID, lastErr)
	}

	logrus.Infof("Sent summary %d to %d recipients", ev.Summary.ID, len(s.recipients))
	if s.marker != nil {
		if err := s.marker.MarkSummarySent(ctx, ev.Summary.ID, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func (s *MailSink) buildMessage(summary *model.Summary) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(summary.Title)
	h.SetAddressList("From", []*mail.Address{{Address: s.from}})
	to := make([]*mail.Address, 0, len(s.recipients))
	for _, r := range s.recipients {
		to = append(to, &mail.Address{Address: r})
	}
	h.SetAddressList("To", to)
	h.Set("X-Inspector-Summary-ID", fmt.Sprintf("%d", summary.ID))

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	if err := writeTextPart(mw, summary.Content); err != nil {
		return nil, err
	}
	if summary.ContentEn != nil {
		if err := writeTextPart(mw, *summary.ContentEn); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTextPart(mw *mail.Writer, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := mw.CreateSingleInline(ih)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}
