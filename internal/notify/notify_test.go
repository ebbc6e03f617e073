package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
)

func TestRingKeepsNewestEvents(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Notify(context.Background(), Event{ID: fmt.Sprintf("ev-%d", i)})
	}

	assert.Equal(t, 3, r.Len())
	var ids []string
	for _, ev := range r.List(0, false) {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"ev-4", "ev-3", "ev-2"}, ids)

	assert.Len(t, r.List(2, false), 2)
	assert.True(t, r.MarkRead("ev-3"))
	assert.False(t, r.MarkRead("ev-0"))

	unread := r.List(0, true)
	require.Len(t, unread, 2)
	assert.Equal(t, "ev-4", unread[0].ID)
	assert.Equal(t, "ev-2", unread[1].ID)
}

func TestEventConstructors(t *testing.T) {
	profile := &model.SocialProfile{ID: 7, MemberID: 3}
	ev := NewActivityEvent("github", profile, []model.Activity{{ID: 1}, {ID: 2}})
	assert.Equal(t, EventNewActivity, ev.Type)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, []uint{1, 2}, ev.Data["activity_ids"])

	errEv := MonitoringErrorEvent("linkedin", 7, errors.New("timeout"))
	assert.Equal(t, "error", errEv.Level)
	assert.Contains(t, errEv.Message, "timeout")

	s := &model.Summary{ID: 9, SummaryType: model.SummaryDaily}
	sumEv := SummaryGeneratedEvent(s)
	assert.Same(t, s, sumEv.Summary)

	raw, err := json.Marshal(sumEv)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\"summary\":")
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	Multi{a, b, Nop{}, LogSink{}}.Notify(context.Background(), Event{ID: "x"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

type failingDeliverer struct{ calls int }

func (f *failingDeliverer) Name() string { return "broken" }
func (f *failingDeliverer) Deliver(context.Context, Event) error {
	f.calls++
	return errors.New("unreachable")
}

func TestAsyncCountsFailures(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	d := &failingDeliverer{}
	a := NewAsync(d, time.Second, m)

	a.Notify(context.Background(), Event{ID: "x"})
	a.Wait()

	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("broken")))
}

func TestSlackSinkPostsWebhook(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewSlackSink(srv.URL).Deliver(context.Background(), MonitoringErrorEvent("github", 1, errors.New("boom")))
	require.NoError(t, err)
	assert.Equal(t, "监控错误", body["text"])
}

type fakeSender struct {
	errs []error
	sent [][]byte
}

func (f *fakeSender) Send(_ context.Context, raw []byte) error {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, raw)
	return nil
}

type fakeMarker struct{ ids []uint }

func (f *fakeMarker) MarkSummarySent(_ context.Context, id uint, _ time.Time) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestMailSinkSendsBilingualSummary(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("userRateLimitExceeded: rate limit")}}
	marker := &fakeMarker{}
	sink := NewMailSink(sender, "bot@example.com", []string{"team@example.com"}, marker)
	sink.backoff = func(int) time.Duration { return time.Millisecond }

	en := "English body"
	summary := &model.Summary{ID: 5, Title: "Daily Activity Summary - 2024-05-01", Content: "中文内容", ContentEn: &en, SummaryType: model.SummaryDaily}
	require.NoError(t, sink.Deliver(context.Background(), SummaryGeneratedEvent(summary)))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []uint{5}, marker.ids)

	r, err := mail.CreateReader(strings.NewReader(string(sender.sent[0])))
	require.NoError(t, err)
	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, summary.Title, subject)

	var bodies []string
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"中文内容", "English body"}, bodies)
}

func TestMailSinkIgnoresOtherEventsAndStopsOnHardErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("invalid recipient")}}
	marker := &fakeMarker{}
	sink := NewMailSink(sender, "bot@example.com", []string{"team@example.com"}, marker)

	require.NoError(t, sink.Deliver(context.Background(), MonitoringErrorEvent("github", 1, errors.New("x"))))
	assert.Empty(t, sender.sent)

	err := sink.Deliver(context.Background(), SummaryGeneratedEvent(&model.Summary{ID: 1, Title: "t", Content: "c"}))
	assert.Error(t, err)
	assert.Empty(t, marker.ids)
}

func TestAsyncWithoutMetrics(t *testing.T) {
	d := &failingDeliverer{}
	a := NewAsync(d, time.Second, nil)

	assert.NotPanics(t, func() {
		a.Notify(context.Background(), Event{ID: "x"})
		a.Wait()
	})
	assert.Equal(t, 1, d.calls)
}
