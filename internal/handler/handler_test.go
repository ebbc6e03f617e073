package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/llm"
	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/monitor"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository/repotest"
	"github.com/bugmaker2/Inspector/internal/scheduler"
	"github.com/bugmaker2/Inspector/internal/summarizer"
)

type stubMonitor struct{}

func (stubMonitor) PlatformName() string { return "github" }

func (stubMonitor) CanHandle(p *model.SocialProfile) bool { return p.Platform == "github" }

func (stubMonitor) FetchRawActivities(ctx context.Context, p *model.SocialProfile) ([]monitor.RawEvent, error) {
	return []monitor.RawEvent{{Platform: "github", Data: fmt.Sprintf("%d-1", p.ID)}}, nil
}

func (stubMonitor) ParseActivity(raw monitor.RawEvent) (monitor.NormalizedActivity, error) {
	id := raw.Data.(string)
	return monitor.NormalizedActivity{ActivityType: "push", Title: "push " + id, ExternalID: "github_" + id}, nil
}

type stubProvider struct {
	err error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) reply(req llm.Request) string {
	if strings.Contains(req.System, "简体中文") {
		return "中文总结"
	}
	return "English summary"
}

func (p *stubProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.reply(req), nil
}

func (p *stubProvider) CompleteStream(ctx context.Context, req llm.Request, onChunk func(string)) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	text := p.reply(req)
	onChunk(text)
	return text, nil
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *repotest.Store
	ring     *notify.Ring
	provider *stubProvider
	router   *gin.Engine
	sched    *scheduler.Scheduler
	alice    *model.Member
}

func newTestEnv(t *testing.T, withProvider bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{store: repotest.New(), ring: notify.NewRing(10), provider: &stubProvider{}}
	mtr := metrics.NewMetrics(prometheus.NewRegistry())

	var provider llm.Provider
	if withProvider {
		provider = env.provider
	}
	manager := monitor.NewManager(env.store, env.ring, mtr, monitor.Options{StaleAfter: time.Hour}, stubMonitor{})
	generator := summarizer.New(env.store, provider, env.ring, mtr, summarizer.Options{Now: func() time.Time { return testNow }})
	env.sched = scheduler.New(config.MonitoringConfig{IntervalMinutes: 60}, config.SummaryConfig{Time: "09:00"}, manager, generator, time.UTC)
	t.Cleanup(func() { env.sched.Stop() })

	env.alice = env.store.AddMember(model.Member{Name: "Alice", Email: "alice@example.com", Position: "Engineer", IsActive: true})
	env.store.AddProfile(model.SocialProfile{MemberID: env.alice.ID, Platform: "github", ProfileURL: "https://github.com/alice", IsActive: true})

	env.router = gin.New()
	NewHandlers(env.store, manager, generator, env.ring, env.sched, time.UTC).SetupRoutes(env.router)
	return env
}

func (e *testEnv) addActivity(title string, createdAt time.Time) {
	e.store.AddActivity(model.Activity{MemberID: e.alice.ID, Platform: "github", ActivityType: "push", Title: title, ExternalID: title, CreatedAt: createdAt})
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.LLM)
	assert.Equal(t, "stopped", resp.Metrics["scheduler"])

	env = newTestEnv(t, false)
	w = env.do(http.MethodGet, "/healthz", "")
	decode(t, w, &resp)
	assert.Equal(t, "unavailable", resp.LLM)
}

func TestMonitoringEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/v1/monitoring/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	var run monitor.RunResult
	decode(t, w, &run)
	assert.Equal(t, monitor.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.NewActivitiesCount)

	w = env.do(http.MethodPost, "/api/v1/monitoring/run", "")
	decode(t, w, &run)
	assert.Equal(t, monitor.StatusNoUpdatesNeeded, run.Status)

	w = env.do(http.MethodPost, "/api/v1/monitoring/run-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"new_activities":0`)

	w = env.do(http.MethodPost, "/api/v1/monitoring/profiles/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/monitoring/profiles/999", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activities":[]`)

	w = env.do(http.MethodGet, "/api/v1/monitoring/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats monitor.Stats
	decode(t, w, &stats)
	assert.EqualValues(t, 1, stats.TotalProfiles)
	assert.EqualValues(t, 1, stats.RecentActivityCount)

	w = env.do(http.MethodGet, "/api/v1/monitoring/activities?platform=github&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page ActivityListResponse
	decode(t, w, &page)
	assert.Len(t, page.Activities, 1)
	assert.Equal(t, maxPageSize, page.Limit)

	w = env.do(http.MethodGet, "/api/v1/monitoring/activities?member_id=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/api/v1/monitoring/activities?skip=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateSummaryEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	env.addActivity("a1", testNow.Add(-time.Hour))

	w := env.do(http.MethodPost, "/api/v1/summaries/daily?date=2024-05-01", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var summary model.Summary
	decode(t, w, &summary)
	assert.Equal(t, "中文总结", summary.Content)
	require.NotNil(t, summary.ContentEn)
	assert.Equal(t, "English summary", *summary.ContentEn)

	w = env.do(http.MethodPost, "/api/v1/summaries/daily?date=2024-04-01", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "no_activities", errResp.Error)

	w = env.do(http.MethodPost, "/api/v1/summaries/daily?date=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/summaries/weekly?start_date=2024-04-29", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/summaries/member/%d?days=3", env.alice.ID), "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/v1/summaries/member/4242", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/v1/summaries/custom", `{"start_date": "2024-05-01T00:00:00Z", "end_date": "2024-05-01T23:00:00Z", "title": "Launch day"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, "Launch day", summary.Title)

	w = env.do(http.MethodPost, "/api/v1/summaries/custom", `{"start_date": "2024-05-02", "end_date": "2024-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &errResp)
	assert.Equal(t, "invalid_window", errResp.Error)

	w = env.do(http.MethodPost, "/api/v1/summaries/custom", `{"title": "missing dates"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummaryErrorMapping(t *testing.T) {
	env := newTestEnv(t, false)
	env.addActivity("a1", testNow.Add(-time.Hour))

	w := env.do(http.MethodPost, "/api/v1/summaries/daily", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "llm_unavailable", errResp.Error)

	w = env.do(http.MethodPost, "/api/v1/summaries/daily/stream", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env = newTestEnv(t, true)
	env.addActivity("a1", testNow.Add(-time.Hour))
	env.provider.err = errors.New("upstream timeout")

	w = env.do(http.MethodPost, "/api/v1/summaries/daily", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	decode(t, w, &errResp)
	assert.Equal(t, "generation_failed", errResp.Error)
	assert.Empty(t, env.store.Summaries())
}

func readEvents(t *testing.T, body string) []summarizer.ProgressEvent {
	t.Helper()
	var events []summarizer.ProgressEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev summarizer.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStreamSummary(t *testing.T) {
	env := newTestEnv(t, true)
	env.addActivity("a1", testNow.Add(-time.Hour))

	w := env.do(http.MethodPost, "/api/v1/summaries/daily/stream", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, summarizer.EventStart, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, summarizer.EventComplete, last.Type)
	require.NotNil(t, last.Summary)
	assert.Equal(t, "中文总结", last.Summary.Content)

	w = env.do(http.MethodPost, "/api/v1/summaries/weekly/stream?start_date=2020-01-06", "")
	require.Equal(t, http.StatusOK, w.Code)
	events = readEvents(t, w.Body.String())
	assert.Equal(t, summarizer.EventError, events[len(events)-1].Type)
}

func TestReadSummaries(t *testing.T) {
	env := newTestEnv(t, true)
	env.addActivity("a1", testNow.Add(-time.Hour))
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/summaries/daily", "").Code)
	id := env.store.Summaries()[0].ID

	w := env.do(http.MethodGet, "/api/v1/summaries?type=daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Summary
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = env.do(http.MethodGet, "/api/v1/summaries?type=weekly", "")
	assert.Equal(t, "[]", w.Body.String())

	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/summaries/%d?language=en", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Title    string `json:"title"`
		Language string `json:"language"`
		Text     string `json:"text"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, "English summary", resp.Text)
	assert.Equal(t, "Daily Activity Summary - 2024-05-01", resp.Title)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/summaries/%d", id), "")
	decode(t, w, &resp)
	assert.Equal(t, "中文总结", resp.Text)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/summaries/%d?language=fr", id), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/api/v1/summaries/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/monitoring/run", "").Code)

	w := env.do(http.MethodGet, "/api/v1/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var feed NotificationListResponse
	decode(t, w, &feed)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, notify.EventNewActivity, feed.Notifications[0].Type)

	w = env.do(http.MethodPost, "/api/v1/notifications/"+feed.Notifications[0].ID+"/read", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/notifications?unread=true", "")
	decode(t, w, &feed)
	assert.Empty(t, feed.Notifications)
	assert.Equal(t, 1, feed.Total)

	w = env.do(http.MethodPost, "/api/v1/notifications/missing/read", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/v1/notifications?unread=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulerEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/v1/scheduler/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.sched.IsRunning())

	w = env.do(http.MethodGet, "/api/v1/scheduler/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = env.do(http.MethodPost, "/api/v1/scheduler/start", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = env.do(http.MethodPost, "/api/v1/scheduler/run-once", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), monitor.StatusCompleted)

	w = env.do(http.MethodPost, "/api/v1/scheduler/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.sched.IsRunning())
}
