package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository/repotest"
)

// fakeMonitor serves a fixed list of external ids. An id of "bad" fails to parse.
type fakeMonitor struct {
	platform   string
	ids        []string
	fetchErr   error
	fetchCalls int32
}

func (f *fakeMonitor) PlatformName() string { return f.platform }

func (f *fakeMonitor) CanHandle(profile *model.SocialProfile) bool {
	return strings.EqualFold(profile.Platform, f.platform)
}

func (f *fakeMonitor) FetchRawActivities(ctx context.Context, profile *model.SocialProfile) ([]RawEvent, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	raws := make([]RawEvent, 0, len(f.ids))
	for _, id := range f.ids {
		raws = append(raws, RawEvent{Platform: f.platform, Data: id})
	}
	return raws, nil
}

func (f *fakeMonitor) ParseActivity(raw RawEvent) (NormalizedActivity, error) {
	id := raw.Data.(string)
	if id == "bad" {
		return NormalizedActivity{}, errors.New("unexpected shape")
	}
	return NormalizedActivity{ActivityType: "post", Title: "title " + id, Content: "content " + id, ExternalID: f.platform + "_" + id}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.EventType
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func seedProfile(store *repotest.Store, platform, url string) *model.SocialProfile {
	member := store.AddMember(model.Member{Name: "Alice", Email: platform + "@example.com", Position: "Engineer", IsActive: true})
	return store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: platform, ProfileURL: url, IsActive: true})
}

func TestMonitorProfileStoresNewActivitiesOnce(t *testing.T) {
	store := repotest.New()
	sink := &recordingSink{}
	fake := &fakeMonitor{platform: "fake", ids: []string{"1", "2"}}
	pm := NewProfileMonitor(fake, store, sink, newMetrics())
	profile := seedProfile(store, "fake", "https://example.com/alice")

	created, err := pm.MonitorProfile(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, profile.MemberID, created[0].MemberID)
	assert.Equal(t, "fake", created[0].Platform)
	require.NotNil(t, profile.LastChecked)
	require.NotNil(t, store.Profile(profile.ID).LastChecked)

	created, err = pm.MonitorProfile(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, store.Activities(), 2)

	assert.Equal(t, []notify.EventType{notify.EventNewActivity}, sink.types())
}

func TestMonitorProfileRollsBackWholeBatchOnParseError(t *testing.T) {
	store := repotest.New()
	fake := &fakeMonitor{platform: "fake", ids: []string{"1", "2", "bad", "4", "5"}}
	pm := NewProfileMonitor(fake, store, nil, newMetrics())
	profile := seedProfile(store, "fake", "https://example.com/alice")

	created, err := pm.MonitorProfile(context.Background(), profile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error monitoring fake profile")
	assert.Contains(t, err.Error(), "unexpected shape")
	assert.Nil(t, created)

	assert.Empty(t, store.Activities())
	assert.Nil(t, store.Profile(profile.ID).LastChecked)
	assert.Nil(t, profile.LastChecked)
}

func TestMonitorProfileRollsBackOnPersistError(t *testing.T) {
	store := repotest.New()
	store.CreateActivityErr = errors.New("disk full")
	store.FailCreateAfterRows = 1
	fake := &fakeMonitor{platform: "fake", ids: []string{"1", "2"}}
	pm := NewProfileMonitor(fake, store, nil, newMetrics())
	profile := seedProfile(store, "fake", "https://example.com/alice")

	_, err := pm.MonitorProfile(context.Background(), profile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, store.Activities())
	assert.Nil(t, store.Profile(profile.ID).LastChecked)
}

func TestMonitorProfileFetchFailureYieldsEmptyBatch(t *testing.T) {
	store := repotest.New()
	sink := &recordingSink{}
	m := newMetrics()
	fake := &fakeMonitor{platform: "fake", fetchErr: errors.New("502 bad gateway")}
	pm := NewProfileMonitor(fake, store, sink, m)
	profile := seedProfile(store, "fake", "https://example.com/alice")

	created, err := pm.MonitorProfile(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.NotNil(t, store.Profile(profile.ID).LastChecked)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("fake")))
	assert.Equal(t, []notify.EventType{notify.EventMonitoringError}, sink.types())
}

func TestMonitorProfileSkipsProfilesItCannotHandle(t *testing.T) {
	store := repotest.New()
	fake := &fakeMonitor{platform: "fake", ids: []string{"1"}}
	pm := NewProfileMonitor(fake, store, nil, newMetrics())
	profile := seedProfile(store, "other", "https://example.com/alice")

	created, err := pm.MonitorProfile(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.fetchCalls))
	assert.Nil(t, store.Profile(profile.ID).LastChecked)
}

func TestMonitorProfileUsesInjectedClock(t *testing.T) {
	store := repotest.New()
	fake := &fakeMonitor{platform: "fake"}
	pm := NewProfileMonitor(fake, store, nil, newMetrics())
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	pm.now = func() time.Time { return fixed }
	profile := seedProfile(store, "fake", "https://example.com/alice")

	_, err := pm.MonitorProfile(context.Background(), profile)
	require.NoError(t, err)
	require.NotNil(t, profile.LastChecked)
	assert.True(t, fixed.Equal(*profile.LastChecked))
}

func TestHostAndPathHelpers(t *testing.T) {
	assert.True(t, hostMatches("https://github.com/alice", "github.com"))
	assert.True(t, hostMatches("https://www.GitHub.com/alice", "github.com"))
	assert.True(t, hostMatches("github.com/alice", "github.com"))
	assert.False(t, hostMatches("https://notgithub.com/alice", "github.com"))
	assert.False(t, hostMatches("https://gitlab.com/github.com", "github.com"))

	assert.Equal(t, "alice", firstPathSegment("https://github.com/alice/repo"))
	assert.Equal(t, "alice", firstPathSegment("https://github.com//alice/"))
	assert.Equal(t, "", firstPathSegment("https://github.com/"))
}
