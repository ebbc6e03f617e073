package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository/repotest"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestManagerSupportedPlatforms(t *testing.T) {
	mgr := NewManager(repotest.New(), nil, newMetrics(), Options{},
		&fakeMonitor{platform: "beta"}, &fakeMonitor{platform: "Alpha"})
	assert.Equal(t, []string{"alpha", "beta"}, mgr.SupportedPlatforms())
}

func TestManagerMonitorAllProfilesIsolatesFailures(t *testing.T) {
	store := repotest.New()
	sink := &recordingSink{}
	m := newMetrics()

	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1", "2"}}
	broken := &fakeMonitor{platform: "broken", ids: []string{"1", "bad"}}
	mgr := NewManager(store, sink, m, Options{Concurrency: 2}, alpha, broken)

	ok := seedProfile(store, "alpha", "https://example.com/a")
	failing := seedProfile(store, "broken", "https://example.com/b")
	seedProfile(store, "gamma", "https://example.com/c")

	results, err := mgr.MonitorAllProfiles(context.Background())
	require.NoError(t, err)

	assert.Len(t, results["alpha"], 2)
	assert.Empty(t, results["broken"])
	_, hasGamma := results["gamma"]
	assert.False(t, hasGamma)

	assert.NotNil(t, store.Profile(ok.ID).LastChecked)
	assert.Nil(t, store.Profile(failing.ID).LastChecked)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfileFailures.WithLabelValues("broken")))
	assert.Contains(t, sink.types(), notify.EventMonitoringError)
	assert.Contains(t, sink.types(), notify.EventNewActivity)
}

func TestManagerMonitorAllProfilesPreservesProfileOrder(t *testing.T) {
	store := repotest.New()
	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1"}}
	mgr := NewManager(store, nil, newMetrics(), Options{Concurrency: 4}, alpha)

	var profileIDs []uint
	for i := 0; i < 5; i++ {
		profileIDs = append(profileIDs, seedProfile(store, "alpha", "https://example.com/x").ID)
	}

	results, err := mgr.MonitorAllProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, results["alpha"], 5)
	for i, a := range results["alpha"] {
		assert.Equal(t, profileIDs[i], a.SocialProfileID)
	}
}

func TestManagerMonitorAllProfilesListError(t *testing.T) {
	store := repotest.New()
	store.ListProfilesErr = errors.New("database is locked")
	mgr := NewManager(store, nil, newMetrics(), Options{}, &fakeMonitor{platform: "alpha"})

	_, err := mgr.MonitorAllProfiles(context.Background())
	assert.Error(t, err)
}

func TestManagerMonitorSpecificProfile(t *testing.T) {
	store := repotest.New()
	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1"}}
	broken := &fakeMonitor{platform: "broken", ids: []string{"bad"}}
	mgr := NewManager(store, nil, newMetrics(), Options{}, alpha, broken)

	active := seedProfile(store, "alpha", "https://example.com/a")
	member := store.AddMember(model.Member{Name: "Bob", Email: "bob@example.com", IsActive: true})
	inactive := store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", ProfileURL: "https://example.com/b"})
	unsupported := seedProfile(store, "gamma", "https://example.com/c")
	failing := seedProfile(store, "broken", "https://example.com/d")

	tests := []struct {
		name string
		id   uint
		want int
	}{
		{"active", active.ID, 1},
		{"missing", 9999, 0},
		{"inactive", inactive.ID, 0},
		{"unsupported", unsupported.ID, 0},
		{"failing", failing.ID, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mgr.MonitorSpecificProfile(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&alpha.fetchCalls))
}

func TestManagerGetProfilesNeedingUpdate(t *testing.T) {
	store := repotest.New()
	mgr := NewManager(store, nil, newMetrics(), Options{}, &fakeMonitor{platform: "alpha"})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	member := store.AddMember(model.Member{Name: "Alice", Email: "alice@example.com", IsActive: true})
	never := store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", IsActive: true})
	stale := store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", IsActive: true, LastChecked: ptrTime(now.Add(-2 * time.Hour))})
	store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", IsActive: true, LastChecked: ptrTime(now.Add(-10 * time.Minute))})
	store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", LastChecked: ptrTime(now.Add(-5 * time.Hour))})

	due, err := mgr.GetProfilesNeedingUpdate(context.Background(), time.Hour)
	require.NoError(t, err)

	var ids []uint
	for _, p := range due {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []uint{never.ID, stale.ID}, ids)
}

func TestManagerRunScheduledMonitoringNoUpdates(t *testing.T) {
	store := repotest.New()
	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1"}}
	m := newMetrics()
	mgr := NewManager(store, nil, m, Options{StaleAfter: time.Hour}, alpha)
	now := time.Now().UTC()

	member := store.AddMember(model.Member{Name: "Alice", Email: "alice@example.com", IsActive: true})
	store.AddProfile(model.SocialProfile{MemberID: member.ID, Platform: "alpha", IsActive: true, LastChecked: ptrTime(now.Add(-10 * time.Minute))})

	result, err := mgr.RunScheduledMonitoring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoUpdatesNeeded, result.Status)
	assert.Zero(t, result.ProfilesDue)
	assert.NotEmpty(t, result.RunID)
	assert.EqualValues(t, 0, atomic.LoadInt32(&alpha.fetchCalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MonitoringRuns.WithLabelValues(StatusNoUpdatesNeeded)))
}

func TestManagerRunScheduledMonitoringCompleted(t *testing.T) {
	store := repotest.New()
	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1", "2", "3"}}
	m := newMetrics()
	mgr := NewManager(store, nil, m, Options{StaleAfter: time.Hour}, alpha)

	seedProfile(store, "alpha", "https://example.com/a")

	result, err := mgr.RunScheduledMonitoring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.ProfilesDue)
	assert.Equal(t, 3, result.NewActivitiesCount)
	assert.Len(t, result.PlatformResults["alpha"], 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MonitoringRuns.WithLabelValues(StatusCompleted)))

	result, err = mgr.RunScheduledMonitoring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoUpdatesNeeded, result.Status)
}

func TestManagerGetMonitoringStats(t *testing.T) {
	store := repotest.New()
	m := newMetrics()
	mgr := NewManager(store, nil, m, Options{}, &fakeMonitor{platform: "github"}, &fakeMonitor{platform: "linkedin"})
	now := time.Now().UTC()

	gh := seedProfile(store, "github", "https://github.com/alice")
	seedProfile(store, "github", "https://github.com/bob")
	seedProfile(store, "linkedin", "https://www.linkedin.com/in/alice")
	store.AddActivity(model.Activity{MemberID: gh.MemberID, SocialProfileID: gh.ID, Platform: "github", ExternalID: "github_1", CreatedAt: now.Add(-time.Hour)})
	store.AddActivity(model.Activity{MemberID: gh.MemberID, SocialProfileID: gh.ID, Platform: "github", ExternalID: "github_2", CreatedAt: now.Add(-30 * 24 * time.Hour)})

	stats, err := mgr.GetMonitoringStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalProfiles)
	assert.Equal(t, map[string]int64{"github": 2, "linkedin": 1}, stats.ProfilesByPlatform)
	assert.EqualValues(t, 1, stats.RecentActivityCount)
	assert.Equal(t, []string{"github", "linkedin"}, stats.SupportedPlatforms)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveProfiles.WithLabelValues("github")))
}

func TestManagerAcceptsNilMetrics(t *testing.T) {
	store := repotest.New()
	broken := &fakeMonitor{platform: "broken", fetchErr: errors.New("timeout")}
	alpha := &fakeMonitor{platform: "alpha", ids: []string{"1"}}
	mgr := NewManager(store, nil, nil, Options{StaleAfter: time.Hour}, alpha, broken)

	seedProfile(store, "alpha", "https://example.com/a")
	seedProfile(store, "broken", "https://example.com/b")

	result, err := mgr.RunScheduledMonitoring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.NewActivitiesCount)

	_, err = mgr.GetMonitoringStats(context.Background())
	assert.NoError(t, err)
}
