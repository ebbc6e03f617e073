package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository"
)

const (
	StatusNoUpdatesNeeded = "no_updates_needed"
	StatusCompleted       = "completed"

	recentActivityWindow = 7 * 24 * time.Hour
)

// RunResult reports one scheduled monitoring pass.
type RunResult struct {
	RunID              string                      `json:"run_id"`
	Status             string                      `json:"status"`
	ProfilesDue        int                         `json:"profiles_due"`
	NewActivitiesCount int                         `json:"new_activities"`
	PlatformResults    map[string][]model.Activity `json:"platform_results,omitempty"`
	StartedAt          time.Time                   `json:"started_at"`
	Duration           time.Duration               `json:"duration"`
}

// Stats is a read-only snapshot of the monitoring state.
type Stats struct {
	TotalProfiles       int64            `json:"total_profiles"`
	ProfilesByPlatform  map[string]int64 `json:"profiles_by_platform"`
	RecentActivityCount int64            `json:"recent_activities"`
	SupportedPlatforms  []string         `json:"supported_platforms"`
}

// Options tunes a Manager.
type Options struct {
	// StaleAfter is how long a profile stays fresh after a check.
	StaleAfter time.Duration
	// Concurrency bounds the profiles polled in parallel per platform.
	Concurrency int
}

// Manager routes profiles to their platform monitor and isolates failures
// per profile.
type Manager struct {
	store    repository.Store
	sink     notify.Sink
	metrics  *metrics.Metrics
	opts     Options
	monitors map[string]*ProfileMonitor
	now      func() time.Time
}

// NewManager registers monitors by their platform name. The set is fixed for
// the lifetime of the Manager.
func NewManager(store repository.Store, sink notify.Sink, mtr *metrics.Metrics, opts Options, monitors ...PlatformMonitor) *Manager {
	if sink == nil {
		sink = notify.Nop{}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	mtr = metrics.OrDiscard(mtr)

	registry := make(map[string]*ProfileMonitor, len(monitors))
	for _, m := range monitors {
		registry[strings.ToLower(m.PlatformName())] = NewProfileMonitor(m, store, sink, mtr)
	}

	return &Manager{
		store:    store,
		sink:     sink,
		metrics:  mtr,
		opts:     opts,
		monitors: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SupportedPlatforms returns the registered platform tags, sorted.
func (m *Manager) SupportedPlatforms() []string {
	platforms := make([]string, 0, len(m.monitors))
	for p := range m.monitors {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// MonitorAllProfiles polls every active profile of a supported platform. The
// returned error is only set when the profiles cannot be listed.
func (m *Manager) MonitorAllProfiles(ctx context.Context) (map[string][]model.Activity, error) {
	profiles, err := m.store.ListActiveProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active profiles: %w", err)
	}

	byPlatform := make(map[string][]model.SocialProfile)
	var order []string
	for _, p := range profiles {
		platform := strings.ToLower(p.Platform)
		if _, ok := byPlatform[platform]; !ok {
			order = append(order, platform)
		}
		byPlatform[platform] = append(byPlatform[platform], p)
	}

	results := make(map[string][]model.Activity)
	for _, platform := range order {
		pm, ok := m.monitors[platform]
		if !ok {
			logrus.Debugf("Skipping %d profiles of unsupported platform %q", len(byPlatform[platform]), platform)
			continue
		}
		results[platform] = m.monitorGroup(ctx, pm, byPlatform[platform])
	}
	return results, nil
}

// monitorGroup polls profiles with bounded concurrency and concatenates the
// new activities in profile order.
func (m *Manager) monitorGroup(ctx context.Context, pm *ProfileMonitor, profiles []model.SocialProfile) []model.Activity {
	perProfile := make([][]model.Activity, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i := range profiles {
		i := i
		g.Go(func() error {
			perProfile[i] = m.monitorOne(gctx, pm, &profiles[i])
			return nil
		})
	}
	_ = g.Wait()

	var created []model.Activity
	for _, batch := range perProfile {
		created = append(created, batch...)
	}
	return created
}

func (m *Manager) monitorOne(ctx context.Context, pm *ProfileMonitor, profile *model.SocialProfile) []model.Activity {
	activities, err := pm.MonitorProfile(ctx, profile)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"platform":   pm.PlatformName(),
			"profile_id": profile.ID,
		}).Errorf("Profile monitoring failed: %v", err)
		m.metrics.ProfileFailures.WithLabelValues(pm.PlatformName()).Inc()
		m.sink.Notify(ctx, notify.MonitoringErrorEvent(pm.PlatformName(), profile.ID, err))
		return nil
	}
	return activities
}

// MonitorSpecificProfile polls one profile. Missing, inactive or unsupported
// profiles yield an empty result, as do monitor failures.
func (m *Manager) MonitorSpecificProfile(ctx context.Context, profileID uint) ([]model.Activity, error) {
	profile, err := m.store.GetActiveProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %d: %w", profileID, err)
	}
	if profile == nil {
		return nil, nil
	}

	pm, ok := m.monitors[strings.ToLower(profile.Platform)]
	if !ok {
		return nil, nil
	}
	return m.monitorOne(ctx, pm, profile), nil
}

// GetProfilesNeedingUpdate returns active profiles never checked or last
// checked at least staleAfter ago.
func (m *Manager) GetProfilesNeedingUpdate(ctx context.Context, staleAfter time.Duration) ([]model.SocialProfile, error) {
	cutoff := m.now().Add(-staleAfter)
	profiles, err := m.store.ListProfilesDueForCheck(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles needing update: %w", err)
	}
	return profiles, nil
}

// RunScheduledMonitoring runs a full pass when at least one profile is stale
// and does nothing otherwise.
func (m *Manager) RunScheduledMonitoring(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), StartedAt: m.now()}
	log := logrus.WithField("run_id", result.RunID)

	due, err := m.GetProfilesNeedingUpdate(ctx, m.opts.StaleAfter)
	if err != nil {
		m.metrics.MonitoringRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.ProfilesDue = len(due)

	if len(due) == 0 {
		result.Status = StatusNoUpdatesNeeded
		m.metrics.MonitoringRuns.WithLabelValues(StatusNoUpdatesNeeded).Inc()
		log.Info("No profiles need updating")
		return result, nil
	}

	timer := time.Now()
	results, err := m.MonitorAllProfiles(ctx)
	if err != nil {
		m.metrics.MonitoringRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.Duration = time.Since(timer)
	m.metrics.MonitoringDuration.Observe(result.Duration.Seconds())

	for _, activities := range results {
		result.NewActivitiesCount += len(activities)
	}
	result.Status = StatusCompleted
	result.PlatformResults = results
	m.metrics.MonitoringRuns.WithLabelValues(StatusCompleted).Inc()

	log.WithFields(logrus.Fields{
		"profiles_due":   result.ProfilesDue,
		"new_activities": result.NewActivitiesCount,
		"duration":       result.Duration.String(),
	}).Info("Scheduled monitoring completed")
	return result, nil
}

// GetMonitoringStats counts active profiles and recent activities.
func (m *Manager) GetMonitoringStats(ctx context.Context) (*Stats, error) {
	total, err := m.store.CountActiveProfiles(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalProfiles:      total,
		ProfilesByPlatform: make(map[string]int64, len(m.monitors)),
		SupportedPlatforms: m.SupportedPlatforms(),
	}
	for _, platform := range stats.SupportedPlatforms {
		n, err := m.store.CountActiveProfiles(ctx, platform)
		if err != nil {
			return nil, err
		}
		stats.ProfilesByPlatform[platform] = n
		m.metrics.ActiveProfiles.WithLabelValues(platform).Set(float64(n))
	}

	stats.RecentActivityCount, err = m.store.CountActivitiesSince(ctx, m.now().Add(-recentActivityWindow))
	if err != nil {
		return nil, err
	}
	return stats, nil
}
