package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/monitor"
)

// Monitor runs one scheduled monitoring pass.
type Monitor interface {
	RunScheduledMonitoring(ctx context.Context) (*monitor.RunResult, error)
}

// Summarizer generates the periodic summaries.
type Summarizer interface {
	CanSummarize() bool
	GenerateDaily(ctx context.Context, date time.Time) (*model.Summary, error)
	GenerateWeekly(ctx context.Context, weekStart time.Time) (*model.Summary, error)
}

// Scheduler manages the periodic monitoring and summary jobs
type Scheduler struct {
	cron         *cron.Cron
	monitorEntry cron.EntryID
	monitoring   config.MonitoringConfig
	summary      config.SummaryConfig
	monitor      Monitor
	summarizer   Summarizer
	location     *time.Location
	now          func() time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isRunning    bool
	mu           sync.RWMutex
}

// New creates a new scheduler. summarizer may be nil, in which case no
// summary jobs are registered.
func New(monitoring config.MonitoringConfig, summary config.SummaryConfig, mon Monitor, summarizer Summarizer, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       newCron(loc),
		monitoring: monitoring,
		summary:    summary,
		monitor:    mon,
		summarizer: summarizer,
		location:   loc,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

const stopTimeout = 30 * time.Second

func newCron(loc *time.Location) *cron.Cron {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

// monitoringSpec keeps the wall-clock aligned form when the interval divides
// an hour.
func monitoringSpec(intervalMinutes int) string {
	if intervalMinutes <= 60 && 60%intervalMinutes == 0 {
		return fmt.Sprintf("0 */%d * * * *", intervalMinutes)
	}
	return fmt.Sprintf("@every %dm", intervalMinutes)
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.monitoring.IntervalMinutes < 1 {
		return fmt.Errorf("invalid monitoring interval: %d", s.monitoring.IntervalMinutes)
	}

	// A stopped cron and a cancelled context cannot be reused.
	s.cron = newCron(s.location)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	entryID, err := s.cron.AddFunc(monitoringSpec(s.monitoring.IntervalMinutes), s.processMonitoring)
	if err != nil {
		return fmt.Errorf("failed to add monitoring job: %w", err)
	}
	s.monitorEntry = entryID

	if s.summarizer != nil {
		if err := s.addSummaryJobs(); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.monitoring.IntervalMinutes)
	return nil
}

func (s *Scheduler) addSummaryJobs() error {
	hour, minute, err := s.summary.Clock()
	if err != nil {
		return err
	}

	if s.summary.DailyEnabled {
		if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d %d * * *", minute, hour), s.processDailySummary); err != nil {
			return fmt.Errorf("failed to add daily summary job: %w", err)
		}
		logrus.Infof("Daily summary scheduled at %02d:%02d", hour, minute)
	}
	if s.summary.WeeklyEnabled {
		if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d %d * * 1", minute, hour), s.processWeeklySummary); err != nil {
			return fmt.Errorf("failed to add weekly summary job: %w", err)
		}
		logrus.Infof("Weekly summary scheduled on Mondays at %02d:%02d", hour, minute)
	}
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	ctx := s.cron.Stop()
	s.mu.Unlock()

	// Jobs still in flight read the state, so wait without holding the lock.
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(stopTimeout):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs a monitoring pass now, whether or not the scheduler is running
func (s *Scheduler) RunOnce(ctx context.Context) (*monitor.RunResult, error) {
	logrus.Info("Running monitoring once")
	s.wg.Add(1)
	defer s.wg.Done()
	return s.monitor.RunScheduledMonitoring(ctx)
}

// GetNextRun returns the time of the next scheduled monitoring run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.monitorEntry)
	return entry.Next
}

// GetLastRun returns the time of the last scheduled monitoring run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.monitorEntry)
	return entry.Prev
}

// IntervalMinutes returns the configured monitoring interval
func (s *Scheduler) IntervalMinutes() int {
	return s.monitoring.IntervalMinutes
}

// Wait waits for running jobs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
