package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/summarizer"
)

// jobContext returns the context of the current run, or false when the
// scheduler has been stopped.
func (s *Scheduler) jobContext() (context.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return nil, false
	}
	return s.ctx, true
}

// processMonitoring is the monitoring job that runs periodically
func (s *Scheduler) processMonitoring() {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, ok := s.jobContext()
	if !ok {
		logrus.Info("Scheduler not running, skipping monitoring cycle")
		return
	}

	logrus.Info("Starting monitoring cycle")
	startTime := time.Now()

	result, err := s.monitor.RunScheduledMonitoring(ctx)
	if err != nil {
		logrus.Errorf("Monitoring cycle failed: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"run_id":         result.RunID,
		"status":         result.Status,
		"new_activities": result.NewActivitiesCount,
	}).Infof("Monitoring cycle completed in %v", time.Since(startTime))
}

// processDailySummary summarizes the previous day
func (s *Scheduler) processDailySummary() {
	s.runSummary(model.SummaryDaily, func(ctx context.Context) (*model.Summary, error) {
		yesterday := s.now().In(s.location).AddDate(0, 0, -1)
		return s.summarizer.GenerateDaily(ctx, yesterday)
	})
}

// processWeeklySummary summarizes the previous Monday-start week
func (s *Scheduler) processWeeklySummary() {
	s.runSummary(model.SummaryWeekly, func(ctx context.Context) (*model.Summary, error) {
		monday, _ := summarizer.WeekWindow(s.now().AddDate(0, 0, -7), s.location)
		return s.summarizer.GenerateWeekly(ctx, monday)
	})
}

func (s *Scheduler) runSummary(summaryType string, generate func(ctx context.Context) (*model.Summary, error)) {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, ok := s.jobContext()
	if !ok {
		return
	}
	log := logrus.WithField("summary_type", summaryType)

	if !s.summarizer.CanSummarize() {
		log.Warn("Summarization unavailable, skipping scheduled summary")
		return
	}

	summary, err := generate(ctx)
	switch {
	case errors.Is(err, summarizer.ErrNoActivities):
		log.Info("No activities for scheduled summary")
	case err != nil:
		log.Errorf("Scheduled summary failed: %v", err)
	default:
		log.WithField("summary_id", summary.ID).Infof("Scheduled summary generated: %s", summary.Title)
	}
}
