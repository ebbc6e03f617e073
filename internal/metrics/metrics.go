package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	MonitoringRuns     *prometheus.CounterVec
	ProfilesChecked    *prometheus.CounterVec
	FetchFailures      *prometheus.CounterVec
	ProfileFailures    *prometheus.CounterVec
	NewActivities      *prometheus.CounterVec
	MonitoringDuration prometheus.Histogram
	ActiveProfiles     *prometheus.GaugeVec

	SummaryGenerations *prometheus.CounterVec
	SummaryDuration    prometheus.Histogram
	LLMCalls           *prometheus.CounterVec

	NotificationsDropped *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MonitoringRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_monitoring_runs_total",
			Help: "Scheduled monitoring runs by outcome",
		}, []string{"status"}),
		ProfilesChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_profiles_checked_total",
			Help: "Profiles polled by platform",
		}, []string{"platform"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_fetch_failures_total",
			Help: "Platform fetches that failed and produced an empty batch",
		}, []string{"platform"}),
		ProfileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_profile_failures_total",
			Help: "Profile batches rolled back because of a parse or persist error",
		}, []string{"platform"}),
		NewActivities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_new_activities_total",
			Help: "Activities stored by platform",
		}, []string{"platform"}),
		MonitoringDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inspector_monitoring_duration_seconds",
			Help:    "Time spent in a monitoring pass",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveProfiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inspector_active_profiles",
			Help: "Number of active profiles by platform",
		}, []string{"platform"}),
		SummaryGenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_summary_generations_total",
			Help: "Summary generation attempts by type and result",
		}, []string{"type", "result"}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inspector_summary_duration_seconds",
			Help:    "Time spent generating a summary",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_llm_calls_total",
			Help: "Language model calls by provider, language and result",
		}, []string{"provider", "language", "result"}),
		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_notifications_failed_total",
			Help: "Notification deliveries that failed by sink",
		}, []string{"sink"}),
	}
}

// OrDiscard returns m, or collectors on a private registry when m is nil.
// Components accept a nil *Metrics this way and never check it again.
func OrDiscard(m *Metrics) *Metrics {
	if m != nil {
		return m
	}
	return NewMetrics(prometheus.NewRegistry())
}
