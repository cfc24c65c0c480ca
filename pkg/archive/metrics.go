package archive

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the archive engine.
type Metrics struct {
	archived        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	tasksSubmitted  *prometheus.CounterVec
	candidates      prometheus.Gauge
	duration        prometheus.Histogram
}

// NewMetrics creates the archive metrics and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		archived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_archive_records_archived_total",
				Help: "Total number of records archived",
			},
			[]string{"kind"},
		),

		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_archive_failures_total",
				Help: "Total number of failed record archivals by failing step",
			},
			[]string{"step"},
		),

		guardRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_archive_guard_rejections_total",
				Help: "Total number of archive guard rejections by reason",
			},
			[]string{"kind", "reason"},
		),

		tasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_archive_tasks_submitted_total",
				Help: "Total number of archive tasks submitted to the queue",
			},
			[]string{"reason"},
		),

		candidates: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "strata_archive_candidates",
				Help: "Number of candidates found by the last enumeration",
			},
		),

		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "strata_archive_duration_seconds",
				Help:    "Time taken to archive one record with its dependents",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
	}
}

func (m *Metrics) recordArchived(kind string) {
	if m != nil {
		m.archived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) recordFailure(step string) {
	if m != nil {
		m.failures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) recordRejection(kind, reason string) {
	if m != nil {
		m.guardRejections.WithLabelValues(kind, reason).Inc()
	}
}

func (m *Metrics) recordTask(reason string) {
	if m != nil {
		m.tasksSubmitted.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) recordCandidates(n int) {
	if m != nil {
		m.candidates.Set(float64(n))
	}
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m != nil {
		m.duration.Observe(d.Seconds())
	}
}
