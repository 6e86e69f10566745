package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics records sync coordinator activity. A nil *SyncMetrics is
// valid and records nothing.
type SyncMetrics struct {
	tasks      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewSyncMetrics creates Prometheus-backed sync metrics.
// Returns nil when metrics are disabled (InitRegistry not called).
func NewSyncMetrics() *SyncMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &SyncMetrics{
		tasks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "datastash_sync_tasks_total",
			Help: "Completed sync tasks by kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datastash_sync_task_duration_seconds",
			Help:    "Sync task execution time",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "datastash_sync_queue_depth",
			Help: "Number of pending sync tasks",
		}),
	}
}

// ObserveTask records one finished task.
func (m *SyncMetrics) ObserveTask(kind, outcome string, elapsed time.Duration) {
	if m != nil {
		m.tasks.WithLabelValues(kind, outcome).Inc()
		m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// SetQueueDepth records the pending task count.
func (m *SyncMetrics) SetQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
