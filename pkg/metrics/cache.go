package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics records cache controller activity. A nil *CacheMetrics is
// valid and records nothing.
type CacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
	bytes     *prometheus.GaugeVec
	entries   *prometheus.GaugeVec
}

// NewCacheMetrics creates Prometheus-backed cache metrics.
// Returns nil when metrics are disabled (InitRegistry not called).
func NewCacheMetrics() *CacheMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &CacheMetrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "datastash_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "datastash_cache_misses_total",
			Help: "Total number of cache misses (absent or expired)",
		}),
		evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "datastash_cache_evictions_total",
			Help: "Total number of entries removed by policy",
		}, []string{"reason"}), // "expired", "lru", "invalidated"
		bytes: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "datastash_storage_bytes",
			Help: "Bytes stored per partition",
		}, []string{"partition"}),
		entries: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "datastash_storage_entries",
			Help: "Entry count per partition",
		}, []string{"partition"}),
	}
}

// ObserveHit records a cache hit.
func (m *CacheMetrics) ObserveHit() {
	if m != nil {
		m.hits.Inc()
	}
}

// ObserveMiss records a cache miss.
func (m *CacheMetrics) ObserveMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

// ObserveEviction records an entry removed by policy.
func (m *CacheMetrics) ObserveEviction(reason string) {
	if m != nil {
		m.evictions.WithLabelValues(reason).Inc()
	}
}

// SetPartitionSize records a partition's current byte and entry totals.
func (m *CacheMetrics) SetPartitionSize(partition string, bytes int64, entries int) {
	if m != nil {
		m.bytes.WithLabelValues(partition).Set(float64(bytes))
		m.entries.WithLabelValues(partition).Set(float64(entries))
	}
}
