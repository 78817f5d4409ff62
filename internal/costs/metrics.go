package costs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Partition read outcomes.
const (
	readOK      = "ok"
	readFailed  = "failed"
	readTimeout = "timeout"
)

// Metrics exposes Prometheus collectors for aggregation. A nil *Metrics is a
// no-op.
type Metrics struct {
	partitionReads *prometheus.CounterVec
	catalogMisses  prometheus.Counter
	duration       *prometheus.HistogramVec
	scanned        prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
}

// NewMetrics registers the aggregation metrics against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecost_partition_reads_total",
		Help: "Partition reads by outcome.",
	}, []string{"outcome"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitecost_catalog_misses_total",
		Help: "Materials dropped because the tenant catalog has no price for them.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitecost_aggregation_duration_seconds",
		Help:    "Aggregation latency by scope and data source.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope", "source"})
	scanned := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitecost_partitions_scanned",
		Help:    "Partitions read per aggregation.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitecost_cache_lookups_total",
		Help: "Aggregation cache lookups by result.",
	}, []string{"result"})
	registerer.MustRegister(reads, misses, duration, scanned, lookups)
	return &Metrics{
		partitionReads: reads,
		catalogMisses:  misses,
		duration:       duration,
		scanned:        scanned,
		cacheLookups:   lookups,
	}
}

func (m *Metrics) partitionRead(outcome string) {
	if m == nil {
		return
	}
	m.partitionReads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) catalogMiss() {
	if m == nil {
		return
	}
	m.catalogMisses.Inc()
}

func (m *Metrics) observeAggregation(scope string, source DataSource, scanned int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(scope, string(source)).Observe(elapsed.Seconds())
	m.scanned.Observe(float64(scanned))
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
