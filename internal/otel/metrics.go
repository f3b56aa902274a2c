package otel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors optify's build and
// composition hot paths report to.
type Metrics struct {
	buildDuration       prometheus.Histogram
	buildErrors         prometheus.Counter
	compositionDuration prometheus.Histogram
	compositionErrors   prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	watcherRebuilds     *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set against registerer. Pass
// prometheus.DefaultRegisterer to publish on the process-wide default
// registry, or a fresh prometheus.NewRegistry() in tests to avoid
// collector-already-registered panics across test runs.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	namespace := "optify"

	m := &Metrics{
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time to walk, parse, and resolve a feature directory into a Registry.",
			Buckets:   prometheus.DefBuckets,
		}),
		buildErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_errors_total",
			Help:      "Registry builds that failed (parse, validation, cycle, or alias errors).",
		}),
		compositionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "composition_duration_seconds",
			Help:      "Time to filter, merge, and project a GetOptions/GetAllOptions request.",
			Buckets:   prometheus.DefBuckets,
		}),
		compositionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composition_errors_total",
			Help:      "Composition requests that failed (unknown feature, missing key, cache/overrides conflict).",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Composition requests served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cacheable composition requests that were computed and stored.",
		}),
		watcherRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_rebuilds_total",
			Help:      "Watcher-triggered rebuilds, partitioned by outcome.",
		}, []string{"outcome"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.buildDuration, m.buildErrors,
			m.compositionDuration, m.compositionErrors,
			m.cacheHits, m.cacheMisses,
			m.watcherRebuilds,
		)
	}
	return m
}

// RecordBuild reports one Builder.Build call's duration and outcome.
func (m *Metrics) RecordBuild(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(duration.Seconds())
	if err != nil {
		m.buildErrors.Inc()
	}
}

// RecordComposition reports one compose() call's duration and outcome.
func (m *Metrics) RecordComposition(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.compositionDuration.Observe(duration.Seconds())
	if err != nil {
		m.compositionErrors.Inc()
	}
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordWatcherRebuild reports one debounced rebuild attempt, outcome
// being "success", "error", or "panic".
func (m *Metrics) RecordWatcherRebuild(outcome string) {
	if m == nil {
		return
	}
	m.watcherRebuilds.WithLabelValues(outcome).Inc()
}
