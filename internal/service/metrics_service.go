package service

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mind-platform/mind-analytics-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the aggregation
// engine and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	resolveDuration *prometheus.HistogramVec
	resolveTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	fetchDuration   *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	resolveCount         uint64
	resolveDurationTotal uint64
	fetchCount           uint64
	fetchDurationTotal   uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	resolveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metric_resolve_duration_seconds",
		Help:    "Duration of metric resolution including record fetch and aggregation",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})

	resolveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "metric_resolves_total",
		Help: "Total number of metric resolutions",
	}, []string{"metric", "outcome"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_fetch_duration_seconds",
		Help:    "Duration of record store pulls",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(resolveDuration, resolveTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses, fetchDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		resolveDuration: resolveDuration,
		resolveTotal:    resolveTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		fetchDuration:   fetchDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveResolve records a metric resolution and aggregates simple stats for
// snapshots.
func (m *MetricsService) ObserveResolve(metricID, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(metricID).Observe(duration.Seconds())
	m.resolveTotal.WithLabelValues(metricID, outcome).Inc()
	atomic.AddUint64(&m.resolveCount, 1)
	atomic.AddUint64(&m.resolveDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveFetch records record-store pull timing for a record class.
func (m *MetricsService) ObserveFetch(class models.RecordClass, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(string(class)).Observe(duration.Seconds())
	atomic.AddUint64(&m.fetchCount, 1)
	atomic.AddUint64(&m.fetchDurationTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics suitable for the system endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	resolves := atomic.LoadUint64(&m.resolveCount)
	resolveDuration := atomic.LoadUint64(&m.resolveDurationTotal)
	fetches := atomic.LoadUint64(&m.fetchCount)
	fetchDuration := atomic.LoadUint64(&m.fetchDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgResolveMs float64
	if resolves > 0 {
		avgResolveMs = float64(resolveDuration) / float64(resolves) / float64(time.Millisecond)
	}

	var avgFetchMs float64
	if fetches > 0 {
		avgFetchMs = float64(fetchDuration) / float64(fetches) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		ResolvesTotal:            resolves,
		AverageResolveDurationMs: avgResolveMs,
		FetchCount:               fetches,
		AverageFetchDurationMs:   avgFetchMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
