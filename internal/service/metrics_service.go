package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and keeps a few counters for the summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	solveDuration   *prometheus.HistogramVec
	solveNodes      prometheus.Histogram
	solveTotal      *prometheus.CounterVec
	runTransitions  *prometheus.CounterVec
	queueDepth      prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	solveCount     uint64
	solveFailures  uint64
	solveNanos     uint64
}

// MetricsSnapshot is a point-in-time summary of service activity.
type MetricsSnapshot struct {
	RequestsTotal  uint64    `json:"requests_total"`
	SolvesTotal    uint64    `json:"solves_total"`
	SolveFailures  uint64    `json:"solve_failures"`
	AverageSolveMs float64   `json:"average_solve_ms"`
	CacheHits      uint64    `json:"cache_hits"`
	CacheMisses    uint64    `json:"cache_misses"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobshop_solve_duration_seconds",
		Help:    "Wall time of schedule solves by outcome",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"status"})

	solveNodes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobshop_solve_nodes",
		Help:    "Search nodes explored per solve",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8),
	})

	solveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobshop_solves_total",
		Help: "Schedule solves by outcome",
	}, []string{"status"})

	runTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobshop_run_transitions_total",
		Help: "Schedule run status transitions",
	}, []string{"status"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobshop_queue_depth",
		Help: "Schedule runs waiting for a worker",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration, solveDuration, solveNodes, solveTotal, runTransitions, queueDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		solveDuration:   solveDuration,
		solveNodes:      solveNodes,
		solveTotal:      solveTotal,
		runTransitions:  runTransitions,
		queueDepth:      queueDepth,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveSolve records one pipeline invocation. status is the solver status or
// the error code that stopped the pipeline.
func (m *MetricsService) ObserveSolve(status string, duration time.Duration, nodes int64, failed bool) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.solveTotal.WithLabelValues(status).Inc()
	if nodes > 0 {
		m.solveNodes.Observe(float64(nodes))
	}
	atomic.AddUint64(&m.solveCount, 1)
	atomic.AddUint64(&m.solveNanos, uint64(duration.Nanoseconds()))
	if failed {
		atomic.AddUint64(&m.solveFailures, 1)
	}
}

// ObserveRunTransition counts a schedule run entering status.
func (m *MetricsService) ObserveRunTransition(status string) {
	if m == nil {
		return
	}
	m.runTransitions.WithLabelValues(status).Inc()
}

// SetQueueDepth publishes the number of runs waiting for a worker.
func (m *MetricsService) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	solves := atomic.LoadUint64(&m.solveCount)
	nanos := atomic.LoadUint64(&m.solveNanos)

	snapshot := MetricsSnapshot{
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		SolvesTotal:   solves,
		SolveFailures: atomic.LoadUint64(&m.solveFailures),
		CacheHits:     hits,
		CacheMisses:   misses,
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if hits+misses > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	if solves > 0 {
		snapshot.AverageSolveMs = float64(nanos) / float64(solves) / float64(time.Millisecond)
	}
	return snapshot
}
