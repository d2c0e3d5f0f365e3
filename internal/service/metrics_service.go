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

// MetricsSummary is a lightweight aggregate exposed on the summary endpoint.
type MetricsSummary struct {
	AssignmentsTotal         uint64    `json:"assignments_total"`
	CapacityConflictsTotal   uint64    `json:"capacity_conflicts_total"`
	CycleTransitionsTotal    uint64    `json:"cycle_transitions_total"`
	MeetingsCreatedTotal     uint64    `json:"meetings_created_total"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for the enrollment
// engine and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	assignmentTotal   *prometheus.CounterVec
	capacityConflicts prometheus.Counter
	cycleTransitions  *prometheus.CounterVec
	meetingsCreated   prometheus.Counter

	cacheLatency  prometheus.Observer
	cacheWrite    prometheus.Observer
	cacheHitRatio prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	assignmentCount      uint64
	capacityCount        uint64
	transitionCount      uint64
	meetingCount         uint64
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

	assignmentTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "section_assignments_total",
		Help: "Total section assignment attempts by outcome",
	}, []string{"outcome"})

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capacity_conflicts_total",
		Help: "Total capacity-guarded updates rejected under contention",
	})

	cycleTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cycle_transitions_total",
		Help: "Total enrollment-cycle transitions by kind",
	}, []string{"transition"})

	meetingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "section_meetings_created_total",
		Help: "Total weekly meetings created by the schedule generator",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
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

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, assignmentTotal, capacityConflicts,
		cycleTransitions, meetingsCreated, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		assignmentTotal:   assignmentTotal,
		capacityConflicts: capacityConflicts,
		cycleTransitions:  cycleTransitions,
		meetingsCreated:   meetingsCreated,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordAssignment counts an assignment attempt by outcome.
func (m *MetricsService) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.assignmentTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.assignmentCount, 1)
}

// RecordCapacityConflict counts a capacity-guarded update lost to a race.
func (m *MetricsService) RecordCapacityConflict() {
	if m == nil {
		return
	}
	m.capacityConflicts.Inc()
	atomic.AddUint64(&m.capacityCount, 1)
}

// RecordCycleTransition counts a persisting cycle transition by kind.
func (m *MetricsService) RecordCycleTransition(transition string) {
	if m == nil {
		return
	}
	m.cycleTransitions.WithLabelValues(transition).Inc()
	atomic.AddUint64(&m.transitionCount, 1)
}

// RecordMeetingCreated counts a meeting persisted by the generator.
func (m *MetricsService) RecordMeetingCreated() {
	if m == nil {
		return
	}
	m.meetingsCreated.Inc()
	atomic.AddUint64(&m.meetingCount, 1)
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

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics for the summary endpoint.
func (m *MetricsService) Snapshot() MetricsSummary {
	if m == nil {
		return MetricsSummary{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSummary{
		AssignmentsTotal:         atomic.LoadUint64(&m.assignmentCount),
		CapacityConflictsTotal:   atomic.LoadUint64(&m.capacityCount),
		CycleTransitionsTotal:    atomic.LoadUint64(&m.transitionCount),
		MeetingsCreatedTotal:     atomic.LoadUint64(&m.meetingCount),
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
