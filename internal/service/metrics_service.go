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

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	eventsEmitted   *prometheus.CounterVec
	sinkFailures    *prometheus.CounterVec
	conflictsFound  *prometheus.CounterVec
	expansions      *prometheus.CounterVec
	sweepDuration   prometheus.Observer
	sweepCompleted  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the engine's Prometheus collectors.
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
		Name:    "catalog_cache_latency_seconds",
		Help:    "Latency for catalog cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_cache_hit_ratio",
		Help: "Ratio of catalog cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total catalog cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total catalog cache misses",
	})

	eventsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_events_total",
		Help: "Lifecycle events emitted, by type",
	}, []string{"type"})

	sinkFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_sink_failures_total",
		Help: "Event sink delivery failures, by sink",
	}, []string{"sink"})

	conflictsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_total",
		Help: "Conflicts reported by mutation attempts, by kind",
	}, []string{"kind"})

	expansions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "template_expansions_total",
		Help: "Template expansion runs, by mode and outcome",
	}, []string{"mode", "outcome"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "completion_sweep_duration_seconds",
		Help:    "Duration of completion sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	sweepCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "completion_sweep_sessions_total",
		Help: "Sessions promoted to COMPLETED by the sweeper",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio,
		cacheHits, cacheMisses, eventsEmitted, sinkFailures, conflictsFound,
		expansions, sweepDuration, sweepCompleted, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		eventsEmitted:   eventsEmitted,
		sinkFailures:    sinkFailures,
		conflictsFound:  conflictsFound,
		expansions:      expansions,
		sweepDuration:   sweepDuration,
		sweepCompleted:  sweepCompleted,
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

// ObserveHTTPRequest records request duration and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records catalog cache hit/miss metrics and updates the hit ratio.
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveEvent counts an emitted lifecycle event.
func (m *MetricsService) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// ObserveSinkFailure counts a failed sink delivery.
func (m *MetricsService) ObserveSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// ObserveConflict counts a reported conflict record.
func (m *MetricsService) ObserveConflict(kind string) {
	if m == nil {
		return
	}
	m.conflictsFound.WithLabelValues(kind).Inc()
}

// ObserveExpansion counts a template expansion run.
func (m *MetricsService) ObserveExpansion(mode, outcome string) {
	if m == nil {
		return
	}
	m.expansions.WithLabelValues(mode, outcome).Inc()
}

// ObserveSweep records one completion sweep run.
func (m *MetricsService) ObserveSweep(completed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepCompleted.Add(float64(completed))
}
