package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

// Outcome labels shared by the feed, CRM and lead counters.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
	OutcomeUnknown = "unknown"
	OutcomeSynced  = "synced"
	OutcomeReused  = "reused"
	OutcomeWarning = "warning"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	feedFetches     *prometheus.CounterVec
	feedDuration    prometheus.Observer
	feedDropped     prometheus.Counter
	fallbacks       *prometheus.CounterVec
	crmCalls        *prometheus.CounterVec
	crmDuration     *prometheus.HistogramVec
	leadSubmissions *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	feedFailureCount     uint64
	crmFailureCount      uint64
	leadCount            uint64
	leadWarningCount     uint64
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
		Name:    "availability_cache_latency_seconds",
		Help:    "Latency for availability cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_cache_write_seconds",
		Help:    "Latency for availability cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "availability_cache_hit_ratio",
		Help: "Ratio of fresh cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Total fresh availability cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Total availability cache misses or expired entries",
	})

	feedFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_feed_fetches_total",
		Help: "Calendar feed fetches by outcome",
	}, []string{"outcome"})

	feedDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_feed_fetch_seconds",
		Help:    "Duration of calendar feed fetches",
		Buckets: prometheus.DefBuckets,
	})

	feedDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_feed_dropped_events_total",
		Help: "Feed event blocks dropped for missing or malformed dates",
	})

	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_fallbacks_total",
		Help: "Availability answers served after a failed refresh, by kind",
	}, []string{"kind"})

	crmCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_calls_total",
		Help: "Outbound CRM calls by operation and outcome",
	}, []string{"operation", "outcome"})

	crmDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_call_duration_seconds",
		Help:    "Duration of outbound CRM calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	leadSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_submissions_total",
		Help: "Inquiry submissions by CRM sync outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		feedFetches, feedDuration, feedDropped, fallbacks, crmCalls, crmDuration, leadSubmissions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		feedFetches:     feedFetches,
		feedDuration:    feedDuration,
		feedDropped:     feedDropped,
		fallbacks:       fallbacks,
		crmCalls:        crmCalls,
		crmDuration:     crmDuration,
		leadSubmissions: leadSubmissions,
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
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

// ObserveFeedFetch records one outbound feed fetch.
func (m *MetricsService) ObserveFeedFetch(outcome string, dropped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.feedFetches.WithLabelValues(outcome).Inc()
	m.feedDuration.Observe(duration.Seconds())
	if dropped > 0 {
		m.feedDropped.Add(float64(dropped))
	}
	if outcome != OutcomeOK {
		atomic.AddUint64(&m.feedFailureCount, 1)
	}
}

// RecordAvailabilityFallback counts an answer served after a failed refresh:
// OutcomeStale when a previous snapshot existed, OutcomeUnknown otherwise.
func (m *MetricsService) RecordAvailabilityFallback(kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind).Inc()
}

// ObserveCRMCall records one outbound CRM call.
func (m *MetricsService) ObserveCRMCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		atomic.AddUint64(&m.crmFailureCount, 1)
	}
	m.crmCalls.WithLabelValues(operation, outcome).Inc()
	m.crmDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLeadSubmission counts a submission by outcome.
func (m *MetricsService) RecordLeadSubmission(outcome string) {
	if m == nil {
		return
	}
	m.leadSubmissions.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.leadCount, 1)
	if outcome == OutcomeWarning {
		atomic.AddUint64(&m.leadWarningCount, 1)
	}
}

// Snapshot returns aggregated metrics for the operator summary endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
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

	return models.MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		FeedFailures:             atomic.LoadUint64(&m.feedFailureCount),
		CRMFailures:              atomic.LoadUint64(&m.crmFailureCount),
		LeadSubmissions:          atomic.LoadUint64(&m.leadCount),
		LeadWarnings:             atomic.LoadUint64(&m.leadWarningCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
