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

// Approval outcomes recorded by the workflow.
const (
	OutcomeApproved          = "approved"
	OutcomeRejected          = "rejected"
	OutcomeMintFailed        = "mint_failed"
	OutcomeRenderFailed      = "render_failed"
	OutcomeCommitFailed      = "commit_failed"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeUnauthenticated   = "unauthenticated"
)

// Tolerated approval steps. A failure here leaves the approval committed.
const (
	WarningStepUpload = "upload"
	WarningStepNotify = "notify"
)

// MetricsService encapsulates Prometheus instrumentation for the certificate workflow.
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
	submissions     *prometheus.CounterVec
	approvals       *prometheus.CounterVec
	warnings        *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	mintAttempts    prometheus.Histogram
	stepDuration    *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors on a private registry.
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

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsurat_submissions_total",
		Help: "Certificate requests filed by patients",
	}, []string{"type"})

	approvals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsurat_approvals_total",
		Help: "Approval attempts by final outcome",
	}, []string{"outcome"})

	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsurat_approval_warnings_total",
		Help: "Tolerated step failures during committed approvals",
	}, []string{"step"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsurat_verifications_total",
		Help: "Public certificate verification lookups",
	}, []string{"result"})

	mintAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "medsurat_mint_attempts",
		Help:    "Candidates drawn per certificate ID",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	})

	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medsurat_workflow_step_seconds",
		Help:    "Duration of approval workflow steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		submissions, approvals, warnings, verifications, mintAttempts, stepDuration, goroutines)

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
		submissions:     submissions,
		approvals:       approvals,
		warnings:        warnings,
		verifications:   verifications,
		mintAttempts:    mintAttempts,
		stepDuration:    stepDuration,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
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

// RecordSubmission counts a filed request.
func (m *MetricsService) RecordSubmission(certType string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(certType).Inc()
}

// RecordApprovalOutcome counts a workflow outcome.
func (m *MetricsService) RecordApprovalOutcome(outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// RecordApprovalWarning counts a tolerated failure of step.
func (m *MetricsService) RecordApprovalWarning(step string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(step).Inc()
}

// RecordVerification counts a verification lookup by result.
func (m *MetricsService) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveMintAttempts records how many candidates a mint needed.
func (m *MetricsService) ObserveMintAttempts(attempts int) {
	if m == nil {
		return
	}
	m.mintAttempts.Observe(float64(attempts))
}

// ObserveStep records the duration of a workflow step.
func (m *MetricsService) ObserveStep(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}
