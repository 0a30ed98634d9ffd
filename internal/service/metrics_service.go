package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes reported to Prometheus.
const (
	OutcomeAdmitted  = "admitted"
	OutcomeReplayed  = "replayed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the gate and its HTTP surface.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	admissions       *prometheus.CounterVec
	conflictsFound   prometheus.Histogram
	storeDuration    *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	auditDeliveries  *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
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

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_outcomes_total",
		Help: "Admission decisions by operation and outcome",
	}, []string{"operation", "outcome"})

	conflictsFound := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "admission_conflicts_per_rejection",
		Help:    "Number of conflicting entries reported on a rejection",
		Buckets: []float64{1, 2, 3, 5, 10, 25},
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Latency of interval store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation"})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operation_errors_total",
		Help: "Interval store operations that returned an error",
	}, []string{"backend", "operation"})

	auditDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_deliveries_total",
		Help: "Activity entries delivered to each sink",
	}, []string{"sink", "result"})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissions, conflictsFound, storeDuration, storeErrors, auditDeliveries, rateLimited, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		admissions:       admissions,
		conflictsFound:   conflictsFound,
		storeDuration:    storeDuration,
		storeErrors:      storeErrors,
		auditDeliveries:  auditDeliveries,
		rateLimitedTotal: rateLimited,
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
}

// ObserveAdmission counts one gate decision. conflicts is only meaningful for rejections.
func (m *MetricsService) ObserveAdmission(operation, outcome string, conflicts int) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(operation, outcome).Inc()
	if outcome == OutcomeRejected && conflicts > 0 {
		m.conflictsFound.Observe(float64(conflicts))
	}
}

// ObserveStoreOperation records store latency and failures per backend.
func (m *MetricsService) ObserveStoreOperation(backend, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(backend, operation).Inc()
	}
}

// ObserveAuditDelivery counts sink deliveries.
func (m *MetricsService) ObserveAuditDelivery(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.auditDeliveries.WithLabelValues(sink, result).Inc()
}

// ObserveRateLimited counts a throttled request.
func (m *MetricsService) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}
