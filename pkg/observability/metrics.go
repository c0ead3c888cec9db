package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Saga metrics
	SagaStepsTotal   *prometheus.CounterVec
	SagaStepDuration *prometheus.HistogramVec
	SagaRunsTotal    *prometheus.CounterVec

	// Approval metrics
	TransitionsTotal *prometheus.CounterVec

	// Control plane metrics
	RetryAttemptsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Reconciler metrics
	ReconciledTotal  *prometheus.CounterVec
	ReconcileLastRun prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitaccess_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		SagaStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_saga_steps_total",
				Help: "Total number of saga steps executed",
			},
			[]string{"saga", "step", "status"},
		),
		SagaStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitaccess_saga_step_duration_seconds",
				Help:    "Saga step duration in seconds, including retries",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"saga", "step"},
		),
		SagaRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_saga_runs_total",
				Help: "Total number of completed saga runs",
			},
			[]string{"saga", "status"},
		),

		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_status_transitions_total",
				Help: "Total number of approval request status transitions attempted",
			},
			[]string{"from", "to", "result"},
		),

		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_retry_attempts_total",
				Help: "Total number of retried control plane calls",
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		ReconciledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitaccess_reconciled_permissions_total",
				Help: "Total number of permissions checked by the reconciler",
			},
			[]string{"outcome"},
		),
		ReconcileLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jitaccess_reconcile_last_run_timestamp_seconds",
				Help: "Unix time of the last completed reconcile run",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SagaStepsTotal,
		m.SagaStepDuration,
		m.SagaRunsTotal,
		m.TransitionsTotal,
		m.RetryAttemptsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReconciledTotal,
		m.ReconcileLastRun,
	)

	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveSagaStep records one saga step
func (m *Metrics) ObserveSagaStep(saga, step string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.SagaStepsTotal.WithLabelValues(saga, step, statusLabel(err)).Inc()
	m.SagaStepDuration.WithLabelValues(saga, step).Observe(d.Seconds())
}

// ObserveSagaRun records the outcome of a whole saga
func (m *Metrics) ObserveSagaRun(saga string, err error) {
	if m == nil {
		return
	}
	m.SagaRunsTotal.WithLabelValues(saga, statusLabel(err)).Inc()
}

// RecordTransition records a conditional status write
func (m *Metrics) RecordTransition(from, to string, applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "rejected"
	}
	m.TransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordRetry records a retried control plane call
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordCacheHit records a cache hit for the given layer
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given layer
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordReconciled records the outcome for one reconciled permission
func (m *Metrics) RecordReconciled(outcome string) {
	if m == nil {
		return
	}
	m.ReconciledTotal.WithLabelValues(outcome).Inc()
}

// MarkReconcileRun records the completion time of a reconcile run
func (m *Metrics) MarkReconcileRun(at time.Time) {
	if m == nil {
		return
	}
	m.ReconcileLastRun.Set(float64(at.Unix()))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the matched route template rather than the raw
// path so ids do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
