package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Saga(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveSagaStep("create_permission", "group", nil, 20*time.Millisecond)
	metrics.ObserveSagaStep("create_permission", "group", errors.New("throttled"), time.Millisecond)
	metrics.ObserveSagaRun("create_permission", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SagaStepsTotal.WithLabelValues("create_permission", "group", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SagaStepsTotal.WithLabelValues("create_permission", "group", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SagaRunsTotal.WithLabelValues("create_permission", "success")))
}

func TestMetrics_Counters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordTransition("pending", "approved", true)
	metrics.RecordTransition("pending", "approved", false)
	metrics.RecordRetry("DeletePermissionSet")
	metrics.RecordCacheHit("permission")
	metrics.RecordCacheMiss("permission")
	metrics.RecordReconciled("repaired")

	at := time.Unix(1700000000, 0)
	metrics.MarkReconcileRun(at)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("pending", "approved", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("pending", "approved", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RetryAttemptsTotal.WithLabelValues("DeletePermissionSet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("permission")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("permission")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReconciledTotal.WithLabelValues("repaired")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(metrics.ReconcileLastRun))
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.ObserveSagaStep("s", "x", nil, time.Second)
		metrics.ObserveSagaRun("s", nil)
		metrics.RecordTransition("a", "b", true)
		metrics.RecordRetry("op")
		metrics.RecordCacheHit("c")
		metrics.RecordCacheMiss("c")
		metrics.RecordReconciled("in_sync")
		metrics.MarkReconcileRun(time.Now())
	})
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/permissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/permissions/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/permissions/{id}", "404")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := HTTPMetricsMiddleware(nil)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordRetry("CreateAccountAssignment")

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	server := httptest.NewServer(serveMux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `jitaccess_retry_attempts_total{operation="CreateAccountAssignment"} 1`)
}
