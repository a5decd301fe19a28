package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func paymentRouter(metrics *observability.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(Metrics(metrics))
	r.Post("/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/v1/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/v1/payments/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	return r
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	r := paymentRouter(metrics)

	// Two different payment ids land on the same route pattern, so the
	// counter must not fan out per URL.
	for _, path := range []string{"/v1/payments/111", "/v1/payments/222"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/payments/{id}", "200"))
	assert.Equal(t, 2.0, got)
}

func TestMetrics_LabelsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	r := paymentRouter(metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/v1/payments", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/v1/payments/111/cancel", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("POST", "/v1/payments", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("POST", "/v1/payments/{id}/cancel", "409")))
}

func TestMetrics_ObservesDurationPerRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	r := paymentRouter(metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/payments/111", nil))

	// One histogram series, keyed by method and route pattern.
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestDuration, "test_http_request_duration_seconds"))
}

func TestMetrics_FallsBackToPathWithoutRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	handler := Metrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200"))
	assert.Equal(t, 1.0, got)
}

func TestStatusWriter_CapturesExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.WriteHeader(http.StatusCreated)

	assert.Equal(t, http.StatusCreated, sw.statusCode)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestStatusWriter_DefaultsTo200OnBareWrite(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.Write([]byte(`{"status":"settled"}`))

	assert.Equal(t, http.StatusOK, sw.statusCode)
}
