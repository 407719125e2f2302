package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestRegistryCarriesComponentCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Track("ledger:integrity").End(nil))

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_jobs_total{job="ledger:integrity",status="success"} 1`)
	require.Contains(t, body, "go_goroutines")
	require.Contains(t, body, "go_build_info")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"title":"State Conflict"}`))
	}))

	for _, id := range []string{"4", "5"} {
		rctx := chi.NewRouteContext()
		rctx.RoutePatterns = []string{"/api/settlements/sales/{id}/complete"}
		req := httptest.NewRequest(http.MethodPost, "/api/settlements/sales/"+id+"/complete", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusConflict, rr.Code)
	}

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="409",method="POST",route="/api/settlements/sales/{id}/complete"} 2`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_count{route="/api/settlements/sales/{id}/complete"} 2`)
	require.Contains(t, body, `odyssey_http_response_size_bytes_count{route="/api/settlements/sales/{id}/complete"} 2`)
	require.Contains(t, body, "odyssey_http_requests_in_flight 0")
}

func TestMiddlewareDefaultsStatusAndRoute(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Contains(t, scrape(t, metrics), `odyssey_http_requests_total{code="200",method="GET",route="unmatched"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var metrics *Metrics
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotNil(t, metrics.Registerer())

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rr = httptest.NewRecorder()
	metrics.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
}
