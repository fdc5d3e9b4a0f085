package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/api/middleware"
)

func newMetricsRouter(t *testing.T, reg *prometheus.Registry, status int) http.Handler {
	t.Helper()

	metrics, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/gates/{code}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func TestNewMetrics_RegistersTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := middleware.NewMetrics(reg)
	require.NoError(t, err)
	second, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	assert.NotNil(t, first)
	assert.NotNil(t, second)
}

func TestMetrics_Middleware_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newMetricsRouter(t, reg, http.StatusOK)

	for _, code := range []string{"SOL", "SIR", "PRX"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/gates/"+code, http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
	}

	count, err := testutil.GatherAndCount(reg, "starseeker_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "path parameters must not create new series")

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "starseeker_http_requests_total" {
			continue
		}
		m := mf.GetMetric()[0]
		assert.InDelta(t, 3.0, m.GetCounter().GetValue(), 0)
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, "/v1/gates/{code}", labels["route"])
		assert.Equal(t, "GET", labels["method"])
		assert.Equal(t, "200", labels["status"])
	}
}

func TestMetrics_Middleware_RecordsErrorStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newMetricsRouter(t, reg, http.StatusServiceUnavailable)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/gates/SOL", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "starseeker_http_requests_total" {
			continue
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "status" {
				found = true
				assert.Equal(t, "503", lp.GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestMetrics_Middleware_InFlightReturnsToZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newMetricsRouter(t, reg, http.StatusOK)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/gates/SOL", http.NoBody))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "starseeker_http_requests_in_flight" {
			assert.InDelta(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue(), 0)
		}
	}
}
