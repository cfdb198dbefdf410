package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"https-json-proxy/internal/metrics"
)

// requestCounts gathers https_json_proxy_http_requests_total keyed by "method status path".
func requestCounts(t *testing.T, m *metrics.Metrics) map[string]float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	counts := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != "https_json_proxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			key := labels["method"] + " " + labels["status_code"] + " " + labels["path_prefix"]
			counts[key] = metric.GetCounter().GetValue()
		}
	}
	return counts
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/proxy", func(c echo.Context) error {
		if c.QueryParam("url") == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing"})
		}
		return c.JSONBlob(http.StatusOK, []byte(`{}`))
	})
	e.GET("/healthz", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "draining")
	})
	e.Any("/proxy/status", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/proxy?url=https://example.com"},
		{http.MethodGet, "/proxy?url=https://example.com/other"},
		{http.MethodGet, "/proxy"},
		{http.MethodGet, "/healthz"},
		// Unknown methods are bucketed as "other"; the router answers 405.
		{"XYZZY", "/proxy/status"},
		{http.MethodGet, "/nonexistent"},
	}
	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, http.NoBody)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	counts := requestCounts(t, m)
	want := map[string]float64{
		"GET 200 /proxy":          2,
		"GET 400 /proxy":          1,
		"GET 503 /healthz":        1,
		"other 405 /proxy/status": 1,
		"GET 404 other":           1,
	}
	for key, v := range want {
		if counts[key] != v {
			t.Errorf("requests_total{%s} = %v, want %v (all: %v)", key, counts[key], v, counts)
		}
	}
}

func TestMetricsMiddleware_RecordsDurationAndInFlight(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/proxy", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`[]`))
	})

	req := httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var samples uint64
	inFlight := -1.0
	for _, f := range families {
		switch f.GetName() {
		case "https_json_proxy_http_request_duration_seconds":
			for _, metric := range f.GetMetric() {
				samples += metric.GetHistogram().GetSampleCount()
			}
		case "https_json_proxy_http_requests_in_flight":
			inFlight = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if samples != 1 {
		t.Errorf("duration samples = %d, want 1", samples)
	}
	if inFlight != 0 {
		t.Errorf("in-flight gauge = %v, want 0 after the request completes", inFlight)
	}
}
