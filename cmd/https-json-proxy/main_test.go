package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"https-json-proxy/internal/client"
	"https-json-proxy/internal/config"
	"https-json-proxy/internal/handler"
	"https-json-proxy/internal/metrics"
	"https-json-proxy/internal/service"
)

func TestAppOptions_ValidGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[metrics]\nenabled = true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := fx.ValidateApp(appOptions(&config.CLI{Config: path})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(&config.Config{Log: config.LogConfig{Level: tt.level, Format: "text"}})
			if !logger.Enabled(t.Context(), tt.want) {
				t.Errorf("level %s not enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(t.Context(), tt.want-1) {
				t.Errorf("level below %s unexpectedly enabled", tt.want)
			}
		})
	}
}

func TestNewEcho_ServesProxyStack(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			BodyMaxBytes: 1024,
			RateLimit:    config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100},
		},
		Fetch:   config.FetchConfig{TimeoutMillis: 1000, MaxBodyBytes: 1024},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	e := newEcho(cfg, logger, m)
	svc := service.NewFetchService(client.NewFetchClient(logger, m), cfg, logger, m)
	handler.RegisterRoutes(e, cfg, handler.NewProxyHandler(svc), handler.NewHealthHandler(svc, "test"))
	handler.RegisterMetrics(e, cfg, m)

	rec := do(e, "/proxy?url=http://example.com/data.json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Invalid URL format. Only HTTPS URLs are allowed"}` {
		t.Errorf("body = %s", got)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected X-Request-Id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	rec = do(e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `https_json_proxy_fetch_outcomes_total{outcome="invalid"} 1`) {
		t.Error("expected invalid fetch outcome to be counted")
	}
	if !strings.Contains(rec.Body.String(), `path_prefix="/proxy"`) {
		t.Error("expected inbound request metrics for /proxy")
	}
}

func do(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
