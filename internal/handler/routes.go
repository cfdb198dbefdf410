package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"https-json-proxy/internal/config"
	"https-json-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// CORS applies to /proxy only; OPTIONS preflights are answered by the CORS middleware.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler) {
	cors := echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Server.CORSAllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	})

	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Match([]string{http.MethodGet, http.MethodOptions}, "/proxy", proxy.Handle, cors)
}

// RegisterMetrics exposes the Prometheus registry when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
