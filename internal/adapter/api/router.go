package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/ledger-archiver/internal/adapter/api/handler"
	"github.com/V4T54L/ledger-archiver/internal/adapter/api/middleware"
)

// NewStatusRouter creates the HTTP router exposing metrics and run status.
func NewStatusRouter(stats handler.StatsProvider, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	statusHandler := handler.NewStatusHandler(stats, logger)

	mux.HandleFunc("GET /health", statusHandler.HealthCheck)
	mux.HandleFunc("GET /status", statusHandler.GetStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return middleware.Logging(logger)(mux)
}
