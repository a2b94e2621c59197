package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/V4T54L/ledger-archiver/internal/usecase"
)

// StatsProvider exposes the progress of an archive run.
type StatsProvider interface {
	Stats() usecase.RunStats
}

// StatusHandler serves run progress and liveness.
type StatusHandler struct {
	stats  StatsProvider
	logger *slog.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(stats StatsProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{stats: stats, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus returns the current run snapshot.
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s := h.stats.Stats()
	code := http.StatusOK
	if s.State == usecase.StateFailed {
		code = http.StatusServiceUnavailable
	}
	h.respondWithJSON(w, code, s)
}

func (h *StatusHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
