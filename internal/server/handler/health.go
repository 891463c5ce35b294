package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe and the process mode.
type HealthHandler struct {
	mode     string
	strategy string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(mode, strategy string) *HealthHandler {
	return &HealthHandler{mode: mode, strategy: strategy}
}

// HealthCheck responds with ok, the mode and the configured strategy.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"strategy":  h.strategy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
