package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// AuditHandler lists recorded run summaries.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

type auditJSON struct {
	ID        int64             `json:"id"`
	Event     string            `json:"event"`
	RunID     string            `json:"run_id,omitempty"`
	Summary   domain.RunSummary `json:"summary"`
	CreatedAt string            `json:"created_at"`
}

// List returns the newest entries first, optionally for one event or run.
// GET /api/audit?event=&run_id=&start=&end=&limit=&offset=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD")
		return
	}
	q := r.URL.Query()
	entries, err := h.audit.List(r.Context(), domain.AuditQuery{
		Event:    q.Get("event"),
		RunID:    q.Get("run_id"),
		ListOpts: opts,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	out := make([]auditJSON, len(entries))
	for i, e := range entries {
		out[i] = auditJSON{
			ID:        e.ID,
			Event:     e.Event,
			RunID:     e.RunID,
			Summary:   e.Summary,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
