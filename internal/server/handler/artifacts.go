package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// ArtifactHandler lists and serves run artifacts from the blob backend.
type ArtifactHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArtifactHandler creates an ArtifactHandler.
func NewArtifactHandler(blobs domain.BlobReader, logger *slog.Logger) *ArtifactHandler {
	return &ArtifactHandler{blobs: blobs, logger: logger}
}

type artifactJSON struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
}

// List returns artifacts under ?prefix=.
// GET /api/artifacts
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list artifacts failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	out := make([]artifactJSON, len(infos))
	for i, info := range infos {
		out[i] = artifactJSON{Path: info.Path, Size: info.Size}
		if !info.LastModified.IsZero() {
			out[i].LastModified = info.LastModified.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": out})
}

// Get streams one artifact.
// GET /api/artifacts/{path...}
func (h *ArtifactHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	rc, err := h.blobs.Get(r.Context(), p)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get artifact failed",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType(p))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "handler: artifact stream interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}

func contentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
