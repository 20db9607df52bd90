package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dashboard-backend/internal/storage"
)

// SnapshotHandler serves archived dashboard snapshots.
// It depends on the storage.Store interface, not a specific implementation.
type SnapshotHandler struct {
	store storage.Store
	log   *zap.Logger
}

// NewSnapshotHandler creates a SnapshotHandler with the given storage backend.
func NewSnapshotHandler(store storage.Store, log *zap.Logger) *SnapshotHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotHandler{store: store, log: log}
}

// Latest handles GET /api/dashboard/snapshots/latest
func (h *SnapshotHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, storage.LatestSnapshotPath)
}

// ServeFile handles GET /api/files/*.
// When the store has a public https URL (R2), redirects to the CDN;
// otherwise streams the file from the store.
func (h *SnapshotHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filePath := strings.TrimLeft(chi.URLParam(r, "*"), "/")
	if filePath == "" {
		JSONError(w, http.StatusBadRequest, "File path required.")
		return
	}

	if url := h.store.URL(filePath); strings.HasPrefix(url, "https://") {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	h.stream(w, r, filePath)
}

func (h *SnapshotHandler) stream(w http.ResponseWriter, r *http.Request, p string) {
	rc, err := h.store.Open(r.Context(), p)
	if errors.Is(err, storage.ErrNotFound) {
		JSONError(w, http.StatusNotFound, "File not found.")
		return
	}
	if err != nil {
		h.log.Error("failed to open file", zap.String("path", p), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to read file.")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("file stream interrupted", zap.String("path", p), zap.Error(err))
	}
}
