package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/photos"
)

// PhotoHandler streams vibe photos from a photo source.
type PhotoHandler struct {
	src    photos.Source
	logger *slog.Logger
}

// NewPhotoHandler creates a photo handler.
func NewPhotoHandler(src photos.Source, logger *slog.Logger) *PhotoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoHandler{src: src, logger: logger}
}

// Serve handles GET /images/*.
func (h *PhotoHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	rc, err := h.src.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, photos.ErrNotFound) || errors.Is(err, photos.ErrInvalidName) {
			response.RespondNotFound(w, "image not found")
			return
		}
		h.logger.Error("photo open failed", "path", name, "err", err)
		response.RespondInternalServerError(w)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("photo copy interrupted", "path", name, "err", err)
	}
}
