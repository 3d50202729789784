// Package handlers implements the HTTP handlers of the API server.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/internal/api/middleware"
	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/retrieval"
)

// respondSearchError maps facade errors to problem responses. Only
// unexpected failures are logged as errors.
func respondSearchError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		tooLarge *http.MaxBytesError
		loadErr  *encoder.LoadError
	)
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, retrieval.ErrNotFound):
		response.RespondNotFound(w, "restaurant not found")
	case errors.As(err, &tooLarge):
		middleware.RespondTooLarge(w)
	case errors.As(err, &loadErr):
		logger.Error("model unavailable", "err", err, "request_id", middleware.GetRequestID(r.Context()))
		response.RespondServiceUnavailable(w, "model unavailable, retry later")
	default:
		logger.Error("search failed", "err", err, "request_id", middleware.GetRequestID(r.Context()))
		response.RespondInternalServerError(w)
	}
}

// parseTopK reads an optional integer; an empty value yields def.
func parseTopK(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	k, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("top_k must be an integer")
	}
	return k, nil
}
