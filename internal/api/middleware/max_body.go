package middleware

import (
	"net/http"

	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
)

// MaxBody limits request bodies to maxBytes. Requests that declare a larger
// Content-Length get 413 immediately; handlers reading past the limit see a
// *http.MaxBytesError. Zero or negative disables the limit.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				RespondTooLarge(w)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RespondTooLarge writes the 413 problem used for oversized bodies.
func RespondTooLarge(w http.ResponseWriter) {
	response.RespondError(w, http.StatusRequestEntityTooLarge,
		"Request Entity Too Large", "request body exceeds maximum allowed size")
}
