// Package api wires the HTTP surface of the VibeCheck server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kristinmlloyd/VibeCheck/internal/api/handlers"
	"github.com/kristinmlloyd/VibeCheck/internal/api/middleware"
	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/photos"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
)

// Deps are the collaborators of the router. Photos and MetricsHandler are
// optional.
type Deps struct {
	Searcher       handlers.Searcher
	Records        handlers.RecordStore
	Models         handlers.ModelStatus
	Meta           snapshot.Meta
	Photos         photos.Source
	Metrics        *observe.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger

	TopK         int
	MaxBodyBytes int64
	RateLimit    float64
	RateBurst    int
}

// NewRouter returns the API handler.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	search := handlers.NewSearchHandler(d.Searcher, d.TopK, logger)
	restaurants := handlers.NewRestaurantHandler(d.Records, logger)
	health := handlers.NewHealthHandler(d.Models, d.Meta)

	r := chi.NewRouter()
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.RespondNotFound(w, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.RespondError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "method not allowed")
	})

	r.Get("/health", health.Check)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}
	if d.Photos != nil {
		r.Get("/images/*", handlers.NewPhotoHandler(d.Photos, logger).Serve)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateLimit, d.RateBurst))
		r.Use(middleware.MaxBody(d.MaxBodyBytes))

		r.Post("/search", search.Search)
		r.Post("/search/text", search.SearchText)
		r.Post("/search/image", search.SearchImage)
		r.Get("/restaurants/{id}", restaurants.Get)
		r.Get("/restaurants/{id}/similar", search.Similar)
		r.Get("/vibe-stats", restaurants.VibeStats)
	})
	return r
}
