package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/store"
)

// VibeStatsLimit is the number of vibes returned by /api/vibe-stats.
const VibeStatsLimit = 10

// RecordStore is the record lookup surface. *store.Store implements it.
type RecordStore interface {
	Get(ctx context.Context, id string, detail store.Detail) (*store.Restaurant, bool, error)
	TopVibes(ctx context.Context, limit int) ([]store.Vibe, error)
}

// RestaurantHandler serves restaurant details and vibe statistics.
type RestaurantHandler struct {
	records RecordStore
	logger  *slog.Logger
}

// NewRestaurantHandler creates a restaurant handler.
func NewRestaurantHandler(records RecordStore, logger *slog.Logger) *RestaurantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RestaurantHandler{records: records, logger: logger}
}

// Get handles GET /api/restaurants/{id} with full detail.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, found, err := h.records.Get(r.Context(), id, store.Full)
	if err != nil {
		h.logger.Error("restaurant lookup failed", "restaurant_id", id, "err", err)
		response.RespondInternalServerError(w)
		return
	}
	if !found {
		response.RespondNotFound(w, "restaurant not found")
		return
	}
	response.RespondJSON(w, http.StatusOK, rec)
}

// VibeStatsResponse lists the most mentioned vibes.
type VibeStatsResponse struct {
	Vibes []store.Vibe `json:"vibes"`
}

// VibeStats handles GET /api/vibe-stats.
func (h *RestaurantHandler) VibeStats(w http.ResponseWriter, r *http.Request) {
	vibes, err := h.records.TopVibes(r.Context(), VibeStatsLimit)
	if err != nil {
		h.logger.Error("vibe stats failed", "err", err)
		response.RespondInternalServerError(w)
		return
	}
	if vibes == nil {
		vibes = []store.Vibe{}
	}
	response.RespondJSON(w, http.StatusOK, VibeStatsResponse{Vibes: vibes})
}
