package handlers

import (
	"net/http"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
)

// Version is reported by /health.
var Version = "dev"

// ModelStatus reports encoder state. *encoder.Bank implements it.
type ModelStatus interface {
	Loaded() (text, image bool)
	Device() encoder.Device
}

// HealthHandler reports liveness and what is being served.
type HealthHandler struct {
	models ModelStatus
	meta   snapshot.Meta
}

// NewHealthHandler creates a health handler for the served snapshot.
func NewHealthHandler(models ModelStatus, meta snapshot.Meta) *HealthHandler {
	return &HealthHandler{models: models, meta: meta}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	ModelsLoaded ModelsLoaded `json:"models_loaded"`
	Device       string       `json:"device,omitempty"`
	Rows         int          `json:"rows"`
	Metric       string       `json:"metric"`
	BuildTag     string       `json:"build_tag"`
}

// ModelsLoaded tells which encoders are resident.
type ModelsLoaded struct {
	Text  bool `json:"text"`
	Image bool `json:"image"`
}

// Check handles GET /health. It never loads models.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Service:  "vibecheck-api",
		Version:  Version,
		Rows:     h.meta.Rows,
		Metric:   string(h.meta.Metric),
		BuildTag: h.meta.BuildTag,
	}
	if h.models != nil {
		resp.ModelsLoaded.Text, resp.ModelsLoaded.Image = h.models.Loaded()
		resp.Device = string(h.models.Device())
	}
	response.RespondJSON(w, http.StatusOK, resp)
}
