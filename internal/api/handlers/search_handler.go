package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/internal/api/middleware"
	"github.com/kristinmlloyd/VibeCheck/internal/api/response"
	"github.com/kristinmlloyd/VibeCheck/retrieval"
)

// Searcher is the retrieval surface used by the API. *retrieval.Recommender
// implements it.
type Searcher interface {
	SearchByText(ctx context.Context, text string, opts ...retrieval.SearchOption) ([]retrieval.Result, error)
	SearchByImage(ctx context.Context, img image.Image, opts ...retrieval.SearchOption) ([]retrieval.Result, error)
	SearchMultimodal(ctx context.Context, text *string, img image.Image, opts ...retrieval.SearchOption) ([]retrieval.Result, error)
	SimilarTo(ctx context.Context, id string, opts ...retrieval.SearchOption) ([]retrieval.Result, error)
}

// SearchHandler serves the search endpoints.
type SearchHandler struct {
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// NewSearchHandler creates a search handler. topK is used when a request
// does not specify one.
func NewSearchHandler(searcher Searcher, topK int, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{searcher: searcher, topK: topK, logger: logger}
}

// TextSearchRequest is the body of POST /api/search/text.
type TextSearchRequest struct {
	Query *string `json:"query"`
	TopK  *int    `json:"top_k"`
}

// SearchResponse is returned by every search endpoint.
type SearchResponse struct {
	Results   []retrieval.Result `json:"results"`
	QueryType string             `json:"query_type"`
}

// SearchText handles POST /api/search/text.
func (h *SearchHandler) SearchText(w http.ResponseWriter, r *http.Request) {
	var req TextSearchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondTooLarge(w)
			return
		}
		response.RespondBadRequest(w, "invalid request body")
		return
	}
	if req.Query == nil {
		response.RespondBadRequest(w, "query is required")
		return
	}
	topK := h.topK
	if req.TopK != nil {
		topK = *req.TopK
	}
	results, err := h.searcher.SearchByText(r.Context(), *req.Query, retrieval.WithTopK(topK))
	if err != nil {
		respondSearchError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, retrieval.QueryText, results)
}

// SearchImage handles POST /api/search/image with a multipart "file" part
// and an optional top_k query parameter.
func (h *SearchHandler) SearchImage(w http.ResponseWriter, r *http.Request) {
	topK, err := parseTopK(r.URL.Query().Get("top_k"), h.topK)
	if err != nil {
		response.RespondBadRequest(w, err.Error())
		return
	}
	img, present, err := h.formImage(r, "file")
	if err != nil {
		respondSearchError(w, r, h.logger, err)
		return
	}
	if !present {
		response.RespondBadRequest(w, "file is required")
		return
	}
	results, err := h.searcher.SearchByImage(r.Context(), img, retrieval.WithTopK(topK))
	if err != nil {
		respondSearchError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, retrieval.QueryImage, results)
}

// Search handles POST /api/search, the web form endpoint: multipart "text",
// "image" and "top_k" fields, at least one of text or image. An empty text
// field counts as absent. An image that cannot be decoded is dropped when
// text is present.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	img, present, err := h.formImage(r, "image")
	var invalid *retrieval.InvalidQueryError
	if err != nil && !errors.As(err, &invalid) {
		respondSearchError(w, r, h.logger, err)
		return
	}
	topK, perr := parseTopK(r.FormValue("top_k"), h.topK)
	if perr != nil {
		response.RespondBadRequest(w, perr.Error())
		return
	}

	var text *string
	if t := r.FormValue("text"); t != "" {
		text = &t
	}
	if invalid != nil {
		if text == nil {
			response.RespondBadRequest(w, invalid.Error())
			return
		}
		h.logger.Warn("ignoring undecodable image upload", "err", err,
			"request_id", middleware.GetRequestID(r.Context()))
		present = false
	}
	if text == nil && !present {
		response.RespondBadRequest(w, "provide text or image query")
		return
	}

	results, err := h.searcher.SearchMultimodal(r.Context(), text, img, retrieval.WithTopK(topK))
	if err != nil {
		respondSearchError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, retrieval.QueryMultimodal, results)
}

// Similar handles GET /api/restaurants/{id}/similar.
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	topK, err := parseTopK(r.URL.Query().Get("top_k"), h.topK)
	if err != nil {
		response.RespondBadRequest(w, err.Error())
		return
	}
	results, err := h.searcher.SimilarTo(r.Context(), chi.URLParam(r, "id"), retrieval.WithTopK(topK))
	if err != nil {
		respondSearchError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, retrieval.QuerySimilar, results)
}

func (h *SearchHandler) respond(w http.ResponseWriter, r *http.Request, queryType string, results []retrieval.Result) {
	h.logger.Info("search", "type", queryType, "results", len(results),
		"request_id", middleware.GetRequestID(r.Context()))
	if results == nil {
		results = []retrieval.Result{}
	}
	response.RespondJSON(w, http.StatusOK, SearchResponse{Results: results, QueryType: queryType})
}

// formImage decodes the multipart file named field. present is false when
// the request has no such part. A part that does not decode as an image
// is an *retrieval.InvalidQueryError.
func (h *SearchHandler) formImage(r *http.Request, field string) (img image.Image, present bool, err error) {
	f, _, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, false, nil
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, err
		}
		return nil, false, &retrieval.InvalidQueryError{Reason: fmt.Sprintf("malformed multipart body: %v", err)}
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	img, _, err = encoder.DecodeImage(f)
	if err != nil {
		return nil, true, &retrieval.InvalidQueryError{Reason: fmt.Sprintf("%s is not a supported image: %v", field, err)}
	}
	return img, true, nil
}
