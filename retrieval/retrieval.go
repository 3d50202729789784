// Package retrieval is the single search entry point. A Recommender fuses a
// query, searches the snapshot index, maps rows to restaurant identifiers
// and enriches each hit from the record store.
//
// Every result carries the raw index score as Distance and
// Similarity = 1/(1+Distance). The transform is monotone decreasing in
// distance and maps [0, ∞) onto (0, 1]; it is not a calibrated probability.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/fusion"
	"github.com/kristinmlloyd/VibeCheck/idmap"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
	"github.com/kristinmlloyd/VibeCheck/store"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

// DefaultTopK is the number of results returned when no WithTopK option is
// given.
const DefaultTopK = 5

// Query types used in logs and metrics.
const (
	QueryText       = "text"
	QueryImage      = "image"
	QueryMultimodal = "multimodal"
	QuerySimilar    = "similar"
)

// ErrInvalidQuery matches every invalid-query error under errors.Is.
var ErrInvalidQuery = fusion.ErrInvalidQuery

// ErrNotFound is returned by SimilarTo for an identifier that is not in the
// snapshot.
var ErrNotFound = errors.New("retrieval: restaurant not in index")

// InvalidQueryError reports a query the caller must fix.
type InvalidQueryError = fusion.InvalidQueryError

// ConfigError reports components that cannot be served together.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "retrieval: configuration: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// Fuser builds composite query vectors. *fusion.Fuser implements it.
type Fuser interface {
	Fuse(ctx context.Context, q fusion.Query) (*fusion.Fused, error)
	Info() encoder.Info
}

// Records looks up display records. *store.Store implements it.
type Records interface {
	Get(ctx context.Context, id string, detail store.Detail) (*store.Restaurant, bool, error)
}

// Result is a restaurant record with its score.
type Result struct {
	store.Restaurant
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
	// TextScore and ImageScore are inner products between the query and the
	// row within each modality, set when the query has that modality.
	TextScore  *float64 `json:"text_score,omitempty"`
	ImageScore *float64 `json:"image_score,omitempty"`
}

// Similarity converts an L2 distance to 1/(1+d).
func Similarity(d float64) float64 { return 1 / (1 + d) }

// ScoreSimilarity maps an index score under metric m into [0, 1], higher
// meaning closer. L2 distances use Similarity. Inner products of composite
// vectors lie in [-2, 2] and map linearly to (s+2)/4, clamped.
func ScoreSimilarity(m index.Metric, d float64) float64 {
	if m != index.MetricInnerProduct {
		return Similarity(d)
	}
	return min(max((d+2)/4, 0), 1)
}

// Recommender answers searches against one immutable snapshot.
type Recommender struct {
	fuser    Fuser
	idx      index.Index
	ids      *idmap.Map
	meta     snapshot.Meta
	records  Records
	textDim  int
	imageDim int
	detail   store.Detail
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Recommender) { r.logger = l } }

// WithMetrics enables search metrics.
func WithMetrics(m *observe.Metrics) Option { return func(r *Recommender) { r.metrics = m } }

// WithDetail sets the record detail level of results. Default:
// store.Summary.
func WithDetail(d store.Detail) Option { return func(r *Recommender) { r.detail = d } }

// New validates that the fuser, snapshot and record store fit together. A
// mismatch is a *ConfigError and no Recommender is returned.
func New(f Fuser, snap *snapshot.Snapshot, records Records, opts ...Option) (*Recommender, error) {
	if f == nil || snap == nil || records == nil {
		return nil, &ConfigError{Err: errors.New("fuser, snapshot and record store are required")}
	}
	if snap.Index == nil || snap.IDs == nil {
		return nil, &ConfigError{Err: errors.New("snapshot has no index or identifier map")}
	}
	if err := idmap.CheckAligned(snap.IDs, snap.Index.Rows()); err != nil {
		return nil, &ConfigError{Err: err}
	}
	info := f.Info()
	if info.TextDim+info.ImageDim != snap.Index.Dim() {
		return nil, &ConfigError{Err: fmt.Errorf("encoders produce %d+%d dims, index has %d", info.TextDim, info.ImageDim, snap.Index.Dim())}
	}
	if snap.Meta.TextDim != 0 && (snap.Meta.TextDim != info.TextDim || snap.Meta.ImageDim != info.ImageDim) {
		return nil, &ConfigError{Err: fmt.Errorf("snapshot built with %d+%d dims, encoders produce %d+%d",
			snap.Meta.TextDim, snap.Meta.ImageDim, info.TextDim, info.ImageDim)}
	}
	if m := snap.Meta.TextModel; m != "" && m != info.TextModel {
		return nil, &ConfigError{Err: fmt.Errorf("snapshot text model %q, configured %q", m, info.TextModel)}
	}
	if m := snap.Meta.ImageModel; m != "" && m != info.ImageModel {
		return nil, &ConfigError{Err: fmt.Errorf("snapshot image model %q, configured %q", m, info.ImageModel)}
	}

	r := &Recommender{
		fuser:    f,
		idx:      snap.Index,
		ids:      snap.IDs,
		meta:     snap.Meta,
		records:  records,
		textDim:  info.TextDim,
		imageDim: info.ImageDim,
		detail:   store.Summary,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Meta returns the metadata of the served snapshot.
func (r *Recommender) Meta() snapshot.Meta { return r.meta }

// Rows returns the number of indexed restaurants.
func (r *Recommender) Rows() int { return r.idx.Rows() }

// SearchOption configures one search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK int
}

// WithTopK sets the number of results. Values above the corpus size are
// clamped; values below 1 are rejected.
func WithTopK(k int) SearchOption { return func(c *searchConfig) { c.topK = k } }

// TopK returns the number of results opts request, before validation.
func TopK(opts ...SearchOption) int {
	c := searchConfig{topK: DefaultTopK}
	for _, o := range opts {
		o(&c)
	}
	return c.topK
}

func newSearchConfig(opts []SearchOption) (searchConfig, error) {
	c := searchConfig{topK: TopK(opts...)}
	if c.topK < 1 {
		return c, &InvalidQueryError{Reason: fmt.Sprintf("top_k must be at least 1, got %d", c.topK)}
	}
	return c, nil
}

// SearchByText ranks restaurants by a text query. The empty string is a
// valid query.
func (r *Recommender) SearchByText(ctx context.Context, text string, opts ...SearchOption) ([]Result, error) {
	return r.search(ctx, QueryText, fusion.Query{Text: &text}, opts)
}

// SearchByImage ranks restaurants by an image query.
func (r *Recommender) SearchByImage(ctx context.Context, img image.Image, opts ...SearchOption) ([]Result, error) {
	if img == nil {
		return nil, &InvalidQueryError{Reason: "image is required"}
	}
	return r.search(ctx, QueryImage, fusion.Query{Image: img}, opts)
}

// SearchMultimodal ranks restaurants by optional text and optional image.
// At least one must be given.
func (r *Recommender) SearchMultimodal(ctx context.Context, text *string, img image.Image, opts ...SearchOption) ([]Result, error) {
	return r.search(ctx, QueryMultimodal, fusion.Query{Text: text, Image: img}, opts)
}

func (r *Recommender) search(ctx context.Context, queryType string, q fusion.Query, opts []SearchOption) ([]Result, error) {
	start := time.Now()
	cfg, err := newSearchConfig(opts)
	if err != nil {
		return nil, err
	}
	fused, err := r.fuser.Fuse(ctx, q)
	if err != nil {
		return nil, err
	}
	hits, err := r.idx.Search(fused.Batch, cfg.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}
	results, err := r.enrich(ctx, hits[0], fused.Vector(), fused.Text.State == fusion.Present, fused.Image.State == fusion.Present, -1)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordSearch(ctx, queryType, time.Since(start))
	r.logger.Debug("search", "type", queryType, "top_k", cfg.topK, "results", len(results),
		"text", fused.Text.State, "image", fused.Image.State, "elapsed", time.Since(start))
	return results, nil
}

// SimilarTo ranks the restaurants nearest to the indexed vector of id,
// excluding id itself.
func (r *Recommender) SimilarTo(ctx context.Context, id string, opts ...SearchOption) ([]Result, error) {
	start := time.Now()
	cfg, err := newSearchConfig(opts)
	if err != nil {
		return nil, err
	}
	row, ok := r.ids.Row(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q := r.idx.Vector(row)
	// One extra neighbor covers the query row itself.
	k := min(cfg.topK, r.idx.Rows()-1) + 1
	hits, err := r.idx.Search([][]float32{q}, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}
	hasText := !isZero(q[:r.textDim])
	hasImage := !isZero(q[r.textDim:])
	results, err := r.enrich(ctx, hits[0], q, hasText, hasImage, row)
	if err != nil {
		return nil, err
	}
	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}
	r.metrics.RecordSearch(ctx, QuerySimilar, time.Since(start))
	return results, nil
}

// enrich resolves hits in rank order. Hits whose record no longer exists
// are skipped; skip is a row to leave out, or -1.
func (r *Recommender) enrich(ctx context.Context, hits []index.Neighbor, q []float32, hasText, hasImage bool, skip int) ([]Result, error) {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Row == skip {
			continue
		}
		id, ok := r.ids.Lookup(h.Row)
		if !ok {
			return nil, fmt.Errorf("retrieval: row %d outside identifier map", h.Row)
		}
		rec, found, err := r.records.Get(ctx, id, r.detail)
		if err != nil {
			return nil, fmt.Errorf("retrieval: fetch %s: %w", id, err)
		}
		if !found {
			r.logger.Debug("skipping stale index entry", "restaurant_id", id, "row", h.Row)
			r.metrics.RecordStaleID(ctx)
			continue
		}
		res := Result{Restaurant: *rec, Distance: h.Distance, Similarity: ScoreSimilarity(r.idx.Metric(), h.Distance)}
		row := r.idx.Vector(h.Row)
		if hasText {
			s, _ := vector.Dot(q[:r.textDim], row[:r.textDim])
			res.TextScore = &s
		}
		if hasImage {
			s, _ := vector.Dot(q[r.textDim:], row[r.textDim:])
			res.ImageScore = &s
		}
		results = append(results, res)
	}
	return results, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
