// Package fusion turns a text and/or image query into one composite
// embedding laid out as [text ‖ image], with a leading batch dimension of 1.
//
// A modality that is absent, or whose image failed to encode, contributes
// the zero vector of its declared dimension. Encoder load failures are not
// degraded and propagate to the caller.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/kristinmlloyd/VibeCheck/cache"
	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

// ErrInvalidQuery matches every *InvalidQueryError under errors.Is.
var ErrInvalidQuery = errors.New("invalid query")

// InvalidQueryError reports a query the caller must fix.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string { return "invalid query: " + e.Reason }

// Is reports whether target is ErrInvalidQuery.
func (e *InvalidQueryError) Is(target error) bool { return target == ErrInvalidQuery }

// State is the outcome of encoding one modality.
type State int

const (
	Absent State = iota
	Present
	FailedToEncode
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case FailedToEncode:
		return "failed"
	default:
		return "absent"
	}
}

// Part is one modality of a fused query. Vector is set only when State is
// Present; Err only when it is FailedToEncode.
type Part struct {
	State  State
	Vector []float32
	Err    error
}

// Query is a caller's search input. A nil Text is absent; a non-nil empty
// Text is encoded.
type Query struct {
	Text  *string
	Image image.Image
}

// Fused is a composite query embedding.
type Fused struct {
	// Batch holds exactly one row of TextDim+ImageDim values.
	Batch [][]float32
	Text  Part
	Image Part
}

// Vector returns the single query row.
func (f *Fused) Vector() []float32 { return f.Batch[0] }

// Models is the encoder access a Fuser needs. *encoder.Bank implements it.
type Models interface {
	Info() encoder.Info
	TextEncoder(ctx context.Context) (encoder.TextEncoder, error)
	ImageEncoder(ctx context.Context) (encoder.ImageEncoder, encoder.Preprocessor, error)
}

// Fuser builds composite query embeddings.
type Fuser struct {
	models    Models
	textDim   int
	imageDim  int
	logger    *slog.Logger
	metrics   *observe.Metrics
	cacheSize int
	textCache *cache.LoaderCache[string, []float32]
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fuser) { f.logger = l }
}

// WithMetrics enables encode and degradation metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(f *Fuser) { f.metrics = m }
}

// WithTextCache memoizes up to size text embeddings. Zero disables it.
func WithTextCache(size int) Option {
	return func(f *Fuser) { f.cacheSize = size }
}

// NewFuser returns a Fuser over models. Dimensions come from models.Info,
// so no model is loaded here.
func NewFuser(models Models, opts ...Option) (*Fuser, error) {
	info := models.Info()
	if info.TextDim < 1 || info.ImageDim < 1 {
		return nil, fmt.Errorf("fusion: invalid dimensions text=%d image=%d", info.TextDim, info.ImageDim)
	}
	f := &Fuser{
		models:   models,
		textDim:  info.TextDim,
		imageDim: info.ImageDim,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.cacheSize > 0 {
		c, err := cache.NewLoaderCache[string, []float32](f.cacheSize, func(s string) string { return s })
		if err != nil {
			return nil, fmt.Errorf("fusion: %w", err)
		}
		f.textCache = c
	}
	return f, nil
}

// Info returns the model ids and dimensions of the underlying encoders.
func (f *Fuser) Info() encoder.Info { return f.models.Info() }

// TextDim returns the width of the text sub-vector.
func (f *Fuser) TextDim() int { return f.textDim }

// ImageDim returns the width of the image sub-vector.
func (f *Fuser) ImageDim() int { return f.imageDim }

// Dim returns the composite width.
func (f *Fuser) Dim() int { return f.textDim + f.imageDim }

// Fuse encodes q into a composite embedding.
func (f *Fuser) Fuse(ctx context.Context, q Query) (*Fused, error) {
	if q.Text == nil && q.Image == nil {
		return nil, &InvalidQueryError{Reason: "text or image is required"}
	}

	out := &Fused{}
	if q.Text != nil {
		v, err := f.encodeText(ctx, *q.Text)
		if err != nil {
			return nil, err
		}
		out.Text = Part{State: Present, Vector: v}
	}
	if q.Image != nil {
		part, err := f.encodeImage(ctx, q.Image)
		if err != nil {
			return nil, err
		}
		out.Image = part
	}

	row, err := vector.Concat(out.Text.Vector, f.textDim, out.Image.Vector, f.imageDim)
	if err != nil {
		return nil, fmt.Errorf("fusion: %w", err)
	}
	out.Batch = [][]float32{row}
	return out, nil
}

// EncodeText returns the normalized text embedding of text, consulting the
// text cache when one is configured.
func (f *Fuser) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return f.encodeText(ctx, text)
}

func (f *Fuser) encodeText(ctx context.Context, text string) ([]float32, error) {
	if f.textCache == nil {
		return f.loadText(ctx, text)
	}
	v, hit, err := f.textCache.Get(ctx, text, f.loadText)
	if err != nil {
		return nil, err
	}
	f.metrics.RecordCacheLookup(ctx, hit)
	// cached vectors are shared; callers get their own copy
	return slices.Clone(v), nil
}

func (f *Fuser) loadText(ctx context.Context, text string) ([]float32, error) {
	enc, err := f.models.TextEncoder(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	v, err := enc.EncodeText(ctx, text)
	f.metrics.RecordEncode(ctx, encoder.ModalityText, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("fusion: encode text: %w", err)
	}
	if v, err = vector.Normalize(v); err != nil {
		return nil, fmt.Errorf("fusion: encode text: %w", err)
	}
	return v, nil
}

// encodeImage returns a FailedToEncode part for any per-image failure. Only
// a model load failure is returned as an error.
func (f *Fuser) encodeImage(ctx context.Context, img image.Image) (Part, error) {
	enc, pre, err := f.models.ImageEncoder(ctx)
	if err != nil {
		return Part{}, err
	}
	start := time.Now()
	v, err := EncodeImage(ctx, enc, pre, img)
	f.metrics.RecordEncode(ctx, encoder.ModalityImage, time.Since(start))
	if err != nil {
		f.logger.Warn("image query encoding failed, using zero vector", "err", err)
		f.metrics.RecordDegraded(ctx, encoder.ModalityImage, "query")
		return Part{State: FailedToEncode, Err: err}, nil
	}
	return Part{State: Present, Vector: v}, nil
}

// EncodeImage preprocesses img, encodes it and L2-normalizes the result.
func EncodeImage(ctx context.Context, enc encoder.ImageEncoder, pre encoder.Preprocessor, img image.Image) ([]float32, error) {
	pixels, err := pre.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	v, err := enc.EncodeImage(ctx, pixels)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(v) != enc.Dim() {
		return nil, fmt.Errorf("encode: got %d dims, want %d", len(v), enc.Dim())
	}
	return vector.Normalize(v)
}
