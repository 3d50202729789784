// Package openai provides a hosted text encoder backed by the OpenAI
// embeddings API. Image encoding is delegated to another loader.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

// DefaultModel is the default OpenAI embeddings model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// TextEncoder implements encoder.TextEncoder by calling the embeddings
// endpoint with the dimensions parameter set to Dim.
type TextEncoder struct {
	client oai.Client
	model  string
	dim    int
}

var _ encoder.TextEncoder = (*TextEncoder)(nil)

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for TextEncoder.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// NewTextEncoder returns an encoder producing dim-sized embeddings. If model
// is empty, DefaultModel is used.
func NewTextEncoder(apiKey, model string, dim int, opts ...Option) (*TextEncoder, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if dim < 1 {
		return nil, fmt.Errorf("openai: invalid dimension %d", dim)
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &TextEncoder{client: oai.NewClient(reqOpts...), model: model, dim: dim}, nil
}

// Dim implements encoder.TextEncoder.
func (e *TextEncoder) Dim() int { return e.dim }

// Model returns the embeddings model id.
func (e *TextEncoder) Model() string { return e.model }

// EncodeText implements encoder.TextEncoder.
func (e *TextEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model:      e.model,
		Dimensions: param.NewOpt(int64(e.dim)),
		Input: oai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: empty response")
	}
	v := make([]float32, len(resp.Data[0].Embedding))
	for i, x := range resp.Data[0].Embedding {
		v[i] = float32(x)
	}
	if len(v) != e.dim {
		return nil, fmt.Errorf("openai: embedding has %d dims, want %d", len(v), e.dim)
	}
	return vector.Normalize(v)
}

// Loader serves text from a TextEncoder and delegates image models to
// another encoder.Loader.
type Loader struct {
	text  *TextEncoder
	image encoder.Loader
}

var _ encoder.Loader = (*Loader)(nil)

// NewLoader combines the hosted text encoder with image models from inner.
func NewLoader(text *TextEncoder, inner encoder.Loader) *Loader {
	return &Loader{text: text, image: inner}
}

// Info implements encoder.Loader.
func (l *Loader) Info() encoder.Info {
	info := l.image.Info()
	info.TextModel = l.text.model
	info.TextDim = l.text.dim
	return info
}

// SelectDevice implements encoder.Loader.
func (l *Loader) SelectDevice(preferred encoder.Device) encoder.Device {
	return l.image.SelectDevice(preferred)
}

// LoadText implements encoder.Loader.
func (l *Loader) LoadText(ctx context.Context, _ encoder.Device) (encoder.TextEncoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.text, nil
}

// LoadImage implements encoder.Loader.
func (l *Loader) LoadImage(ctx context.Context, device encoder.Device) (encoder.ImageEncoder, encoder.Preprocessor, error) {
	return l.image.LoadImage(ctx, device)
}
