// Package encodertest provides a deterministic in-memory encoder.Loader for
// tests that must not load real models.
package encodertest

import (
	"context"
	"errors"
	"hash/fnv"
	"image"
	"math/rand/v2"
	"sync/atomic"

	"github.com/kristinmlloyd/VibeCheck/encoder"
)

// ErrImageEncode is returned by the fake image encoder when FailImages is
// set.
var ErrImageEncode = errors.New("encodertest: image encode failed")

// Loader is a fake encoder.Loader. Text embeddings are pseudo-random but
// stable per string; image embeddings are derived from the mean colour of
// the image. Either function can be overridden.
type Loader struct {
	TextDim  int
	ImageDim int

	// TextFunc overrides the text embedding of a string.
	TextFunc func(text string) []float32
	// ImageFunc overrides the image embedding of a mean RGB colour in [0,1].
	ImageFunc func(rgb [3]float32) []float32

	// TextLoadErr and ImageLoadErr make the corresponding load fail.
	TextLoadErr  error
	ImageLoadErr error
	// FailImages makes every image encode fail.
	FailImages bool

	TextLoads  atomic.Int32
	ImageLoads atomic.Int32
	TextCalls  atomic.Int32
	ImageCalls atomic.Int32
	// LastText is the most recently encoded string.
	LastText atomic.Pointer[string]
}

var _ encoder.Loader = (*Loader)(nil)

// New returns a Loader with the given dimensions.
func New(textDim, imageDim int) *Loader {
	return &Loader{TextDim: textDim, ImageDim: imageDim}
}

// NewBank wraps a Loader in an encoder.Bank.
func NewBank(l *Loader, opts ...encoder.Option) *encoder.Bank {
	return encoder.NewBank(l, append([]encoder.Option{encoder.WithDevice(encoder.DeviceCPU)}, opts...)...)
}

// Info implements encoder.Loader.
func (l *Loader) Info() encoder.Info {
	return encoder.Info{TextModel: "fake-text", TextDim: l.TextDim, ImageModel: "fake-image", ImageDim: l.ImageDim}
}

// SelectDevice implements encoder.Loader.
func (l *Loader) SelectDevice(encoder.Device) encoder.Device { return encoder.DeviceCPU }

// LoadText implements encoder.Loader.
func (l *Loader) LoadText(context.Context, encoder.Device) (encoder.TextEncoder, error) {
	l.TextLoads.Add(1)
	if l.TextLoadErr != nil {
		return nil, l.TextLoadErr
	}
	return textEncoder{l}, nil
}

// LoadImage implements encoder.Loader.
func (l *Loader) LoadImage(context.Context, encoder.Device) (encoder.ImageEncoder, encoder.Preprocessor, error) {
	l.ImageLoads.Add(1)
	if l.ImageLoadErr != nil {
		return nil, nil, l.ImageLoadErr
	}
	return imageEncoder{l}, meanColour{}, nil
}

type textEncoder struct{ l *Loader }

func (e textEncoder) Dim() int { return e.l.TextDim }

func (e textEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.l.TextCalls.Add(1)
	e.l.LastText.Store(&text)
	if e.l.TextFunc != nil {
		return e.l.TextFunc(text), nil
	}
	return HashVector(text, e.l.TextDim), nil
}

type imageEncoder struct{ l *Loader }

func (e imageEncoder) Dim() int { return e.l.ImageDim }

func (e imageEncoder) EncodeImage(ctx context.Context, pixels encoder.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.l.ImageCalls.Add(1)
	if e.l.FailImages {
		return nil, ErrImageEncode
	}
	if len(pixels.Data) != 3 {
		return nil, errors.New("encodertest: unexpected tensor")
	}
	rgb := [3]float32{pixels.Data[0], pixels.Data[1], pixels.Data[2]}
	if e.l.ImageFunc != nil {
		return e.l.ImageFunc(rgb), nil
	}
	v := make([]float32, e.l.ImageDim)
	for c := 0; c < 3 && c < len(v); c++ {
		v[c] = rgb[c] + 0.1
	}
	return v, nil
}

// meanColour reduces an image to its mean RGB colour, shape [1,3].
type meanColour struct{}

func (meanColour) Preprocess(img image.Image) (encoder.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return encoder.Tensor{}, errors.New("encodertest: empty image")
	}
	b := img.Bounds()
	var sum [3]float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum[0] += float64(r) / 0xffff
			sum[1] += float64(g) / 0xffff
			sum[2] += float64(bl) / 0xffff
		}
	}
	n := float64(b.Dx() * b.Dy())
	return encoder.Tensor{
		Shape: []int64{1, 3},
		Data:  []float32{float32(sum[0] / n), float32(sum[1] / n), float32(sum[2] / n)},
	}, nil
}

// HashVector returns a pseudo-random vector of length dim seeded by s.
func HashVector(s string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}
