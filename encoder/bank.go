package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kristinmlloyd/VibeCheck/internal/observe"
)

// Bank owns the text and image encoders of a process. Each model is loaded
// on first use, at most once per successful load; concurrent first callers
// wait for the same load. A failed load is returned and retried on the next
// call.
type Bank struct {
	loader  Loader
	info    Info
	pref    Device
	logger  *slog.Logger
	metrics *observe.Metrics

	deviceOnce sync.Once
	device     Device

	textMu sync.Mutex
	text   atomic.Pointer[textModel]

	imageMu sync.Mutex
	image   atomic.Pointer[imageModel]
}

type textModel struct {
	enc TextEncoder
}

type imageModel struct {
	enc        ImageEncoder
	preprocess Preprocessor
}

// Option configures a Bank.
type Option func(*Bank)

// WithDevice sets the preferred execution device. Default: DeviceAuto.
func WithDevice(d Device) Option {
	return func(b *Bank) { b.pref = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) { b.logger = l }
}

// WithMetrics enables load metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bank) { b.metrics = m }
}

// NewBank returns a Bank that loads models through loader. No model is
// loaded until it is first requested.
func NewBank(loader Loader, opts ...Option) *Bank {
	b := &Bank{loader: loader, pref: DeviceAuto, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	b.info = loader.Info()
	return b
}

// Info returns the configured model ids and dimensions. It does not load
// any model.
func (b *Bank) Info() Info { return b.info }

// Device returns the execution device, resolved once from the preference.
func (b *Bank) Device() Device {
	b.deviceOnce.Do(func() {
		b.device = b.loader.SelectDevice(b.pref)
		b.logger.Info("encoder device selected", "preferred", b.pref, "device", b.device)
	})
	return b.device
}

// TextEncoder returns the text encoder, loading it on first use.
func (b *Bank) TextEncoder(ctx context.Context) (TextEncoder, error) {
	if m := b.text.Load(); m != nil {
		return m.enc, nil
	}
	b.textMu.Lock()
	defer b.textMu.Unlock()
	if m := b.text.Load(); m != nil {
		return m.enc, nil
	}

	start := time.Now()
	enc, err := b.loader.LoadText(ctx, b.Device())
	if err == nil && enc.Dim() != b.info.TextDim {
		closeQuietly(enc)
		err = fmt.Errorf("model %s produces %d dims, configured %d", b.info.TextModel, enc.Dim(), b.info.TextDim)
	}
	b.metrics.RecordModelLoad(ctx, ModalityText, err)
	if err != nil {
		b.logger.Error("text encoder load failed", "model", b.info.TextModel, "err", err)
		return nil, &LoadError{Modality: ModalityText, Err: err}
	}
	b.text.Store(&textModel{enc: enc})
	b.logger.Info("text encoder loaded", "model", b.info.TextModel, "dim", enc.Dim(), "elapsed", time.Since(start))
	return enc, nil
}

// ImageEncoder returns the image encoder and its preprocessing transform,
// loading them on first use.
func (b *Bank) ImageEncoder(ctx context.Context) (ImageEncoder, Preprocessor, error) {
	if m := b.image.Load(); m != nil {
		return m.enc, m.preprocess, nil
	}
	b.imageMu.Lock()
	defer b.imageMu.Unlock()
	if m := b.image.Load(); m != nil {
		return m.enc, m.preprocess, nil
	}

	start := time.Now()
	enc, pre, err := b.loader.LoadImage(ctx, b.Device())
	if err == nil && enc.Dim() != b.info.ImageDim {
		closeQuietly(enc)
		err = fmt.Errorf("model %s produces %d dims, configured %d", b.info.ImageModel, enc.Dim(), b.info.ImageDim)
	}
	if err == nil && pre == nil {
		closeQuietly(enc)
		err = errors.New("loader returned no preprocessor")
	}
	b.metrics.RecordModelLoad(ctx, ModalityImage, err)
	if err != nil {
		b.logger.Error("image encoder load failed", "model", b.info.ImageModel, "err", err)
		return nil, nil, &LoadError{Modality: ModalityImage, Err: err}
	}
	b.image.Store(&imageModel{enc: enc, preprocess: pre})
	b.logger.Info("image encoder loaded", "model", b.info.ImageModel, "dim", enc.Dim(), "elapsed", time.Since(start))
	return enc, pre, nil
}

// Loaded reports which models are currently resident.
func (b *Bank) Loaded() (text, image bool) {
	return b.text.Load() != nil, b.image.Load() != nil
}

// Clear releases loaded models so that the next request loads them again.
func (b *Bank) Clear() error {
	b.textMu.Lock()
	defer b.textMu.Unlock()
	b.imageMu.Lock()
	defer b.imageMu.Unlock()

	var errs []error
	if m := b.text.Swap(nil); m != nil {
		if c, ok := m.enc.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if m := b.image.Swap(nil); m != nil {
		if c, ok := m.enc.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Close releases all models.
func (b *Bank) Close() error { return b.Clear() }

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
