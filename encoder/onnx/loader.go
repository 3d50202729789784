package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/kristinmlloyd/VibeCheck/encoder"
)

// Default model identifiers and dimensions.
const (
	DefaultTextModel  = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultTextDim    = 384
	DefaultImageModel = "openai/clip-vit-base-patch32"
	DefaultImageDim   = 512
	DefaultMaxTokens  = 256
)

// Config locates the exported models and the runtime library.
type Config struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string

	TextModelPath  string
	TokenizerPath  string
	ImageModelPath string

	TextModel  string
	TextDim    int
	ImageModel string
	ImageDim   int

	// MaxTokens truncates tokenized text. Default: DefaultMaxTokens.
	MaxTokens int
	// Threads sets intra-op parallelism. Zero leaves the runtime default.
	Threads int
	// ImageOnly skips the text model. LoadText then fails; pair the loader
	// with a hosted text encoder.
	ImageOnly bool

	Logger *slog.Logger
}

func (c *Config) withDefaults() {
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.TextDim == 0 {
		c.TextDim = DefaultTextDim
	}
	if c.ImageModel == "" {
		c.ImageModel = DefaultImageModel
	}
	if c.ImageDim == 0 {
		c.ImageDim = DefaultImageDim
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loader loads MiniLM and CLIP models exported to ONNX. It implements
// encoder.Loader.
type Loader struct {
	cfg Config

	envMu sync.Mutex
	envUp bool
}

var _ encoder.Loader = (*Loader)(nil)

// NewLoader validates cfg and returns a Loader. Model files are checked for
// existence but not opened.
func NewLoader(cfg Config) (*Loader, error) {
	cfg.withDefaults()
	var errs []error
	paths := map[string]string{"image model": cfg.ImageModelPath}
	if !cfg.ImageOnly {
		paths["text model"] = cfg.TextModelPath
		paths["tokenizer"] = cfg.TokenizerPath
	}
	for name, path := range paths {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s path is required", name))
			continue
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if cfg.TextDim < 1 || cfg.ImageDim < 1 {
		errs = append(errs, errors.New("model dimensions must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	return &Loader{cfg: cfg}, nil
}

// Info implements encoder.Loader.
func (l *Loader) Info() encoder.Info {
	return encoder.Info{
		TextModel:  l.cfg.TextModel,
		TextDim:    l.cfg.TextDim,
		ImageModel: l.cfg.ImageModel,
		ImageDim:   l.cfg.ImageDim,
	}
}

// SelectDevice implements encoder.Loader. CUDA is chosen only when the
// runtime accepts the CUDA execution provider.
func (l *Loader) SelectDevice(preferred encoder.Device) encoder.Device {
	if preferred == encoder.DeviceCPU {
		return encoder.DeviceCPU
	}
	if err := l.initEnvironment(); err != nil {
		return encoder.DeviceCPU
	}
	if err := probeCUDA(); err != nil {
		if preferred == encoder.DeviceCUDA {
			l.cfg.Logger.Warn("cuda requested but unavailable, using cpu", "err", err)
		}
		return encoder.DeviceCPU
	}
	return encoder.DeviceCUDA
}

// LoadText implements encoder.Loader.
func (l *Loader) LoadText(ctx context.Context, device encoder.Device) (encoder.TextEncoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cfg.ImageOnly {
		return nil, errors.New("onnx: loader configured without a text model")
	}
	if err := l.initEnvironment(); err != nil {
		return nil, err
	}
	return newTextEncoder(l.cfg, device)
}

// LoadImage implements encoder.Loader.
func (l *Loader) LoadImage(ctx context.Context, device encoder.Device) (encoder.ImageEncoder, encoder.Preprocessor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := l.initEnvironment(); err != nil {
		return nil, nil, err
	}
	enc, err := newImageEncoder(l.cfg, device)
	if err != nil {
		return nil, nil, err
	}
	return enc, encoder.NewCLIPPreprocessor(encoder.DefaultCLIPSize), nil
}

// initEnvironment initializes the process-wide runtime. A failure is
// retried on the next call.
func (l *Loader) initEnvironment() error {
	l.envMu.Lock()
	defer l.envMu.Unlock()
	if l.envUp {
		return nil
	}
	if onnxruntime.IsInitialized() {
		l.envUp = true
		return nil
	}
	if l.cfg.LibraryPath != "" {
		onnxruntime.SetSharedLibraryPath(l.cfg.LibraryPath)
	}
	if err := onnxruntime.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx: initialize runtime: %w", err)
	}
	l.envUp = true
	return nil
}

// Close tears down the runtime environment. Encoders must be closed first.
func (l *Loader) Close() error {
	l.envMu.Lock()
	defer l.envMu.Unlock()
	if !l.envUp {
		return nil
	}
	l.envUp = false
	return onnxruntime.DestroyEnvironment()
}
