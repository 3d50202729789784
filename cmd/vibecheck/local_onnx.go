//go:build !noonnx

package main

import (
	"log/slog"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/encoder/onnx"
	"github.com/kristinmlloyd/VibeCheck/internal/config"
)

// localLoader is an encoder.Loader owning a runtime that must be closed.
type localLoader interface {
	encoder.Loader
	Close() error
}

func newLocalLoader(m config.ModelConfig, logger *slog.Logger) (localLoader, error) {
	return onnx.NewLoader(onnx.Config{
		LibraryPath:    m.ONNXLibrary,
		TextModelPath:  m.TextModelPath,
		TokenizerPath:  m.TokenizerPath,
		ImageModelPath: m.ImageModelPath,
		TextModel:      m.TextModel,
		TextDim:        m.TextDim,
		ImageModel:     m.ImageModel,
		ImageDim:       m.ImageDim,
		Threads:        m.Threads,
		ImageOnly:      m.OpenAI.Enabled(),
		Logger:         logger,
	})
}
