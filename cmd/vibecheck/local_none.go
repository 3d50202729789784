//go:build noonnx

package main

import (
	"errors"
	"log/slog"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/internal/config"
)

type localLoader interface {
	encoder.Loader
	Close() error
}

func newLocalLoader(config.ModelConfig, *slog.Logger) (localLoader, error) {
	return nil, errors.New("built with noonnx: local models are unavailable")
}
