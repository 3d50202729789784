// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"

	"github.com/kristinmlloyd/VibeCheck/internal/config"
)

// New returns a logger writing to w in the given format at the given level.
// Unknown levels fall back to info; unknown formats to text.
func New(w io.Writer, format config.LogFormat, level config.LogLevel) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(level)}
	if format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Level maps a configured level to its slog value.
func Level(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
