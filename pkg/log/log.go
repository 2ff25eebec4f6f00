// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default slog handler at the given level.
// Unknown levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger scoped to one module of the service.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
