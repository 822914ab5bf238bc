// Package logging configures structured logging for the relay server using
// slog with a configurable level and output format.
package logging

import (
	"log/slog"
	"os"
)

// New creates an slog Logger with the given level ("debug", "info", "warn",
// "error") and format ("text" or "json"), installs it as the default logger,
// and returns it.
func New(levelStr, format string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
