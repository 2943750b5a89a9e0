// Package logging builds the slog loggers used across the API and worker
// processes. Output is JSON, one line per event, with the level taken from
// LOG_LEVEL.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"learnloop/internal/handler/http/requestid"
)

// NewLogger returns a JSON logger at the level named by LOG_LEVEL
// (debug, info, warn, error; default info). Source locations are attached
// when the level is warn or lower so error lines point at their call site.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelWarn,
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID attaches the context's request ID to the logger, when one is
// present.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}
