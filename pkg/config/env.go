// Package config reads the API process environment. Helpers here are
// forgiving: a malformed value logs a warning and yields the default rather
// than stopping startup.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// GetEnvBool parses key with strconv.ParseBool semantics.
func GetEnvBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		warnInvalid(key, raw, def)
		return def
	}
	return v
}

// GetEnvInt parses key as a base-10 integer.
func GetEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		warnInvalid(key, raw, def)
		return def
	}
	return v
}

// GetEnvDuration parses key as a Go duration string ("30s", "1h30m").
func GetEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		warnInvalid(key, raw, def)
		return def
	}
	return v
}

func warnInvalid(key, raw string, def any) {
	slog.Warn("invalid environment value, using default",
		slog.String("key", key),
		slog.String("value", raw),
		slog.Any("default", def))
}
