package http

import (
	"context"
	"log/slog"
	"time"

	"learnloop/internal/handler/http/middleware"
	"learnloop/pkg/config"
	"learnloop/pkg/ratelimit"
)

// DefaultCleanupInterval is used when RATELIMIT_CLEANUP_INTERVAL is unset.
const DefaultCleanupInterval = 5 * time.Minute

// CleanupInterval reads the sweep interval from the environment.
func CleanupInterval() time.Duration {
	return config.GetEnvDuration("RATELIMIT_CLEANUP_INTERVAL", DefaultCleanupInterval)
}

// StartRateLimitCleanup periodically evicts stale entries from a rate limit
// store so long-lived processes do not accumulate dead keys. Entries older
// than twice the limiter window are safe to drop. Blocks until ctx is done;
// run it in its own goroutine.
func StartRateLimitCleanup(
	ctx context.Context,
	store ratelimit.RateLimitStore,
	interval time.Duration,
	window time.Duration,
	limiterType string,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("rate limit cleanup started",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit cleanup stopped", slog.String("limiter_type", limiterType))
			return
		case <-ticker.C:
			sweepStore(ctx, store, window, limiterType)
		}
	}
}

func sweepStore(ctx context.Context, store ratelimit.RateLimitStore, window time.Duration, limiterType string) {
	keysBefore, memBefore, err := storeUsage(ctx, store)
	if err != nil {
		slog.Error("rate limit cleanup: reading store stats",
			slog.String("limiter_type", limiterType), slog.Any("error", err))
		return
	}

	cutoff := time.Now().Add(-2 * window)
	if err := store.Cleanup(ctx, cutoff); err != nil {
		slog.Error("rate limit cleanup failed",
			slog.String("limiter_type", limiterType), slog.Any("error", err))
		return
	}

	keysAfter, memAfter, err := storeUsage(ctx, store)
	if err != nil {
		slog.Error("rate limit cleanup: reading store stats",
			slog.String("limiter_type", limiterType), slog.Any("error", err))
		return
	}

	slog.Debug("rate limit cleanup completed",
		slog.String("limiter_type", limiterType),
		slog.Int("keys_removed", keysBefore-keysAfter),
		slog.Int64("memory_freed_bytes", memBefore-memAfter),
		slog.Time("cutoff", cutoff))

	const memoryWarnBytes = 80 << 20
	if memAfter > memoryWarnBytes {
		slog.Warn("rate limit store memory usage is high",
			slog.String("limiter_type", limiterType),
			slog.Int64("memory_bytes", memAfter),
			slog.Int("active_keys", keysAfter))
	}
}

func storeUsage(ctx context.Context, store ratelimit.RateLimitStore) (keys int, memory int64, err error) {
	if keys, err = store.KeyCount(ctx); err != nil {
		return 0, 0, err
	}
	if memory, err = store.MemoryUsage(ctx); err != nil {
		return 0, 0, err
	}
	return keys, memory, nil
}

// StartRateLimitCleanupLegacy sweeps the in-process auth limiter, which
// tracks its own timestamps instead of using a store.
func StartRateLimitCleanupLegacy(
	ctx context.Context,
	limiter *middleware.RateLimiter,
	interval time.Duration,
	limiterType string,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("rate limit cleanup started",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit cleanup stopped", slog.String("limiter_type", limiterType))
			return
		case <-ticker.C:
			limiter.CleanupExpired()
		}
	}
}
