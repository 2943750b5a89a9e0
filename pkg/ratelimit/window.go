package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm admits a request when fewer than limit requests were
// recorded for the key within the trailing window. Unlike a fixed window it
// has no boundary burst: the window slides with each check.
//
// The algorithm also guards against the system clock stepping backwards
// (NTP correction, VM migration). Each key remembers its last observed
// timestamp; when the clock regresses, the remembered time is used instead
// so old requests cannot fall out of the window early.
type SlidingWindowAlgorithm struct {
	clock Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &SlidingWindowAlgorithm{
		clock:    clock,
		lastSeen: make(map[string]time.Time),
	}
}

// IsAllowed checks and records one request for the key. Stores implementing
// AtomicRateLimitStore get the check and the add in one operation; plain
// stores fall back to count-then-add, which can briefly overshoot the limit
// under concurrency.
func (a *SlidingWindowAlgorithm) IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error) {
	now := a.monotonicNow(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	var (
		allowed bool
		count   int
		err     error
	)
	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		allowed, count, err = atomicStore.CheckAndAddRequest(ctx, key, now, cutoff, limit)
		if err != nil {
			return nil, fmt.Errorf("check and add: %w", err)
		}
	} else {
		count, err = store.GetRequestCount(ctx, key, cutoff)
		if err != nil {
			return nil, fmt.Errorf("count requests: %w", err)
		}
		allowed = count < limit
		if allowed {
			if err := store.AddRequest(ctx, key, now); err != nil {
				return nil, fmt.Errorf("record request: %w", err)
			}
			count++
		}
	}

	decision := &RateLimitDecision{
		Key:     key,
		Allowed: allowed,
		Limit:   limit,
		ResetAt: resetAt,
	}
	if allowed {
		decision.Remaining = limit - count
		if decision.Remaining < 0 {
			decision.Remaining = 0
		}
	} else {
		decision.RetryAfter = window
	}
	return decision, nil
}

// monotonicNow returns the clock time, pinned to the last observed timestamp
// for the key when the clock has stepped backwards.
func (a *SlidingWindowAlgorithm) monotonicNow(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if last, ok := a.lastSeen[key]; ok && now.Before(last) {
		slog.Warn("clock regression detected, pinning timestamp",
			slog.String("key", key),
			slog.Duration("regression", last.Sub(now)))
		return last
	}
	a.lastSeen[key] = now
	return now
}

// PruneTracking drops last-seen entries older than maxAge so the clock guard
// map does not grow with every key ever observed. Returns how many entries
// were removed.
func (a *SlidingWindowAlgorithm) PruneTracking(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock.Now().Add(-maxAge)
	removed := 0
	for key, ts := range a.lastSeen {
		if ts.Before(cutoff) {
			delete(a.lastSeen, key)
			removed++
		}
	}
	return removed
}
