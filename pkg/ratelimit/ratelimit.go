// Package ratelimit implements sliding-window rate limiting with pluggable
// storage (in-memory or Redis), Prometheus metrics, and a fail-open circuit
// breaker. It carries no HTTP knowledge; the middleware layer adapts it to
// requests.
package ratelimit

import (
	"context"
	"time"
)

// Clock abstracts time.Now so window math can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// RateLimitStore holds request timestamps per key. Implementations must be
// safe for concurrent use.
type RateLimitStore interface {
	// AddRequest records one request for the key at the given time.
	AddRequest(ctx context.Context, key string, timestamp time.Time) error

	// GetRequestCount counts requests for the key newer than the cutoff.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup drops timestamps older than the cutoff across all keys.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount reports the number of live keys, for health reporting.
	KeyCount(ctx context.Context) (int, error)

	// MemoryUsage estimates the bytes held by rate limit state.
	MemoryUsage(ctx context.Context) (int64, error)
}

// AtomicRateLimitStore is implemented by stores that can check the limit and
// record the request under one lock (or one Redis round trip), closing the
// race two concurrent requests would otherwise have between count and add.
type AtomicRateLimitStore interface {
	RateLimitStore

	// CheckAndAddRequest counts requests newer than cutoff and, when the
	// count is under the limit, records the new request. Returns whether
	// the request was admitted and the count after the operation.
	CheckAndAddRequest(ctx context.Context, key string, timestamp, cutoff time.Time, limit int) (allowed bool, count int, err error)
}

// RateLimitAlgorithm decides whether a request identified by key is admitted
// under the given limit and window.
type RateLimitAlgorithm interface {
	IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error)
}

// RateLimitMetrics records limiter observability signals.
type RateLimitMetrics interface {
	// RecordAllowed counts an admitted request.
	RecordAllowed(limiterType, endpoint string)

	// RecordDenied counts a rejected request.
	RecordDenied(limiterType, endpoint string)

	// RecordCheckDuration observes how long one limit check took.
	RecordCheckDuration(limiterType string, duration time.Duration)

	// RecordCircuitState gauges the breaker state (closed/open/half-open).
	RecordCircuitState(limiterType, state string)

	// RecordEviction counts keys dropped by store capacity eviction.
	RecordEviction(limiterType string, count int)
}

// RateLimitDecision is the outcome of one limit check.
type RateLimitDecision struct {
	Key       string
	Allowed   bool
	Limit     int
	Remaining int

	// ResetAt is when the current window rolls over.
	ResetAt time.Time

	// RetryAfter is how long a denied caller should wait.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry delay rounded down to whole seconds,
// floored at zero, for the Retry-After header.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	s := int64(d.RetryAfter.Seconds())
	if s < 0 {
		return 0
	}
	return s
}

// ResetAtUnix returns the window reset time as a Unix timestamp, for the
// X-RateLimit-Reset header.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}
