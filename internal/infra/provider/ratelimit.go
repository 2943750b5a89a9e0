package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound calls to one backend with a token bucket, so a
// burst of queued notifications cannot trip the backend's own throttle.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter sustaining requestsPerSecond with up to
// burst immediate calls. A per-minute channel cap maps to
// NewRateLimiter(capPerMinute/60.0, burst).
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a token is available or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed right now without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
