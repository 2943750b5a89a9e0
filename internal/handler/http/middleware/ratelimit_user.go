package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"learnloop/pkg/ratelimit"
)

// UserExtractor pulls the authenticated caller out of the request context.
// The auth layer provides the implementation so this package stays ignorant
// of token formats.
type UserExtractor interface {
	ExtractUser(ctx context.Context) (userID string, tier ratelimit.UserTier, ok bool)
}

// TierLimit is one tier's request budget for the user limiter.
type TierLimit struct {
	Limit  int
	Window time.Duration
}

// UserRateLimiterConfig wires the user limiter's collaborators and budgets.
type UserRateLimiterConfig struct {
	Store          ratelimit.RateLimitStore
	Algorithm      ratelimit.RateLimitAlgorithm
	Metrics        ratelimit.RateLimitMetrics
	CircuitBreaker *ratelimit.CircuitBreaker
	UserExtractor  UserExtractor

	// TierLimits override the defaults per service tier.
	TierLimits map[ratelimit.UserTier]TierLimit

	// Defaults for callers whose tier has no override.
	DefaultLimit  int
	DefaultWindow time.Duration

	// SkipUnauthenticated passes anonymous requests through untouched.
	// When false they are limited together under one anonymous key at the
	// basic tier.
	SkipUnauthenticated bool

	// Clock for testing. Default SystemClock.
	Clock ratelimit.Clock
}

// UserRateLimiter enforces per-caller budgets after authentication, so each
// identity gets its own window regardless of source address. Limiter state
// keys on a hash of the caller subject rather than the subject itself.
type UserRateLimiter struct {
	config UserRateLimiterConfig
}

func NewUserRateLimiter(config UserRateLimiterConfig) *UserRateLimiter {
	if config.DefaultLimit == 0 {
		config.DefaultLimit = 1000
	}
	if config.DefaultWindow == 0 {
		config.DefaultWindow = time.Hour
	}
	if config.Clock == nil {
		config.Clock = &ratelimit.SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &ratelimit.NoOpMetrics{}
	}
	return &UserRateLimiter{config: config}
}

// Middleware checks the caller's tier budget. Like the IP limiter it fails
// open on limiter trouble; correctness of the API matters more than strict
// quota enforcement during an incident.
func (rl *UserRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, tier, ok := rl.config.UserExtractor.ExtractUser(r.Context())
			if !ok {
				if rl.config.SkipUnauthenticated {
					next.ServeHTTP(w, r)
					return
				}
				userID = "anonymous"
				tier = ratelimit.TierBasic
			}

			limit, window := rl.tierLimit(tier)
			key := hashUserID(userID)

			start := rl.config.Clock.Now()
			decision, err := rl.check(r, key, limit, window)
			rl.config.Metrics.RecordCheckDuration("user", rl.config.Clock.Now().Sub(start))

			if err != nil || decision == nil {
				if err != nil {
					slog.Error("user rate limiter: check failed, allowing request",
						slog.String("user_hash", key[:16]),
						slog.String("tier", tier.String()),
						slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision, "user")

			if !decision.Allowed {
				rl.config.Metrics.RecordDenied("user", r.URL.Path)
				slog.Warn("rate limit exceeded",
					slog.String("limiter_type", "user"),
					slog.String("key", key[:16]),
					slog.String("tier", tier.String()),
					slog.Int("limit", decision.Limit),
					slog.Int64("retry_after", decision.RetryAfterSeconds()),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
				writeRateLimitDenied(w, decision, "request quota exceeded for this account")
				return
			}

			rl.config.Metrics.RecordAllowed("user", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// check runs the limit decision under the circuit breaker. A nil decision
// with nil error means the circuit is open and the check was skipped.
func (rl *UserRateLimiter) check(r *http.Request, key string, limit int, window time.Duration) (*ratelimit.RateLimitDecision, error) {
	var decision *ratelimit.RateLimitDecision

	operation := func() error {
		var err error
		decision, err = rl.config.Algorithm.IsAllowed(r.Context(), key, rl.config.Store, limit, window)
		return err
	}

	if rl.config.CircuitBreaker == nil {
		return decision, operation()
	}
	if err := rl.config.CircuitBreaker.Execute(operation); err != nil {
		return nil, err
	}
	return decision, nil
}

func (rl *UserRateLimiter) tierLimit(tier ratelimit.UserTier) (int, time.Duration) {
	if tl, ok := rl.config.TierLimits[tier]; ok {
		return tl.Limit, tl.Window
	}
	return rl.config.DefaultLimit, rl.config.DefaultWindow
}

// hashUserID keys limiter state on a SHA-256 of the subject so account
// identifiers never sit in the store or in Redis.
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
