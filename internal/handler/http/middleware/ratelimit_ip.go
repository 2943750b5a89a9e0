package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"learnloop/pkg/ratelimit"
)

// IPRateLimiterConfig configures the per-IP limiter.
type IPRateLimiterConfig struct {
	// Limit is the request budget per IP and window. Default 100.
	Limit int

	// Window is the sliding window length. Default 1 minute.
	Window time.Duration

	// Enabled turns the middleware into a pass-through when false.
	Enabled bool
}

// IPRateLimiter adapts pkg/ratelimit to HTTP for unauthenticated traffic.
// Everything that can go wrong inside the limiter (store down, extraction
// failure, open circuit) fails open: this layer protects capacity, it must
// not become the outage itself.
type IPRateLimiter struct {
	config         IPRateLimiterConfig
	ipExtractor    IPExtractor
	store          ratelimit.RateLimitStore
	algorithm      ratelimit.RateLimitAlgorithm
	metrics        ratelimit.RateLimitMetrics
	circuitBreaker *ratelimit.CircuitBreaker
}

func NewIPRateLimiter(
	config IPRateLimiterConfig,
	ipExtractor IPExtractor,
	store ratelimit.RateLimitStore,
	algorithm ratelimit.RateLimitAlgorithm,
	metrics ratelimit.RateLimitMetrics,
	circuitBreaker *ratelimit.CircuitBreaker,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if metrics == nil {
		metrics = &ratelimit.NoOpMetrics{}
	}
	return &IPRateLimiter{
		config:         config,
		ipExtractor:    ipExtractor,
		store:          store,
		algorithm:      algorithm,
		metrics:        metrics,
		circuitBreaker: circuitBreaker,
	}
}

// Middleware checks the caller's IP budget before passing the request on.
// Denied requests get 429 with Retry-After; every checked response carries
// the X-RateLimit-* headers.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip, err := rl.ipExtractor.ExtractIP(r)
			if err != nil {
				slog.Error("ip rate limiter: extraction failed, allowing request",
					slog.String("remote_addr", r.RemoteAddr),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			decision, err := rl.check(r, ip)
			rl.metrics.RecordCheckDuration("ip", time.Since(start))

			if err != nil || decision == nil {
				// Backend failure or open circuit: admit without headers.
				if err != nil {
					slog.Error("ip rate limiter: check failed, allowing request",
						slog.String("ip", ip),
						slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision, "ip")

			if !decision.Allowed {
				rl.metrics.RecordDenied("ip", r.URL.Path)
				slog.Warn("rate limit exceeded",
					slog.String("limiter_type", "ip"),
					slog.String("key", ip),
					slog.Int("limit", decision.Limit),
					slog.Int64("retry_after", decision.RetryAfterSeconds()),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
				writeRateLimitDenied(w, decision, "too many requests from this address")
				return
			}

			rl.metrics.RecordAllowed("ip", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// check runs the limit decision under the circuit breaker. A nil decision
// with nil error means the circuit is open and the check was skipped.
func (rl *IPRateLimiter) check(r *http.Request, ip string) (*ratelimit.RateLimitDecision, error) {
	var decision *ratelimit.RateLimitDecision

	operation := func() error {
		var err error
		decision, err = rl.algorithm.IsAllowed(r.Context(), ip, rl.store, rl.config.Limit, rl.config.Window)
		return err
	}

	if rl.circuitBreaker == nil {
		return decision, operation()
	}
	if err := rl.circuitBreaker.Execute(operation); err != nil {
		return nil, err
	}
	return decision, nil
}

// setRateLimitHeaders stamps the standard X-RateLimit-* headers.
func setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision, limiterType string) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	w.Header().Set("X-RateLimit-Type", limiterType)
}

// writeRateLimitDenied answers 429 with a Retry-After header and JSON body.
func writeRateLimitDenied(w http.ResponseWriter, decision *ratelimit.RateLimitDecision, message string) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	body := map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     message,
		"retry_after": retryAfter,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("rate limiter: failed to encode response", slog.Any("error", err))
	}
}
