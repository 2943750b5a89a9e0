package config

import (
	"log/slog"
	"time"

	"learnloop/pkg/ratelimit"
)

func positiveInt(key string, def int) int {
	v := GetEnvInt(key, def)
	if v < 0 {
		warnInvalid(key, "negative", def)
		return def
	}
	return v
}

func positiveDuration(key string, def time.Duration) time.Duration {
	d := GetEnvDuration(key, def)
	if d <= 0 {
		warnInvalid(key, "non-positive", def)
		return def
	}
	return d
}

// LoadRateLimitConfig assembles the limiter configuration from RATELIMIT_*
// variables. It never fails: bad values are warned about and replaced with
// defaults, and a configuration that still fails validation is reset
// wholesale with ApplyDefaults.
func LoadRateLimitConfig() (*ratelimit.RateLimitConfig, error) {
	cfg := &ratelimit.RateLimitConfig{
		Enabled:           GetEnvBool("RATELIMIT_ENABLED", true),
		DefaultIPLimit:    positiveInt("RATELIMIT_IP_LIMIT", 100),
		DefaultIPWindow:   positiveDuration("RATELIMIT_IP_WINDOW", time.Minute),
		DefaultUserLimit:  positiveInt("RATELIMIT_USER_LIMIT", 1000),
		DefaultUserWindow: positiveDuration("RATELIMIT_USER_WINDOW", time.Hour),
		TierLimits:        loadTierLimits(),
		MaxActiveKeys:     positiveInt("RATELIMIT_MAX_KEYS", 10000),
		CleanupInterval:   positiveDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		CleanupMaxAge:     time.Hour,

		CircuitBreakerFailureThreshold: positiveInt("RATELIMIT_CB_FAILURE_THRESHOLD", 10),
		CircuitBreakerResetTimeout:     positiveDuration("RATELIMIT_CB_RECOVERY_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		slog.Warn("rate limit configuration invalid, applying defaults",
			slog.String("error", err.Error()))
		cfg.ApplyDefaults()
	}
	return cfg, nil
}

// loadTierLimits reads the per-tier hourly budgets. The tier ladder is
// admin > premium > basic > viewer.
func loadTierLimits() []ratelimit.TierRateLimitConfig {
	tiers := []struct {
		tier ratelimit.UserTier
		key  string
		def  int
	}{
		{ratelimit.TierAdmin, "RATELIMIT_TIER_ADMIN", 10000},
		{ratelimit.TierPremium, "RATELIMIT_TIER_PREMIUM", 5000},
		{ratelimit.TierBasic, "RATELIMIT_TIER_BASIC", 1000},
		{ratelimit.TierViewer, "RATELIMIT_TIER_VIEWER", 500},
	}

	limits := make([]ratelimit.TierRateLimitConfig, 0, len(tiers))
	for _, t := range tiers {
		limits = append(limits, ratelimit.TierRateLimitConfig{
			Tier:   t.tier,
			Limit:  positiveInt(t.key, t.def),
			Window: time.Hour,
		})
	}
	return limits
}

// CSPConfig toggles the Content-Security-Policy middleware.
type CSPConfig struct {
	Enabled    bool
	ReportOnly bool
}

// LoadCSPConfig reads CSP_ENABLED and CSP_REPORT_ONLY.
func LoadCSPConfig() (*CSPConfig, error) {
	return &CSPConfig{
		Enabled:    GetEnvBool("CSP_ENABLED", true),
		ReportOnly: GetEnvBool("CSP_REPORT_ONLY", false),
	}, nil
}
