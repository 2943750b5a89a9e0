package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig carries the limiter settings loaded from environment.
type RateLimitConfig struct {
	// Enabled turns rate limiting off entirely when false.
	Enabled bool

	// Per-IP defaults, applied before authentication.
	DefaultIPLimit  int
	DefaultIPWindow time.Duration

	// Per-user defaults, applied after authentication.
	DefaultUserLimit  int
	DefaultUserWindow time.Duration

	// TierLimits override the user defaults per service tier.
	TierLimits []TierRateLimitConfig

	// MaxActiveKeys caps in-memory store size.
	MaxActiveKeys int

	// Cleanup cadence for expired timestamps.
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	// Circuit breaker tuning for the limiter backend.
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration
}

// TierRateLimitConfig is one tier's request budget.
type TierRateLimitConfig struct {
	Tier   UserTier
	Limit  int
	Window time.Duration
}

// UserTier is a caller's service level, carried in the auth token.
type UserTier string

const (
	TierAdmin   UserTier = "admin"
	TierPremium UserTier = "premium"
	TierBasic   UserTier = "basic"
	TierViewer  UserTier = "viewer"
)

func (t UserTier) String() string {
	return string(t)
}

// IsValid reports whether the tier is a recognized value.
func (t UserTier) IsValid() bool {
	switch t {
	case TierAdmin, TierPremium, TierBasic, TierViewer:
		return true
	}
	return false
}

// Validate rejects negative values and unknown tiers.
func (c *RateLimitConfig) Validate() error {
	checks := []struct {
		name string
		bad  bool
	}{
		{"DefaultIPLimit", c.DefaultIPLimit < 0},
		{"DefaultIPWindow", c.DefaultIPWindow < 0},
		{"DefaultUserLimit", c.DefaultUserLimit < 0},
		{"DefaultUserWindow", c.DefaultUserWindow < 0},
		{"MaxActiveKeys", c.MaxActiveKeys < 0},
		{"CleanupInterval", c.CleanupInterval < 0},
		{"CleanupMaxAge", c.CleanupMaxAge < 0},
		{"CircuitBreakerFailureThreshold", c.CircuitBreakerFailureThreshold < 0},
		{"CircuitBreakerResetTimeout", c.CircuitBreakerResetTimeout < 0},
	}
	for _, check := range checks {
		if check.bad {
			return fmt.Errorf("%s must not be negative", check.name)
		}
	}

	for i, tier := range c.TierLimits {
		if !tier.Tier.IsValid() {
			return fmt.Errorf("TierLimits[%d]: unknown tier %q", i, tier.Tier)
		}
		if tier.Limit < 0 || tier.Window < 0 {
			return fmt.Errorf("TierLimits[%d]: limit and window must not be negative", i)
		}
	}
	return nil
}

// ApplyDefaults fills zero values so an empty config still limits sanely.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.DefaultIPLimit == 0 {
		c.DefaultIPLimit = 100
	}
	if c.DefaultIPWindow == 0 {
		c.DefaultIPWindow = time.Minute
	}
	if c.DefaultUserLimit == 0 {
		c.DefaultUserLimit = 1000
	}
	if c.DefaultUserWindow == 0 {
		c.DefaultUserWindow = time.Hour
	}
	if c.MaxActiveKeys == 0 {
		c.MaxActiveKeys = 10000
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.CleanupMaxAge == 0 {
		c.CleanupMaxAge = time.Hour
	}
	if c.CircuitBreakerFailureThreshold == 0 {
		c.CircuitBreakerFailureThreshold = 10
	}
	if c.CircuitBreakerResetTimeout == 0 {
		c.CircuitBreakerResetTimeout = 30 * time.Second
	}
	c.Enabled = true
}

// TierLimit returns the budget for a tier, falling back to the user defaults
// when the tier has no override.
func (c *RateLimitConfig) TierLimit(tier UserTier) (limit int, window time.Duration) {
	for _, t := range c.TierLimits {
		if t.Tier == tier {
			return t.Limit, t.Window
		}
	}
	return c.DefaultUserLimit, c.DefaultUserWindow
}
