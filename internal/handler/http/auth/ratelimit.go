package auth

import (
	"context"

	"learnloop/pkg/ratelimit"
)

// CallerExtractor adapts the authenticated caller context to the user rate
// limiter. Admin callers get the admin tier; everything else is basic.
type CallerExtractor struct{}

// ExtractUser returns the caller subject for per-user rate limiting.
func (CallerExtractor) ExtractUser(ctx context.Context) (string, ratelimit.UserTier, bool) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return "", "", false
	}
	tier := ratelimit.TierBasic
	if caller.Role == RoleAdmin {
		tier = ratelimit.TierAdmin
	}
	return caller.Subject, tier, true
}
