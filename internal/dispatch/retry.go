package dispatch

import (
	"math"
	"time"
)

// RetryPolicy controls how failed delivery attempts are rescheduled.
// Unlike in-process retry loops, delays here are persisted: the notification
// goes back to QUEUED with a next-eligibility time and survives restarts.
type RetryPolicy struct {
	// MaxAttempts is the total number of delivery attempts before the
	// notification is marked failed.
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration

	// Multiplier grows the delay for each subsequent attempt.
	Multiplier float64
}

// DefaultRetryPolicy returns the standard delivery retry schedule:
// 2s, 4s, then failed.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
	}
}

// NextDelay returns the wait before the next attempt, given the number of
// attempts already made (>= 1). The first retry waits BaseDelay, each later
// retry multiplies from there.
func (p RetryPolicy) NextDelay(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	factor := math.Pow(p.Multiplier, float64(attemptsMade-1))
	return time.Duration(float64(p.BaseDelay) * factor)
}

// Exhausted reports whether the attempt budget is spent.
func (p RetryPolicy) Exhausted(attemptsMade int) bool {
	return attemptsMade >= p.MaxAttempts
}
