package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule checks that expr parses as a standard five-field cron
// expression, the same grammar the sweep scheduler uses at runtime.
func CronSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron schedule is empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("cron schedule %q: %w", expr, err)
	}
	return nil
}

// Timezone checks that name is a loadable IANA zone. Fails on hosts without
// tzdata even for correct names, which is the right signal in a container.
func Timezone(name string) error {
	if name == "" {
		return fmt.Errorf("timezone is empty")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("timezone %q: %w", name, err)
	}
	return nil
}

// IntBetween returns a validator accepting values in [min, max].
func IntBetween(min, max int) func(int) error {
	return func(v int) error {
		if v < min || v > max {
			return fmt.Errorf("%d outside [%d, %d]", v, min, max)
		}
		return nil
	}
}

// DurationBetween returns a validator accepting durations in [min, max].
func DurationBetween(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error {
		if d < min || d > max {
			return fmt.Errorf("%v outside [%v, %v]", d, min, max)
		}
		return nil
	}
}

// Positive rejects zero and negative durations.
func Positive(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}
