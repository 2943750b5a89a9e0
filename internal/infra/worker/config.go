package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"learnloop/internal/pkg/config"
)

// WorkerConfig controls the sweep schedule and delivery concurrency of the
// worker process. Load it through LoadConfigFromEnv; every field has a
// production-safe default.
type WorkerConfig struct {
	// SweepSchedule is a five-field cron expression for the expiry sweep.
	SweepSchedule string

	// Timezone is the IANA zone the cron schedule is evaluated in.
	Timezone string

	// DispatchMaxConcurrent caps simultaneous provider deliveries.
	DispatchMaxConcurrent int

	// SweepTimeout bounds a single sweep run.
	SweepTimeout time.Duration

	// HealthPort serves the worker's health endpoints.
	HealthPort int
}

func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		SweepSchedule:         "0 * * * *",
		Timezone:              "UTC",
		DispatchMaxConcurrent: 10,
		SweepTimeout:          30 * time.Minute,
		HealthPort:            9091,
	}
}

// Validate reports every invalid field at once so an operator can fix a bad
// deployment in one pass.
func (c *WorkerConfig) Validate() error {
	var errs []error
	if err := config.CronSchedule(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("sweep schedule: %w", err))
	}
	if err := config.Timezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.IntBetween(1, 100)(c.DispatchMaxConcurrent); err != nil {
		errs = append(errs, fmt.Errorf("dispatch max concurrent: %w", err))
	}
	if err := config.Positive(c.SweepTimeout); err != nil {
		errs = append(errs, fmt.Errorf("sweep timeout: %w", err))
	}
	if err := config.IntBetween(1024, 65535)(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	return errors.Join(errs...)
}

// take moves a loaded value onto the config, noting the fallback when the
// environment value was unusable.
func take[T any](dst *T, l config.Loaded[T], field string, note func(field, warning string)) {
	*dst = l.Value
	if l.FellBack {
		note(field, l.Warning)
	}
}

// LoadConfigFromEnv reads the worker environment with per-field fallback to
// defaults. It never fails: a broken variable costs a warning and a metric,
// not the process.
//
// Variables: SWEEP_SCHEDULE, WORKER_TIMEZONE, DISPATCH_MAX_CONCURRENT,
// SWEEP_TIMEOUT, WORKER_HEALTH_PORT.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	fellBack := false
	note := func(field, warning string) {
		fellBack = true
		metrics.RecordFallback(field)
		logger.Warn("config fallback applied",
			slog.String("field", field),
			slog.String("reason", warning))
	}

	take(&cfg.SweepSchedule,
		config.ValidatedString("SWEEP_SCHEDULE", cfg.SweepSchedule, config.CronSchedule),
		"sweep_schedule", note)
	take(&cfg.Timezone,
		config.ValidatedString("WORKER_TIMEZONE", cfg.Timezone, config.Timezone),
		"timezone", note)
	take(&cfg.DispatchMaxConcurrent,
		config.Int("DISPATCH_MAX_CONCURRENT", cfg.DispatchMaxConcurrent, config.IntBetween(1, 100)),
		"dispatch_max_concurrent", note)
	take(&cfg.SweepTimeout,
		config.Duration("SWEEP_TIMEOUT", cfg.SweepTimeout, config.DurationBetween(time.Minute, 4*time.Hour)),
		"sweep_timeout", note)
	take(&cfg.HealthPort,
		config.Int("WORKER_HEALTH_PORT", cfg.HealthPort, config.IntBetween(1024, 65535)),
		"health_port", note)

	metrics.SetFallbackActive(fellBack)
	metrics.RecordLoad()
	return &cfg
}
