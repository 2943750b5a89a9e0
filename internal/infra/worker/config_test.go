package worker

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricsSeq atomic.Int64

// newTestMetrics builds WorkerMetrics without colliding on the default
// prometheus registry across tests. The ConfigMetrics names are prefixed
// with the component, so a fresh component per call is enough.
func newTestMetrics() *WorkerMetrics {
	component := fmt.Sprintf("workertest_%d", metricsSeq.Add(1))
	return newWorkerMetrics(component, prometheus.NewRegistry())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkerConfig)
		wantErr string
	}{
		{"defaults are valid", func(*WorkerConfig) {}, ""},
		{"bad cron", func(c *WorkerConfig) { c.SweepSchedule = "whenever" }, "sweep schedule"},
		{"bad timezone", func(c *WorkerConfig) { c.Timezone = "Mars/Olympus_Mons" }, "timezone"},
		{"zero concurrency", func(c *WorkerConfig) { c.DispatchMaxConcurrent = 0 }, "dispatch max concurrent"},
		{"negative timeout", func(c *WorkerConfig) { c.SweepTimeout = -time.Minute }, "sweep timeout"},
		{"privileged port", func(c *WorkerConfig) { c.HealthPort = 80 }, "health port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWorkerConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepSchedule = "bad"
	cfg.DispatchMaxConcurrent = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep schedule")
	assert.Contains(t, err.Error(), "dispatch max concurrent")
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv(discardLogger(), newTestMetrics())

	assert.Equal(t, DefaultConfig(), *cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "*/30 * * * *")
	t.Setenv("WORKER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("DISPATCH_MAX_CONCURRENT", "25")
	t.Setenv("SWEEP_TIMEOUT", "2h")
	t.Setenv("WORKER_HEALTH_PORT", "9200")

	cfg := LoadConfigFromEnv(discardLogger(), newTestMetrics())

	assert.Equal(t, "*/30 * * * *", cfg.SweepSchedule)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 25, cfg.DispatchMaxConcurrent)
	assert.Equal(t, 2*time.Hour, cfg.SweepTimeout)
	assert.Equal(t, 9200, cfg.HealthPort)
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "every full moon")
	t.Setenv("DISPATCH_MAX_CONCURRENT", "-3")
	t.Setenv("SWEEP_TIMEOUT", "10s") // below the 1m floor

	cfg := LoadConfigFromEnv(discardLogger(), newTestMetrics())

	def := DefaultConfig()
	assert.Equal(t, def.SweepSchedule, cfg.SweepSchedule)
	assert.Equal(t, def.DispatchMaxConcurrent, cfg.DispatchMaxConcurrent)
	assert.Equal(t, def.SweepTimeout, cfg.SweepTimeout)
	assert.NoError(t, cfg.Validate())
}
