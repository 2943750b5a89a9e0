package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWorkerMetrics_RecordJobRun(t *testing.T) {
	m := newTestMetrics()

	m.RecordJobRun("success")
	m.RecordJobRun("success")
	m.RecordJobRun("failure")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.jobRuns.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("failure")))
}

func TestWorkerMetrics_RecordNotificationsExpired(t *testing.T) {
	m := newTestMetrics()

	m.RecordNotificationsExpired(42)
	m.RecordNotificationsExpired(8)

	assert.Equal(t, float64(50), testutil.ToFloat64(m.expired))
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	m := newTestMetrics()

	assert.Zero(t, testutil.ToFloat64(m.lastSuccess))
	m.RecordLastSuccess()
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess), float64(0))
}

func TestWorkerMetrics_EmbedsConfigMetrics(t *testing.T) {
	m := newTestMetrics()

	// The fallback accounting from the config loader is reachable through
	// the same metrics handle the sweep job uses.
	m.RecordFallback("sweep_schedule")
	m.SetFallbackActive(true)
	m.RecordLoad()
}
