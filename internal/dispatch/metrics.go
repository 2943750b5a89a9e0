package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the dispatch engine
var (
	dispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Total number of delivery attempts",
		},
		[]string{"channel", "outcome"}, // outcome: success|transient-failure|permanent-failure
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Provider call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	dispatchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retries_scheduled_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"channel"},
	)

	dispatchExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_exhausted_total",
			Help: "Total number of notifications failed after the attempt budget",
		},
		[]string{"channel"},
	)

	dispatchCircuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_circuit_breaker_open_total",
			Help: "Total number of deliveries short-circuited by an open breaker",
		},
		[]string{"provider"},
	)

	dispatchRateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the per-channel send pacer",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Number of notifications buffered for dispatch",
		},
	)

	channelsDisabledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_channels_disabled_total",
			Help: "Total number of channel auto-disables after invalid recipients",
		},
		[]string{"channel"},
	)
)

func recordAttempt(channel, outcome string, duration time.Duration) {
	dispatchAttemptsTotal.WithLabelValues(channel, outcome).Inc()
	dispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func recordRetryScheduled(channel string) {
	dispatchRetriesTotal.WithLabelValues(channel).Inc()
}

func recordExhausted(channel string) {
	dispatchExhaustedTotal.WithLabelValues(channel).Inc()
}

func recordCircuitOpen(provider string) {
	dispatchCircuitOpenTotal.WithLabelValues(provider).Inc()
}

func recordRateLimitWait(channel string, wait time.Duration) {
	dispatchRateLimitWait.WithLabelValues(channel).Observe(wait.Seconds())
}

// SetQueueDepth publishes the current buffer size, polled by the worker's
// health loop.
func SetQueueDepth(depth float64) {
	queueDepth.Set(depth)
}

func recordChannelDisabled(channel string) {
	channelsDisabledTotal.WithLabelValues(channel).Inc()
}
