// Package slo exposes service level objective gauges derived from the HTTP
// request metrics.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Objectives for the notification API. Availability is monthly; the latency
// targets apply to the p95 and p99 of all request durations.
const (
	AvailabilitySLO = 99.9
	LatencyP95SLO   = 0.200
	LatencyP99SLO   = 0.500
	ErrorRateSLO    = 0.001
)

// Gauges holding the most recent SLO computation. The Updater refreshes them
// from the live request metrics once per interval.
var (
	SLOAvailability = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_availability_ratio",
		Help: "Current availability ratio (0-1), target: 0.999",
	})
	SLOLatencyP95 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p95_seconds",
		Help: "Current p95 latency in seconds, target: 0.200",
	})
	SLOLatencyP99 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p99_seconds",
		Help: "Current p99 latency in seconds, target: 0.500",
	})
	SLOErrorRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_error_rate_ratio",
		Help: "Current error rate ratio (0-1), target: 0.001",
	})
)

// UpdateAvailability sets the availability gauge to (total - 5xx) / total.
func UpdateAvailability(ratio float64) { SLOAvailability.Set(ratio) }

// UpdateLatencyP95 sets the p95 latency gauge, in seconds.
func UpdateLatencyP95(seconds float64) { SLOLatencyP95.Set(seconds) }

// UpdateLatencyP99 sets the p99 latency gauge, in seconds.
func UpdateLatencyP99(seconds float64) { SLOLatencyP99.Set(seconds) }

// UpdateErrorRate sets the error rate gauge to 5xx / total.
func UpdateErrorRate(ratio float64) { SLOErrorRate.Set(ratio) }
