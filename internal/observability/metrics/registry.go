// Package metrics provides centralized Prometheus metrics for the delivery
// backends and the database connection pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider metrics track calls to the external delivery backends
var (
	// ProviderSendsTotal counts provider send calls by backend, channel, and outcome
	ProviderSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_sends_total",
			Help: "Total number of provider send calls",
		},
		[]string{"provider", "channel", "outcome"},
	)

	// ProviderSendDuration measures provider call latency in seconds
	ProviderSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_send_duration_seconds",
			Help:    "Provider send call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	// ProviderBulkBatchSize measures how many notifications each bulk call carried
	ProviderBulkBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_bulk_batch_size",
			Help:    "Number of notifications per bulk provider call",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"provider"},
	)

	// ProviderCallErrors counts calls that could not be attempted at all
	// (context cancelled, payload unbuildable). Delivery failures reported
	// through the result outcome are counted in ProviderSendsTotal instead.
	ProviderCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_call_errors_total",
			Help: "Total number of provider calls that failed before delivery was attempted",
		},
		[]string{"provider"},
	)
)

// Database metrics track connection pool health
var (
	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
