package metrics

import (
	"time"
)

// RecordProviderSend records one completed provider send call.
// Outcome should be the normalized attempt outcome string
// ("SUCCESS", "TRANSIENT_FAILURE", "PERMANENT_FAILURE").
func RecordProviderSend(provider, channel, outcome string, duration time.Duration) {
	ProviderSendsTotal.WithLabelValues(provider, channel, outcome).Inc()
	ProviderSendDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderBulkSend records one bulk provider call covering size
// notifications. Per-notification outcomes are recorded separately via
// RecordProviderSend by the caller.
func RecordProviderBulkSend(provider string, size int, duration time.Duration) {
	ProviderBulkBatchSize.WithLabelValues(provider).Observe(float64(size))
	ProviderSendDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderCallError records a call that returned an error instead of a
// result, meaning delivery was never attempted.
func RecordProviderCallError(provider string) {
	ProviderCallErrors.WithLabelValues(provider).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
