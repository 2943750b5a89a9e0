package pagination

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_pagination_requests_total",
			Help: "Total number of pagination requests",
		},
		[]string{"status", "page_range"},
	)

	durationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_pagination_duration_seconds",
			Help:    "Request duration distribution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)

	totalCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_list_total_count",
			Help: "Current total number of notifications matching the last list query",
		},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_pagination_errors_total",
			Help: "Total number of pagination errors",
		},
		[]string{"type"},
	)
)

// RecordRequest counts one list request, bucketed by page depth so deep
// scans show up separately from first-page traffic.
func RecordRequest(statusCode int, page int) {
	requestsTotal.WithLabelValues(strconv.Itoa(statusCode), pageRangeBucket(page)).Inc()
}

// RecordDuration observes one operation's duration in seconds. Operation is
// "handler", "service", or "repository".
func RecordDuration(operation string, duration float64) {
	durationSeconds.WithLabelValues(operation).Observe(duration)
}

func UpdateTotalCount(count int64) {
	totalCount.Set(float64(count))
}

// RecordError counts an error by type: "validation", "database", "timeout".
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

func pageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
