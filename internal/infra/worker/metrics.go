package worker

import (
	"learnloop/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics exposes the worker's sweep-job metrics alongside the shared
// configuration-health metrics. Construct it once per process; the metric
// names collide if registered twice.
type WorkerMetrics struct {
	*config.ConfigMetrics

	jobRuns     *prometheus.CounterVec
	jobDuration prometheus.Histogram
	expired     prometheus.Counter
	lastSuccess prometheus.Gauge
}

func NewWorkerMetrics() *WorkerMetrics {
	return newWorkerMetrics("worker", prometheus.DefaultRegisterer)
}

func newWorkerMetrics(component string, reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics(component),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: component + "_cron_job_runs_total",
			Help: "Sweep job runs by status.",
		}, []string{"status"}),
		jobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    component + "_cron_job_duration_seconds",
			Help:    "Sweep job wall time.",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Name: component + "_cron_job_notifications_expired_total",
			Help: "Notifications expired across all sweep runs.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: component + "_cron_job_last_success_timestamp",
			Help: "Unix time of the last successful sweep.",
		}),
	}
}

// RecordJobRun counts one sweep run with the given status
// ("started", "success", "failure").
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.jobRuns.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.jobDuration.Observe(seconds)
}

func (m *WorkerMetrics) RecordNotificationsExpired(count int) {
	m.expired.Add(float64(count))
}

func (m *WorkerMetrics) RecordLastSuccess() {
	m.lastSuccess.SetToCurrentTime()
}
