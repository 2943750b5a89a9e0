package slo

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Updater periodically recomputes the SLO gauges from the HTTP request
// metrics already collected in the Prometheus registry. It reads
// http_requests_total for availability and error rate, and the
// http_request_duration_seconds histogram for latency quantiles.
type Updater struct {
	gatherer prometheus.Gatherer
	interval time.Duration
	logger   *slog.Logger
}

// NewUpdater creates an Updater reading from the given gatherer. Pass
// prometheus.DefaultGatherer for the process-wide registry.
func NewUpdater(gatherer prometheus.Gatherer, interval time.Duration, logger *slog.Logger) *Updater {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Updater{
		gatherer: gatherer,
		interval: interval,
		logger:   logger,
	}
}

// Run recomputes the SLO gauges on the configured interval until the context
// is cancelled.
func (u *Updater) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.logger.Info("slo updater started", slog.Duration("interval", u.interval))

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("slo updater stopped")
			return
		case <-ticker.C:
			u.Update()
		}
	}
}

// Update recomputes and sets the SLO gauges once.
func (u *Updater) Update() {
	families, err := u.gatherer.Gather()
	if err != nil {
		u.logger.Warn("slo gather failed", slog.String("error", err.Error()))
		return
	}
	apply(families)
}

// apply computes the SLO values from gathered metric families and sets the
// gauges.
func apply(families []*dto.MetricFamily) {
	var total, server5xx float64
	buckets := make(map[float64]uint64)
	var sampleCount uint64

	for _, fam := range families {
		switch fam.GetName() {
		case "http_requests_total":
			for _, m := range fam.GetMetric() {
				v := m.GetCounter().GetValue()
				total += v
				for _, label := range m.GetLabel() {
					if label.GetName() == "status" && len(label.GetValue()) > 0 && label.GetValue()[0] == '5' {
						server5xx += v
					}
				}
			}
		case "http_request_duration_seconds":
			for _, m := range fam.GetMetric() {
				h := m.GetHistogram()
				if h == nil {
					continue
				}
				sampleCount += h.GetSampleCount()
				for _, b := range h.GetBucket() {
					buckets[b.GetUpperBound()] += b.GetCumulativeCount()
				}
			}
		}
	}

	if total > 0 {
		UpdateAvailability((total - server5xx) / total)
		UpdateErrorRate(server5xx / total)
	}
	if sampleCount > 0 {
		UpdateLatencyP95(quantileFromBuckets(buckets, sampleCount, 0.95))
		UpdateLatencyP99(quantileFromBuckets(buckets, sampleCount, 0.99))
	}
}

// quantileFromBuckets estimates a quantile from cumulative histogram buckets
// using linear interpolation within the bucket holding the target rank. The
// +Inf bucket collapses to its lower bound since it has no finite width.
func quantileFromBuckets(buckets map[float64]uint64, sampleCount uint64, q float64) float64 {
	if len(buckets) == 0 || sampleCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(buckets))
	for bound := range buckets {
		bounds = append(bounds, bound)
	}
	sort.Float64s(bounds)

	rank := q * float64(sampleCount)
	var prevBound float64
	var prevCount uint64

	for _, bound := range bounds {
		count := buckets[bound]
		if float64(count) >= rank {
			if isInf(bound) {
				return prevBound
			}
			bucketCount := count - prevCount
			if bucketCount == 0 {
				return bound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + (bound-prevBound)*fraction
		}
		prevBound = bound
		prevCount = count
	}
	return prevBound
}

func isInf(f float64) bool {
	return f > 1e308
}
