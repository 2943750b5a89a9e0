package provider

import (
	"context"
	"time"

	"learnloop/internal/domain/entity"
	"learnloop/internal/observability/metrics"
)

// instrumented decorates a ChannelProvider with Prometheus metrics. The
// registry wraps every backend at build time so per-provider latency and
// outcome counts need no support from the backend implementations.
type instrumented struct {
	inner ChannelProvider
}

// Instrument wraps p with send metrics. Wrapping a nil provider returns nil.
func Instrument(p ChannelProvider) ChannelProvider {
	if p == nil {
		return nil
	}
	return &instrumented{inner: p}
}

func (m *instrumented) Name() string { return m.inner.Name() }

func (m *instrumented) Channel() entity.Channel { return m.inner.Channel() }

func (m *instrumented) SupportsDeliveryReceipts() bool { return m.inner.SupportsDeliveryReceipts() }

func (m *instrumented) Send(ctx context.Context, n *entity.Notification) (*SendResult, error) {
	start := time.Now()
	res, err := m.inner.Send(ctx, n)
	if err != nil {
		metrics.RecordProviderCallError(m.inner.Name())
		return res, err
	}
	metrics.RecordProviderSend(m.inner.Name(), string(m.inner.Channel()), string(res.Outcome), time.Since(start))
	return res, nil
}

func (m *instrumented) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
	start := time.Now()
	results, err := m.inner.SendBulk(ctx, notifications)
	if err != nil {
		metrics.RecordProviderCallError(m.inner.Name())
		return results, err
	}
	metrics.RecordProviderBulkSend(m.inner.Name(), len(notifications), time.Since(start))
	for _, res := range results {
		if res == nil {
			continue
		}
		ProviderOutcomeCount(m.inner.Name(), string(m.inner.Channel()), string(res.Outcome))
	}
	return results, nil
}

// ProviderOutcomeCount increments the per-outcome counter without recording
// a latency sample, used for the positional results of a bulk call.
func ProviderOutcomeCount(provider, channel, outcome string) {
	metrics.ProviderSendsTotal.WithLabelValues(provider, channel, outcome).Inc()
}
