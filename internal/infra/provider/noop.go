package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"learnloop/internal/domain/entity"
)

// NoopProvider accepts everything without calling a backend. It stands in
// for channels with no configured backend and for local development.
type NoopProvider struct {
	channel entity.Channel
	logger  *slog.Logger
}

func NewNoopProvider(channel entity.Channel, logger *slog.Logger) *NoopProvider {
	return &NoopProvider{channel: channel, logger: logger}
}

func (p *NoopProvider) Name() string                   { return "noop-" + string(p.channel) }
func (p *NoopProvider) Channel() entity.Channel        { return p.channel }
func (p *NoopProvider) SupportsDeliveryReceipts() bool { return false }

func (p *NoopProvider) Send(_ context.Context, n *entity.Notification) (*SendResult, error) {
	if p.logger != nil {
		p.logger.Debug("noop send",
			slog.String("channel", string(p.channel)),
			slog.String("tracking_id", n.TrackingID),
		)
	}
	return &SendResult{
		Provider:          p.Name(),
		ExternalMessageID: uuid.NewString(),
		Outcome:           entity.OutcomeSuccess,
	}, nil
}

func (p *NoopProvider) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
	results := make([]*SendResult, len(notifications))
	for i, n := range notifications {
		res, err := p.Send(ctx, n)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
