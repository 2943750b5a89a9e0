package provider

import (
	"context"
	"fmt"

	"learnloop/internal/domain/entity"
)

// SMSProvider delivers through an SMS gateway. SMS carries only the plain
// body; the gateway has no batch endpoint, so SendBulk loops.
type SMSProvider struct {
	cfg     *BackendConfig
	gateway *httpGateway
}

func NewSMSProvider(cfg *BackendConfig) *SMSProvider {
	return &SMSProvider{
		cfg:     cfg,
		gateway: newHTTPGateway(cfg.Endpoint, cfg.APIKey, cfg.Timeout, cfg.newLimiter()),
	}
}

func (p *SMSProvider) Name() string                   { return p.cfg.Name }
func (p *SMSProvider) Channel() entity.Channel        { return entity.ChannelSMS }
func (p *SMSProvider) SupportsDeliveryReceipts() bool { return p.cfg.SupportsReceipts }

type smsPayload struct {
	To         string `json:"to"`
	Body       string `json:"body"`
	TrackingID string `json:"tracking_id"`
}

func (p *SMSProvider) Send(ctx context.Context, n *entity.Notification) (*SendResult, error) {
	body := n.PlainBody
	if body == "" {
		body = n.Body
	}
	resp, err := p.gateway.post(ctx, "/v1/sms", smsPayload{
		To:         n.RecipientAddress,
		Body:       body,
		TrackingID: n.TrackingID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Send: %w", ctx.Err())
		}
		return Classify(p.Name(), err), nil
	}
	if resp.Status == "invalid_recipient" {
		return Classify(p.Name(), &InvalidRecipientError{Address: n.RecipientAddress, Reason: resp.Error}), nil
	}
	return &SendResult{
		Provider:          p.Name(),
		ExternalMessageID: resp.MessageID,
		Outcome:           entity.OutcomeSuccess,
	}, nil
}

func (p *SMSProvider) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
	results := make([]*SendResult, len(notifications))
	for i, n := range notifications {
		res, err := p.Send(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("SendBulk: %w", err)
		}
		results[i] = res
	}
	return results, nil
}
