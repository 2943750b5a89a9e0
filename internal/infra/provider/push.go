package provider

import (
	"context"
	"fmt"

	"learnloop/internal/domain/entity"
)

// PushProvider delivers through a mobile push gateway. Unregistered device
// tokens come back as invalid recipients so the token can be deactivated.
type PushProvider struct {
	cfg     *BackendConfig
	gateway *httpGateway
}

func NewPushProvider(cfg *BackendConfig) *PushProvider {
	return &PushProvider{
		cfg:     cfg,
		gateway: newHTTPGateway(cfg.Endpoint, cfg.APIKey, cfg.Timeout, cfg.newLimiter()),
	}
}

func (p *PushProvider) Name() string                   { return p.cfg.Name }
func (p *PushProvider) Channel() entity.Channel        { return entity.ChannelPush }
func (p *PushProvider) SupportsDeliveryReceipts() bool { return p.cfg.SupportsReceipts }

type pushPayload struct {
	Token      string `json:"token"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	TrackingID string `json:"tracking_id"`
	Priority   string `json:"priority,omitempty"`
}

func (p *PushProvider) buildPayload(n *entity.Notification) pushPayload {
	payload := pushPayload{
		Token:      n.RecipientAddress,
		Title:      n.Title,
		Body:       n.PlainBody,
		TrackingID: n.TrackingID,
	}
	if payload.Body == "" {
		payload.Body = n.Body
	}
	if n.Priority == entity.PriorityHigh {
		payload.Priority = "high"
	}
	return payload
}

func (p *PushProvider) Send(ctx context.Context, n *entity.Notification) (*SendResult, error) {
	resp, err := p.gateway.post(ctx, "/v1/push", p.buildPayload(n))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Send: %w", ctx.Err())
		}
		return Classify(p.Name(), err), nil
	}
	if resp.Status == "unregistered" || resp.Status == "invalid_recipient" {
		return Classify(p.Name(), &InvalidRecipientError{Address: n.RecipientAddress, Reason: resp.Error}), nil
	}
	return &SendResult{
		Provider:          p.Name(),
		ExternalMessageID: resp.MessageID,
		Outcome:           entity.OutcomeSuccess,
	}, nil
}

type pushBatchPayload struct {
	Messages []pushPayload `json:"messages"`
}

func (p *PushProvider) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
	payload := pushBatchPayload{Messages: make([]pushPayload, 0, len(notifications))}
	for _, n := range notifications {
		payload.Messages = append(payload.Messages, p.buildPayload(n))
	}

	var decoded batchResponse
	if err := p.gateway.postInto(ctx, "/v1/push/batch", payload, &decoded); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("SendBulk: %w", ctx.Err())
		}
		return batchFailure(p.Name(), len(notifications), err), nil
	}
	return decodeBatchResults(p.Name(), notifications, decoded.Results), nil
}
