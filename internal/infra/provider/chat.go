package provider

import (
	"context"
	"fmt"

	"learnloop/internal/domain/entity"
)

// ChatProvider delivers to an in-platform chat bot endpoint. Chat messages
// are acknowledged synchronously, so no delivery receipts are expected.
type ChatProvider struct {
	cfg     *BackendConfig
	gateway *httpGateway
}

func NewChatProvider(cfg *BackendConfig) *ChatProvider {
	return &ChatProvider{
		cfg:     cfg,
		gateway: newHTTPGateway(cfg.Endpoint, cfg.APIKey, cfg.Timeout, cfg.newLimiter()),
	}
}

func (p *ChatProvider) Name() string                   { return p.cfg.Name }
func (p *ChatProvider) Channel() entity.Channel        { return entity.ChannelChat }
func (p *ChatProvider) SupportsDeliveryReceipts() bool { return p.cfg.SupportsReceipts }

type chatPayload struct {
	ChatID     string `json:"chat_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	TrackingID string `json:"tracking_id"`
}

func (p *ChatProvider) Send(ctx context.Context, n *entity.Notification) (*SendResult, error) {
	text := n.PlainBody
	if text == "" {
		text = n.Body
	}
	resp, err := p.gateway.post(ctx, "/v1/chat/messages", chatPayload{
		ChatID:     n.RecipientAddress,
		Title:      n.Title,
		Text:       text,
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

func (p *ChatProvider) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
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
