package provider

import (
	"context"
	"fmt"

	"learnloop/internal/domain/entity"
)

// EmailProvider delivers through an HTTP email gateway (transactional mail
// API). The gateway posts bounce and delivery webhooks, so email tracks
// through to DELIVERED.
type EmailProvider struct {
	cfg     *BackendConfig
	gateway *httpGateway
}

func NewEmailProvider(cfg *BackendConfig) *EmailProvider {
	return &EmailProvider{
		cfg:     cfg,
		gateway: newHTTPGateway(cfg.Endpoint, cfg.APIKey, cfg.Timeout, cfg.newLimiter()),
	}
}

func (p *EmailProvider) Name() string                   { return p.cfg.Name }
func (p *EmailProvider) Channel() entity.Channel        { return entity.ChannelEmail }
func (p *EmailProvider) SupportsDeliveryReceipts() bool { return p.cfg.SupportsReceipts }

type emailPayload struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	HTMLBody   string `json:"html_body"`
	TextBody   string `json:"text_body,omitempty"`
	TrackingID string `json:"tracking_id"`
}

func (p *EmailProvider) Send(ctx context.Context, n *entity.Notification) (*SendResult, error) {
	resp, err := p.gateway.post(ctx, "/v1/messages", emailPayload{
		To:         n.RecipientAddress,
		Subject:    n.Title,
		HTMLBody:   n.Body,
		TextBody:   n.PlainBody,
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

type emailBatchPayload struct {
	Messages []emailPayload `json:"messages"`
}

type batchItemResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItemResponse `json:"results"`
}

// SendBulk posts one batch call. Per-message rejections come back in the
// positional results array; a rejected recipient does not fail the batch.
func (p *EmailProvider) SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error) {
	payload := emailBatchPayload{Messages: make([]emailPayload, 0, len(notifications))}
	for _, n := range notifications {
		payload.Messages = append(payload.Messages, emailPayload{
			To:         n.RecipientAddress,
			Subject:    n.Title,
			HTMLBody:   n.Body,
			TextBody:   n.PlainBody,
			TrackingID: n.TrackingID,
		})
	}

	var decoded batchResponse
	if err := p.gateway.postInto(ctx, "/v1/messages/batch", payload, &decoded); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("SendBulk: %w", ctx.Err())
		}
		return batchFailure(p.Name(), len(notifications), err), nil
	}
	return decodeBatchResults(p.Name(), notifications, decoded.Results), nil
}

// batchFailure spreads one whole-batch error over every message slot.
func batchFailure(providerName string, count int, err error) []*SendResult {
	shared := Classify(providerName, err)
	results := make([]*SendResult, count)
	for i := range results {
		cp := *shared
		results[i] = &cp
	}
	return results
}

// decodeBatchResults maps positional backend results onto SendResults,
// padding with transient failures if the backend returned fewer entries.
func decodeBatchResults(providerName string, notifications []*entity.Notification, items []batchItemResponse) []*SendResult {
	results := make([]*SendResult, len(notifications))
	for i, n := range notifications {
		if i >= len(items) {
			results[i] = &SendResult{
				Provider: providerName,
				Outcome:  entity.OutcomeTransientFailure,
				Detail:   "backend returned no result for message",
			}
			continue
		}
		item := items[i]
		switch item.Status {
		case "invalid_recipient", "unregistered":
			results[i] = Classify(providerName, &InvalidRecipientError{Address: n.RecipientAddress, Reason: item.Error})
		case "failed":
			results[i] = &SendResult{
				Provider: providerName,
				Outcome:  entity.OutcomeTransientFailure,
				Detail:   item.Error,
			}
		default:
			results[i] = &SendResult{
				Provider:          providerName,
				ExternalMessageID: item.MessageID,
				Outcome:           entity.OutcomeSuccess,
			}
		}
	}
	return results
}
