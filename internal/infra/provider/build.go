package provider

import (
	"fmt"
	"log/slog"

	"learnloop/internal/domain/entity"
)

// BuildRegistry assembles the registry from the loaded config. Channels with
// no configured backend get a noop provider so dispatch never dereferences a
// missing channel.
func BuildRegistry(cfg *Config, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry()

	register := func(channel entity.Channel, p ChannelProvider) error {
		if p == nil {
			p = NewNoopProvider(channel, logger)
		}
		p = Instrument(p)
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("BuildRegistry: %w", err)
		}
		logger.Info("provider registered",
			slog.String("channel", string(channel)),
			slog.String("provider", p.Name()),
			slog.Bool("receipts", p.SupportsDeliveryReceipts()),
		)
		return nil
	}

	var email, push, sms, chat ChannelProvider
	if cfg.Email != nil {
		email = NewEmailProvider(cfg.Email)
	}
	if cfg.Push != nil {
		push = NewPushProvider(cfg.Push)
	}
	if cfg.SMS != nil {
		sms = NewSMSProvider(cfg.SMS)
	}
	if cfg.Chat != nil {
		chat = NewChatProvider(cfg.Chat)
	}

	if err := register(entity.ChannelEmail, email); err != nil {
		return nil, err
	}
	if err := register(entity.ChannelPush, push); err != nil {
		return nil, err
	}
	if err := register(entity.ChannelSMS, sms); err != nil {
		return nil, err
	}
	if err := register(entity.ChannelChat, chat); err != nil {
		return nil, err
	}
	return registry, nil
}
