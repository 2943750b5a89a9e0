// Package webhook ingests asynchronous delivery and engagement callbacks from
// channel providers. Events arrive out of order and may be replayed; every
// state change here is idempotent.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/repository"
)

// payload is the event envelope providers post back. TrackingID echoes the
// tracking id we attached to the outbound send; it is how an event finds its
// notification.
type payload struct {
	Event      string `json:"event"`
	MessageID  string `json:"message_id"`
	TrackingID string `json:"tracking_id"`
	Timestamp  string `json:"timestamp"`
	Detail     string `json:"detail"`
}

// eventTypes maps provider event names to interaction types. Names outside
// this table are accepted and dropped.
var eventTypes = map[string]entity.InteractionType{
	"delivered":    entity.InteractionDelivered,
	"opened":       entity.InteractionOpened,
	"clicked":      entity.InteractionClicked,
	"dismissed":    entity.InteractionDismissed,
	"bounced":      entity.InteractionBounced,
	"complained":   entity.InteractionComplained,
	"unsubscribed": entity.InteractionUnsubscribed,
}

// Ingestor applies provider callbacks to notification state.
type Ingestor struct {
	notifications repository.NotificationRepository
	interactions  repository.InteractionRepository
	preferences   repository.PreferenceRepository
	// secrets maps provider name to the shared webhook secret. A provider
	// without an entry skips signature verification.
	secrets map[string]string
	bus     *events.Bus
	logger  *slog.Logger
}

func NewIngestor(
	notifications repository.NotificationRepository,
	interactions repository.InteractionRepository,
	preferences repository.PreferenceRepository,
	secrets map[string]string,
	bus *events.Bus,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		notifications: notifications,
		interactions:  interactions,
		preferences:   preferences,
		secrets:       secrets,
		bus:           bus,
		logger:        logger,
	}
}

// Handle processes one raw provider callback. The signature, when the
// provider has a configured secret, is verified before anything else; an
// invalid or missing signature returns ErrInvalidSignature with no side
// effects. Unknown event types and events that match no notification are
// dropped without error so providers do not retry them forever.
func (i *Ingestor) Handle(ctx context.Context, providerName string, body []byte, signature string) error {
	if secret, ok := i.secrets[providerName]; ok && secret != "" {
		if err := VerifySignature(secret, body, signature); err != nil {
			recordEvent(providerName, "unknown", "rejected")
			return fmt.Errorf("Handle: provider %s: %w", providerName, err)
		}
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		recordEvent(providerName, "unknown", "malformed")
		return fmt.Errorf("Handle: decode payload: %w", err)
	}

	interactionType, known := eventTypes[p.Event]
	if !known {
		i.logger.Debug("ignoring unsupported webhook event",
			slog.String("provider", providerName),
			slog.String("event", p.Event))
		recordEvent(providerName, p.Event, "ignored")
		return nil
	}

	n, err := i.notifications.GetByTrackingID(ctx, p.TrackingID)
	if err != nil {
		return fmt.Errorf("Handle: %w", err)
	}
	if n == nil {
		i.logger.Warn("webhook event matched no notification",
			slog.String("provider", providerName),
			slog.String("event", p.Event),
			slog.String("tracking_id", p.TrackingID))
		recordEvent(providerName, p.Event, "unmatched")
		return nil
	}

	inserted, err := i.interactions.InsertUnique(ctx, &entity.Interaction{
		NotificationID:    n.ID,
		Provider:          providerName,
		ExternalMessageID: p.MessageID,
		Type:              interactionType,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("Handle: %w", err)
	}
	if !inserted {
		// Replayed event: everything below already happened.
		recordEvent(providerName, p.Event, "duplicate")
		return nil
	}

	if err := i.apply(ctx, n, interactionType, providerName); err != nil {
		return fmt.Errorf("Handle: %w", err)
	}

	recordEvent(providerName, p.Event, "applied")
	i.bus.Publish(events.Event{
		Type:           events.TypeWebhookReceived,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        string(n.Channel),
		Provider:       providerName,
		Detail:         p.Event,
	})
	return nil
}

// apply performs the per-event-type state change.
func (i *Ingestor) apply(ctx context.Context, n *entity.Notification, t entity.InteractionType, providerName string) error {
	switch t {
	case entity.InteractionDelivered:
		if err := i.notifications.MarkDelivered(ctx, n.ID); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		i.bus.Publish(events.Event{
			Type:           events.TypeDelivered,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
			Provider:       providerName,
		})

	case entity.InteractionOpened:
		// Opening the message is reading it.
		if err := i.notifications.MarkRead(ctx, n.ID, n.UserID, time.Now().UTC()); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		i.bus.Publish(events.Event{
			Type:           events.TypeRead,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
		})

	case entity.InteractionBounced:
		// A bounce is a permanent address failure: fail the notification and
		// stop sending to this address. A bounce arriving after a delivered
		// receipt records the interaction but leaves the status alone.
		if n.Status.CanTransition(entity.StatusFailed) {
			if err := i.notifications.MarkFailed(ctx, n.ID, n.Attempts, "recipient address bounced"); err != nil {
				return fmt.Errorf("apply: %w", err)
			}
		}
		if err := i.preferences.DisableChannel(ctx, n.UserID, n.Channel); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		i.logger.Info("channel disabled after bounce",
			slog.String("user_id", n.UserID),
			slog.String("channel", string(n.Channel)))
		i.bus.Publish(events.Event{
			Type:           events.TypeChannelDisabled,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
			Detail:         "bounced",
		})

	case entity.InteractionComplained, entity.InteractionUnsubscribed:
		// The user rejected the channel; honor it in preferences.
		if err := i.preferences.DisableChannel(ctx, n.UserID, n.Channel); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		i.bus.Publish(events.Event{
			Type:           events.TypeChannelDisabled,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
			Detail:         string(t),
		})
	}
	// Clicked and dismissed only record the interaction.
	return nil
}
