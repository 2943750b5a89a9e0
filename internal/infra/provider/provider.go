// Package provider abstracts the external delivery backends behind a uniform
// ChannelProvider capability. The dispatch engine depends only on this
// interface and the name registry; new backends are added by registering an
// implementation at startup, never by branching in dispatch code.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"learnloop/internal/domain/entity"
)

// SendResult is the normalized outcome of one provider call for one recipient.
type SendResult struct {
	// Provider is the backend that handled the call.
	Provider string

	// ExternalMessageID is the backend's id for the accepted message. Empty
	// on failure. Webhook events carry this id back for correlation.
	ExternalMessageID string

	// Outcome classifies the call: success, transient-failure, or
	// permanent-failure.
	Outcome entity.AttemptOutcome

	// Detail carries the failure description for the attempt log.
	Detail string

	// InvalidRecipient is set on permanent failures caused by the recipient
	// address itself (bounced mailbox, unregistered token). Callers should
	// deactivate the address so future sends skip it.
	InvalidRecipient bool

	// RetryAfter is a backend-suggested minimum wait before retrying, set
	// when the backend throttled the call. Zero means no suggestion.
	RetryAfter time.Duration
}

// ChannelProvider is the uniform contract wrapping one concrete delivery
// backend (SMTP relay, push gateway, SMS gateway, chat bot).
//
// Thread safety: all methods must be safe for concurrent use.
//
// Failure contract: Send and SendBulk report delivery failures through
// SendResult.Outcome, not through the error return. A non-nil error means the
// call could not be attempted at all (context cancelled, payload unbuildable)
// and the dispatcher classifies it as transient.
type ChannelProvider interface {
	// Name returns the backend identifier used in the registry, logs,
	// metrics, and inbound webhook paths (lowercase, alphanumeric).
	Name() string

	// Channel returns the delivery medium this backend serves.
	Channel() entity.Channel

	// SupportsDeliveryReceipts reports whether the backend emits delivery
	// webhooks. Without receipts, SENT is the terminal success status.
	SupportsDeliveryReceipts() bool

	// Send delivers a single notification to its recipient address.
	Send(ctx context.Context, n *entity.Notification) (*SendResult, error)

	// SendBulk delivers a batch in one backend call where the backend
	// supports it. Results are positional: results[i] belongs to
	// notifications[i], and one invalid recipient must not fail the rest.
	SendBulk(ctx context.Context, notifications []*entity.Notification) ([]*SendResult, error)
}

// Registry maps provider names and channels to registered backends.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]ChannelProvider
	byChannel map[entity.Channel]ChannelProvider
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]ChannelProvider),
		byChannel: make(map[entity.Channel]ChannelProvider),
	}
}

// Register adds a provider. Registering a second provider for the same
// channel replaces the first; registering a duplicate name is an error.
func (r *Registry) Register(p ChannelProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.byName[p.Name()] = p
	r.byChannel[p.Channel()] = p
	return nil
}

// ForChannel returns the provider serving the channel, or nil when the
// channel has no registered backend.
func (r *Registry) ForChannel(channel entity.Channel) ChannelProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byChannel[channel]
}

// ByName returns the provider with the given name, or nil.
func (r *Registry) ByName(name string) ChannelProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Names returns the registered provider names, for health reporting.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
