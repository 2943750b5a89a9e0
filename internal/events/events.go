// Package events carries notification lifecycle events to in-process
// observers. The dispatch engine and use cases publish; observers like the
// audit logger subscribe at startup.
package events

import (
	"sync"
	"time"
)

// Type enumerates the lifecycle events.
type Type string

const (
	TypeCreated         Type = "notification.created"
	TypeQueued          Type = "notification.queued"
	TypeSent            Type = "notification.sent"
	TypeDelivered       Type = "notification.delivered"
	TypeFailed          Type = "notification.failed"
	TypeCancelled       Type = "notification.cancelled"
	TypeRead            Type = "notification.read"
	TypeRetryScheduled  Type = "notification.retry_scheduled"
	TypeExpired         Type = "notification.expired"
	TypeChannelDisabled Type = "preference.channel_disabled"
	TypeWebhookReceived Type = "webhook.received"
)

// Event is one lifecycle occurrence. Fields beyond Type and At are filled
// where they apply.
type Event struct {
	Type           Type
	At             time.Time
	NotificationID string
	UserID         string
	Channel        string
	Provider       string
	Attempt        int
	Detail         string
}

// Observer receives published events. Observers must not block; slow work
// belongs in the observer's own goroutine.
type Observer func(Event)

// Bus fans events out to subscribed observers synchronously, in
// subscription order. Safe for concurrent publish and subscribe.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish stamps the event time if unset and delivers to every observer.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, o := range observers {
		o(e)
	}
}
