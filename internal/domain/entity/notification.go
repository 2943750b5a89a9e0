// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Notification, NotificationPreference
// and NotificationTemplate, along with their state machine rules and domain-specific errors.
package entity

import "time"

// Channel identifies a delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelChat  Channel = "chat"
)

// AllChannels lists every supported delivery channel.
var AllChannels = []Channel{ChannelEmail, ChannelPush, ChannelSMS, ChannelChat}

// Valid reports whether the channel is one of the supported delivery media.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS, ChannelChat:
		return true
	}
	return false
}

// Category is the semantic class of a notification, used for preference gating.
type Category string

const (
	CategoryLifecycle     Category = "lifecycle"
	CategoryTransactional Category = "transactional"
	CategoryReminder      Category = "reminder"
	CategoryProgress      Category = "progress"
	CategoryMarketing     Category = "marketing"
	CategorySystem        Category = "system"
)

// Valid reports whether the category is a known notification category.
func (c Category) Valid() bool {
	switch c {
	case CategoryLifecycle, CategoryTransactional, CategoryReminder,
		CategoryProgress, CategoryMarketing, CategorySystem:
		return true
	}
	return false
}

// Priority controls dispatch ordering within the queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Status is the delivery state of a notification.
//
// The state machine is:
//
//	PENDING → QUEUED → PROCESSING → SENT → DELIVERED
//
// with terminal branches FAILED and CANCELLED. A FAILED notification may be
// resent, which resets it to PENDING. The READ marker is orthogonal to delivery
// status and is tracked via ReadAt, not via Status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every delivery status, in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusQueued, StatusProcessing,
	StatusSent, StatusDelivered, StatusFailed, StatusCancelled,
}

// allowedTransitions encodes the delivery state machine. A resend is the only
// way out of FAILED; SENT and DELIVERED cannot be cancelled. A bounce webhook
// may fail a SENT notification the provider later rejected.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusQueued, StatusCancelled, StatusFailed},
	StatusQueued:     {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusSent, StatusQueued, StatusFailed},
	StatusSent:       {StatusDelivered, StatusFailed},
	StatusFailed:     {StatusPending},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether moving from the current status to the target
// status is allowed by the delivery state machine.
func (s Status) CanTransition(to Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the delivery pipeline's ownership
// of the notification. FAILED is terminal for delivery purposes even though a
// resend can later reset it to PENDING.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Notification is one deliverable message for a single (user, channel) pair.
// A request targeting multiple channels produces one Notification per
// permitted channel; the channel never changes after creation.
type Notification struct {
	ID               string
	UserID           string
	Category         Category
	Channel          Channel
	Title            string
	Body             string
	PlainBody        string
	Priority         Priority
	Status           Status
	ScheduledFor     time.Time
	ExpiresAt        *time.Time
	TrackingID       string
	RecipientAddress string
	Attempts         int
	MaxAttempts      int
	LastError        string
	NextRetryAt      *time.Time
	// IsBulk marks notifications created through the bulk path; the worker
	// routes them through the batch dispatcher.
	IsBulk    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	ReadAt    *time.Time
}

// Transition moves the notification to the target status, returning a
// StateTransitionError when the state machine forbids the move.
func (n *Notification) Transition(to Status) error {
	if !n.Status.CanTransition(to) {
		return &StateTransitionError{From: n.Status, To: to}
	}
	n.Status = to
	return nil
}

// IsExpired reports whether the notification must not be delivered because its
// expiry has passed. Notifications without an expiry never expire.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// IsRead reports whether the user has read the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkRead records the read time. Marking an already-read notification is a
// no-op so that repeated calls stay idempotent.
func (n *Notification) MarkRead(at time.Time) {
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
}

// ValidateForDelivery checks the invariants that must hold before a delivery
// attempt is made: a non-empty recipient address and an attempt budget that
// has not been exceeded.
func (n *Notification) ValidateForDelivery() error {
	if n.RecipientAddress == "" {
		return &ValidationError{Field: "recipientAddress", Message: "is required for delivery"}
	}
	if n.Attempts > n.MaxAttempts {
		return &ValidationError{Field: "attempts", Message: "exceeds maximum attempt count"}
	}
	return nil
}
