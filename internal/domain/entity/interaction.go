package entity

import "time"

// InteractionType is the kind of provider or user event recorded against a
// notification.
type InteractionType string

const (
	InteractionDelivered    InteractionType = "delivered"
	InteractionOpened       InteractionType = "opened"
	InteractionClicked      InteractionType = "clicked"
	InteractionDismissed    InteractionType = "dismissed"
	InteractionBounced      InteractionType = "bounced"
	InteractionComplained   InteractionType = "complained"
	InteractionUnsubscribed InteractionType = "unsubscribed"
)

// Valid reports whether the interaction type is one the system records.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionDelivered, InteractionOpened, InteractionClicked,
		InteractionDismissed, InteractionBounced, InteractionComplained,
		InteractionUnsubscribed:
		return true
	}
	return false
}

// Interaction records a delivery or engagement event tied to a notification,
// produced by the webhook ingestor or an explicit mark-read call.
//
// The (Provider, ExternalMessageID, Type) triple is unique: replaying the same
// provider webhook must not create a second record.
type Interaction struct {
	ID                int64
	NotificationID    string
	Provider          string
	ExternalMessageID string
	Type              InteractionType
	CreatedAt         time.Time
}

// AttemptOutcome classifies the result of a single delivery attempt.
type AttemptOutcome string

const (
	// OutcomeSuccess means the provider accepted the message.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeTransientFailure means the attempt failed in a retryable way
	// (timeout, throttling, provider 5xx).
	OutcomeTransientFailure AttemptOutcome = "transient-failure"
	// OutcomePermanentFailure means the attempt failed in a way retrying
	// cannot fix (invalid recipient, unregistered token).
	OutcomePermanentFailure AttemptOutcome = "permanent-failure"
)

// Retryable reports whether the outcome should go through the retry path.
func (o AttemptOutcome) Retryable() bool {
	return o == OutcomeTransientFailure
}

// DeliveryAttempt is the audit record of one provider call for a notification.
type DeliveryAttempt struct {
	ID             int64
	NotificationID string
	AttemptNumber  int
	Provider       string
	Outcome        AttemptOutcome
	ErrorDetail    string
	CreatedAt      time.Time
}
