package repository

import (
	"context"
	"time"

	"learnloop/internal/domain/entity"
)

// ListFilters contains optional filters for notification listing.
type ListFilters struct {
	Status   *entity.Status   // Optional: filter by delivery status
	Category *entity.Category // Optional: filter by category
	Channel  *entity.Channel  // Optional: filter by channel
	Unread   bool             // Only notifications without a read marker
	From     *time.Time       // Optional: created_at >= From
	To       *time.Time       // Optional: created_at <= To
}

// StatsFilters contains optional filters for stats aggregation.
type StatsFilters struct {
	UserID   string
	Category *entity.Category
	Channel  *entity.Channel
	From     *time.Time
	To       *time.Time
}

type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	// Get returns entity.ErrNotFound when no notification has the id.
	Get(ctx context.Context, id string) (*entity.Notification, error)
	// GetByTrackingID resolves the notification correlated with an inbound
	// webhook event. Returns (nil, nil) when no notification matches.
	GetByTrackingID(ctx context.Context, trackingID string) (*entity.Notification, error)
	// ListByUser retrieves a page of a user's notifications ordered by
	// created_at DESC, along with the total count for the filter set.
	ListByUser(ctx context.Context, userID string, filters ListFilters, offset, limit int) ([]*entity.Notification, int64, error)

	// UpdateStatus moves a notification between states. The caller is
	// responsible for checking the state machine; the repository only
	// persists.
	UpdateStatus(ctx context.Context, id string, status entity.Status) error
	// ClaimForProcessing atomically moves a QUEUED notification to
	// PROCESSING. Returns false when the notification was not claimable
	// (already claimed, cancelled, or in a terminal state).
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	// ScheduleRetry increments the attempt counter and records the next
	// eligibility time, moving the notification back to QUEUED.
	ScheduleRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	MarkSent(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string) error
	// MarkFailed moves the notification to FAILED and persists the final
	// attempt count, so the stored counter matches the attempt log.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
	// MarkRead sets read_at if unset. Idempotent: marking an already-read
	// notification reports success without changing the stored time.
	MarkRead(ctx context.Context, id string, userID string, at time.Time) error
	// Cancel moves a PENDING or QUEUED notification to CANCELLED. Returns
	// entity.ErrAlreadySent when the notification is SENT or DELIVERED.
	Cancel(ctx context.Context, id string) error
	// ResetForResend resets a FAILED notification to PENDING with zero
	// attempts. Returns entity.ErrNotResendable for other statuses.
	ResetForResend(ctx context.Context, id string) error

	// ListQueued returns QUEUED notifications for dispatch, oldest first.
	// Used to rebuild the in-memory dispatch buffer at worker start.
	ListQueued(ctx context.Context, limit int) ([]*entity.Notification, error)
	// ExpireDue marks non-terminal notifications whose expiry has passed as
	// FAILED and returns the number of rows affected.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	// CountByStatus returns per-status notification counts for the filter set.
	CountByStatus(ctx context.Context, filters StatsFilters) (map[entity.Status]int64, error)
}
