package repository

import (
	"context"

	"learnloop/internal/domain/entity"
)

// InteractionRepository persists delivery/engagement events and the per-attempt
// audit log.
type InteractionRepository interface {
	// InsertUnique records an interaction unless one already exists for the
	// same (provider, external message id, type) triple. Returns true when a
	// new record was created; false means the event is a duplicate and the
	// caller must skip all side effects.
	InsertUnique(ctx context.Context, in *entity.Interaction) (bool, error)
	ListByNotification(ctx context.Context, notificationID string) ([]*entity.Interaction, error)
	// CountByType returns per-event-type counts for the filter set, sourced
	// from interaction records.
	CountByType(ctx context.Context, filters StatsFilters) (map[entity.InteractionType]int64, error)
}

// DeliveryAttemptRepository records the outcome of each provider call.
// Only the retry controller writes here; the stats aggregator reads.
type DeliveryAttemptRepository interface {
	Record(ctx context.Context, attempt *entity.DeliveryAttempt) error
	ListByNotification(ctx context.Context, notificationID string) ([]*entity.DeliveryAttempt, error)
}
