package repository

import (
	"context"

	"learnloop/internal/domain/entity"
)

// PreferenceRepository persists per-user notification preferences.
// A missing record is not an error: Get returns (nil, nil) and callers fall
// back to entity.DefaultPreference.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*entity.NotificationPreference, error)
	Upsert(ctx context.Context, pref *entity.NotificationPreference) error
	// DisableChannel turns off a channel's global gate for a user. Called
	// when a provider reports the recipient address as permanently invalid.
	DisableChannel(ctx context.Context, userID string, channel entity.Channel) error
}

// RecipientDirectory resolves channel-specific delivery addresses from the
// user profile store. The profile store itself is owned by the account
// service; the dispatch engine only reads from it.
type RecipientDirectory interface {
	// Address returns the user's delivery address for the channel, or an
	// empty string when none is on file.
	Address(ctx context.Context, userID string, channel entity.Channel) (string, error)
}
