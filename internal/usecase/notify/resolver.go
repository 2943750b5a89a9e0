package notify

import (
	"context"
	"fmt"
	"log/slog"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

// PreferenceResolver answers "may this user receive this category on this
// channel", falling back to the default-allow preference set when the user
// has never saved preferences.
type PreferenceResolver struct {
	prefs  repository.PreferenceRepository
	logger *slog.Logger
}

func NewPreferenceResolver(prefs repository.PreferenceRepository, logger *slog.Logger) *PreferenceResolver {
	return &PreferenceResolver{prefs: prefs, logger: logger}
}

// Resolve loads the user's preference set, or the defaults when none is
// stored.
func (r *PreferenceResolver) Resolve(ctx context.Context, userID string) (*entity.NotificationPreference, error) {
	pref, err := r.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	if pref == nil {
		return entity.DefaultPreference(userID), nil
	}
	return pref, nil
}

// AllowedChannels filters the requested channels through the user's
// preference set. Dropped channels come back with their reason so callers
// can log and report them; dropping every channel is not an error here.
func (r *PreferenceResolver) AllowedChannels(ctx context.Context, userID string, category entity.Category, requested []entity.Channel) ([]entity.Channel, map[entity.Channel]string, error) {
	pref, err := r.Resolve(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("AllowedChannels: %w", err)
	}

	allowed := make([]entity.Channel, 0, len(requested))
	skipped := make(map[entity.Channel]string)
	for _, channel := range requested {
		if pref.Allows(category, channel) {
			allowed = append(allowed, channel)
			continue
		}
		skipped[channel] = SkipReasonPreference
		r.logger.Debug("channel dropped by preferences",
			slog.String("user_id", userID),
			slog.String("category", string(category)),
			slog.String("channel", string(channel)))
	}
	return allowed, skipped, nil
}
