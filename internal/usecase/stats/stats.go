// Package stats computes read-only delivery and engagement statistics.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

// engagementChannels are the channels whose providers report engagement
// events back through webhooks. SMS and chat backends only confirm delivery.
var engagementChannels = []entity.Channel{entity.ChannelEmail, entity.ChannelPush}

// Summary is one stats response: per-status notification counts plus, for
// channels that report engagement, per-event-type interaction counts.
type Summary struct {
	Total      int64
	ByStatus   map[entity.Status]int64
	Engagement map[entity.Channel]map[entity.InteractionType]int64
}

// Aggregator reads notification and interaction counts. It never mutates
// state.
type Aggregator struct {
	notifications repository.NotificationRepository
	interactions  repository.InteractionRepository
	logger        *slog.Logger
}

func NewAggregator(notifications repository.NotificationRepository, interactions repository.InteractionRepository, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		notifications: notifications,
		interactions:  interactions,
		logger:        logger,
	}
}

// Summarize computes counts for the filter set. Statuses with no
// notifications are present with a zero count so responses have a stable
// shape.
func (a *Aggregator) Summarize(ctx context.Context, filters repository.StatsFilters) (*Summary, error) {
	byStatus, err := a.notifications.CountByStatus(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}

	summary := &Summary{
		ByStatus:   make(map[entity.Status]int64, len(entity.AllStatuses)),
		Engagement: make(map[entity.Channel]map[entity.InteractionType]int64),
	}
	for _, status := range entity.AllStatuses {
		summary.ByStatus[status] = byStatus[status]
		summary.Total += byStatus[status]
	}

	for _, channel := range engagementChannels {
		if filters.Channel != nil && *filters.Channel != channel {
			continue
		}
		channelFilters := filters
		channelFilters.Channel = &channel
		counts, err := a.interactions.CountByType(ctx, channelFilters)
		if err != nil {
			return nil, fmt.Errorf("Summarize: %w", err)
		}
		summary.Engagement[channel] = counts
	}
	return summary, nil
}
