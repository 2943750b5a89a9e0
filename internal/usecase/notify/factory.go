package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

// CreateRequest carries everything needed to fan a message out to a user.
// Content comes either from a template (TemplateID + TemplateData) or
// directly (Title + Body); when both are present the template wins.
type CreateRequest struct {
	UserID       string
	Category     entity.Category
	Channels     []entity.Channel
	Priority     entity.Priority
	Title        string
	Body         string
	PlainBody    string
	TemplateID   string
	TemplateData map[string]string
	// RecipientOverride supplies per-channel delivery addresses that take
	// precedence over the user's profile.
	RecipientOverride map[entity.Channel]string
	ScheduledFor      time.Time
	ExpiresAt         *time.Time
	Bulk              bool
}

// BuildResult is the outcome of fanning one request out across channels.
// Skipped maps each dropped channel to the reason it was dropped.
type BuildResult struct {
	Notifications []*entity.Notification
	Skipped       map[entity.Channel]string
}

// Factory turns a create request into per-channel notification entities:
// preference filtering, template rendering, and recipient resolution all
// happen here, before anything is persisted.
type Factory struct {
	resolver  *PreferenceResolver
	templates repository.TemplateRepository
	directory repository.RecipientDirectory
	logger    *slog.Logger
}

func NewFactory(resolver *PreferenceResolver, templates repository.TemplateRepository, directory repository.RecipientDirectory, logger *slog.Logger) *Factory {
	return &Factory{
		resolver:  resolver,
		templates: templates,
		directory: directory,
		logger:    logger,
	}
}

// Build produces one notification per permitted channel. Channels dropped by
// preferences, missing addresses, empty template content, or validation come
// back in Skipped; only an unknown template id or an infrastructure failure
// is an error.
func (f *Factory) Build(ctx context.Context, req CreateRequest, now time.Time) (*BuildResult, error) {
	allowed, skipped, err := f.resolver.AllowedChannels(ctx, req.UserID, req.Category, req.Channels)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	var tpl *entity.NotificationTemplate
	if req.TemplateID != "" {
		tpl, err = f.templates.Get(ctx, req.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		if tpl == nil {
			return nil, fmt.Errorf("Build: template %s: %w", req.TemplateID, entity.ErrTemplateNotFound)
		}
	}

	result := &BuildResult{Skipped: skipped}
	for _, channel := range allowed {
		n, reason, err := f.buildOne(ctx, req, tpl, channel, now)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		if reason != "" {
			result.Skipped[channel] = reason
			f.logger.Debug("channel skipped",
				slog.String("user_id", req.UserID),
				slog.String("channel", string(channel)),
				slog.String("reason", reason))
			continue
		}
		result.Notifications = append(result.Notifications, n)
	}
	return result, nil
}

func (f *Factory) buildOne(ctx context.Context, req CreateRequest, tpl *entity.NotificationTemplate, channel entity.Channel, now time.Time) (*entity.Notification, string, error) {
	title, body, plainBody := req.Title, req.Body, req.PlainBody
	if tpl != nil {
		title, body = RenderForChannel(tpl, channel, req.TemplateData)
		if body == "" {
			return nil, SkipReasonNoTemplate, nil
		}
	}
	// Only email carries a separate plain-text alternative; other channels
	// are plain text already.
	if channel != entity.ChannelEmail || plainBody == "" {
		plainBody = body
	}

	address, ok := req.RecipientOverride[channel]
	if !ok {
		var err error
		address, err = f.directory.Address(ctx, req.UserID, channel)
		if err != nil {
			return nil, "", fmt.Errorf("buildOne: %w", err)
		}
	}
	if address == "" {
		return nil, SkipReasonNoAddress, nil
	}

	// SMS and chat content carries no title, so only titled channels
	// validate one.
	if channel == entity.ChannelEmail || channel == entity.ChannelPush {
		if err := entity.ValidateTitle(title); err != nil {
			return nil, SkipReasonInvalid, nil
		}
	}
	if err := entity.ValidateBody(body); err != nil {
		return nil, SkipReasonInvalid, nil
	}
	if err := entity.ValidateRecipientAddress(channel, address); err != nil {
		return nil, SkipReasonInvalid, nil
	}

	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}
	scheduledFor := req.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = now
	}

	return &entity.Notification{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		Category:         req.Category,
		Channel:          channel,
		Title:            title,
		Body:             body,
		PlainBody:        plainBody,
		Priority:         priority,
		Status:           entity.StatusPending,
		ScheduledFor:     scheduledFor,
		ExpiresAt:        req.ExpiresAt,
		TrackingID:       uuid.NewString(),
		RecipientAddress: address,
		MaxAttempts:      3,
		IsBulk:           req.Bulk,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, "", nil
}
