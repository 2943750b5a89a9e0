package repository

import (
	"context"

	"learnloop/internal/domain/entity"
)

// TemplateRepository reads notification templates. Templates are read-only
// from the dispatch engine's perspective; authoring happens through a
// separate flow.
type TemplateRepository interface {
	// Get returns the template, or (nil, nil) when the id is unknown.
	Get(ctx context.Context, id string) (*entity.NotificationTemplate, error)
}
