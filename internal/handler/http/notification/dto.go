// Package notification provides HTTP handlers for the notification API:
// creating, listing, reading, cancelling and resending notifications.
package notification

import (
	"errors"
	"net/http"
	"time"

	"learnloop/internal/domain/entity"
)

// DTO represents the JSON structure for notification data transfer.
type DTO struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Category     string     `json:"category"`
	Channel      string     `json:"channel"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	PlainBody    string     `json:"plain_body,omitempty"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	TrackingID   string     `json:"tracking_id"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	LastError    string     `json:"last_error,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}

func toDTO(n *entity.Notification) DTO {
	return DTO{
		ID:           n.ID,
		UserID:       n.UserID,
		Category:     string(n.Category),
		Channel:      string(n.Channel),
		Title:        n.Title,
		Body:         n.Body,
		PlainBody:    n.PlainBody,
		Priority:     string(n.Priority),
		Status:       string(n.Status),
		ScheduledFor: n.ScheduledFor,
		ExpiresAt:    n.ExpiresAt,
		TrackingID:   n.TrackingID,
		Attempts:     n.Attempts,
		MaxAttempts:  n.MaxAttempts,
		LastError:    n.LastError,
		NextRetryAt:  n.NextRetryAt,
		CreatedAt:    n.CreatedAt,
		ReadAt:       n.ReadAt,
	}
}

// statusCode maps domain errors to HTTP status codes. Anything unmapped is an
// internal error.
func statusCode(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrTemplateNotFound):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNoChannelsAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrAlreadySent),
		errors.Is(err, entity.ErrNotResendable):
		return http.StatusConflict
	default:
		var validationErr *entity.ValidationError
		if errors.As(err, &validationErr) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
