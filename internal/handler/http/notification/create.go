package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"learnloop/internal/domain/entity"
	"learnloop/internal/handler/http/respond"
	"learnloop/internal/usecase/notify"
)

type createRequest struct {
	UserID             string            `json:"user_id"`
	Category           string            `json:"category"`
	Channels           []string          `json:"channels"`
	Priority           string            `json:"priority"`
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	PlainBody          string            `json:"plain_body"`
	TemplateID         string            `json:"template_id"`
	TemplateData       map[string]string `json:"template_data"`
	RecipientOverrides map[string]string `json:"recipient_overrides"`
	ScheduledFor       string            `json:"scheduled_for"`
	ExpiresAt          string            `json:"expires_at"`
}

type createResponse struct {
	Notifications []DTO             `json:"notifications"`
	Skipped       map[string]string `json:"skipped,omitempty"`
}

type CreateHandler struct{ Svc *notify.Service }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	input, err := toCreateRequest(req)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.Svc.Create(r.Context(), input)
	if err != nil {
		respond.SafeError(w, statusCode(err), err)
		return
	}

	resp := createResponse{Skipped: skippedDTO(result.Skipped)}
	for _, n := range result.Notifications {
		resp.Notifications = append(resp.Notifications, toDTO(n))
	}
	respond.JSON(w, http.StatusAccepted, resp)
}

// toCreateRequest validates the wire request and converts it to use case
// input.
func toCreateRequest(req createRequest) (notify.CreateRequest, error) {
	if req.UserID == "" {
		return notify.CreateRequest{}, errors.New("user_id is required")
	}
	if len(req.Channels) == 0 {
		return notify.CreateRequest{}, errors.New("channels is required")
	}
	category := entity.Category(req.Category)
	if !category.Valid() {
		return notify.CreateRequest{}, errors.New("category is invalid")
	}
	if req.Title == "" && req.TemplateID == "" {
		return notify.CreateRequest{}, errors.New("title or template_id is required")
	}

	channels := make([]entity.Channel, 0, len(req.Channels))
	for _, c := range req.Channels {
		channel := entity.Channel(c)
		if !channel.Valid() {
			return notify.CreateRequest{}, errors.New("channel is invalid: " + c)
		}
		channels = append(channels, channel)
	}

	priority := entity.PriorityNormal
	if req.Priority != "" {
		priority = entity.Priority(req.Priority)
		if !priority.Valid() {
			return notify.CreateRequest{}, errors.New("priority is invalid")
		}
	}

	var scheduledFor time.Time
	if req.ScheduledFor != "" {
		var err error
		scheduledFor, err = time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return notify.CreateRequest{}, errors.New("scheduled_for must be in RFC3339 format")
		}
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return notify.CreateRequest{}, errors.New("expires_at must be in RFC3339 format")
		}
		expiresAt = &t
	}

	var overrides map[entity.Channel]string
	if len(req.RecipientOverrides) > 0 {
		overrides = make(map[entity.Channel]string, len(req.RecipientOverrides))
		for c, addr := range req.RecipientOverrides {
			overrides[entity.Channel(c)] = addr
		}
	}

	return notify.CreateRequest{
		UserID:            req.UserID,
		Category:          category,
		Channels:          channels,
		Priority:          priority,
		Title:             req.Title,
		Body:              req.Body,
		PlainBody:         req.PlainBody,
		TemplateID:        req.TemplateID,
		TemplateData:      req.TemplateData,
		RecipientOverride: overrides,
		ScheduledFor:      scheduledFor,
		ExpiresAt:         expiresAt,
	}, nil
}

func skippedDTO(skipped map[entity.Channel]string) map[string]string {
	if len(skipped) == 0 {
		return nil
	}
	out := make(map[string]string, len(skipped))
	for channel, reason := range skipped {
		out[string(channel)] = reason
	}
	return out
}
