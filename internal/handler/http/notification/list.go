package notification

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"learnloop/internal/common/pagination"
	"learnloop/internal/domain/entity"
	"learnloop/internal/handler/http/pathutil"
	"learnloop/internal/handler/http/requestid"
	"learnloop/internal/handler/http/respond"
	"learnloop/internal/observability/logging"
	"learnloop/internal/repository"
	"learnloop/internal/usecase/notify"
)

type ListHandler struct {
	Svc           *notify.Service
	PaginationCfg pagination.Config
	Logger        *slog.Logger
}

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	userID, err := pathutil.ExtractSegment(r, "userID")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("user id is required"))
		return
	}

	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		logger.Warn("Invalid pagination parameters",
			"error", err.Error(),
			"request_id", reqID)
		pagination.RecordError("validation")
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	filters, err := parseListFilters(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	notifications, metadata, err := h.Svc.List(ctx, userID, filters, params)
	if err != nil {
		logger.Error("Failed to list notifications",
			"error", err.Error(),
			"user_id", userID,
			"page", params.Page,
			"request_id", reqID)
		pagination.RecordError("database")
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]DTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, toDTO(n))
	}
	response := pagination.NewResponse(dtos, metadata)

	duration := time.Since(startTime)
	pagination.RecordRequest(http.StatusOK, params.Page)
	pagination.RecordDuration("handler", duration.Seconds())
	pagination.UpdateTotalCount(metadata.Total)

	logger.Info("Paginated notification list",
		"user_id", userID,
		"page", params.Page,
		"limit", params.Limit,
		"returned_count", len(dtos),
		"duration_ms", duration.Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, response)
}

// parseListFilters reads the optional filter query parameters.
func parseListFilters(r *http.Request) (repository.ListFilters, error) {
	var filters repository.ListFilters
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status := entity.Status(s)
		if !validStatus(status) {
			return filters, errors.New("status is invalid")
		}
		filters.Status = &status
	}
	if c := q.Get("category"); c != "" {
		category := entity.Category(c)
		if !category.Valid() {
			return filters, errors.New("category is invalid")
		}
		filters.Category = &category
	}
	if c := q.Get("channel"); c != "" {
		channel := entity.Channel(c)
		if !channel.Valid() {
			return filters, errors.New("channel is invalid")
		}
		filters.Channel = &channel
	}
	filters.Unread = q.Get("unread") == "true"

	if f := q.Get("from"); f != "" {
		t, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return filters, errors.New("from must be in RFC3339 format")
		}
		filters.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filters, errors.New("to must be in RFC3339 format")
		}
		filters.To = &t
	}
	return filters, nil
}

func validStatus(status entity.Status) bool {
	for _, s := range entity.AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}
