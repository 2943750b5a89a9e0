package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"learnloop/internal/handler/http/respond"
	"learnloop/internal/usecase/notify"
)

type bulkCreateRequest struct {
	UserIDs []string `json:"user_ids"`
	// BatchSize and BatchDelayMs override the dispatch batching defaults
	// for this request only.
	BatchSize    int `json:"batch_size,omitempty"`
	BatchDelayMs int `json:"batch_delay_ms,omitempty"`
	createRequest
}

type bulkCreateResponse struct {
	Created      int               `json:"created"`
	SkippedUsers int               `json:"skipped_users"`
	Failures     map[string]string `json:"failures,omitempty"`
}

type BulkCreateHandler struct{ Svc *notify.Service }

func (h BulkCreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.UserIDs) == 0 {
		respond.SafeError(w, http.StatusBadRequest, errors.New("user_ids is required"))
		return
	}
	if req.BatchSize < 0 || req.BatchDelayMs < 0 {
		respond.SafeError(w, http.StatusBadRequest, errors.New("batch_size and batch_delay_ms must not be negative"))
		return
	}

	// The per-user id comes from user_ids; the embedded one must be empty.
	req.createRequest.UserID = "bulk"
	input, err := toCreateRequest(req.createRequest)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	input.UserID = ""

	opts := notify.BulkOptions{
		BatchSize:  req.BatchSize,
		BatchDelay: time.Duration(req.BatchDelayMs) * time.Millisecond,
	}
	result, err := h.Svc.CreateBulk(r.Context(), req.UserIDs, input, opts)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, notify.ErrNoRecipients) {
			code = http.StatusBadRequest
		}
		respond.SafeError(w, code, err)
		return
	}

	respond.JSON(w, http.StatusAccepted, bulkCreateResponse{
		Created:      result.Created,
		SkippedUsers: result.SkippedUsers,
		Failures:     result.Failures,
	})
}
