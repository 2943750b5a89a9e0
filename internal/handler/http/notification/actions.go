package notification

import (
	"encoding/json"
	"errors"
	"net/http"

	"learnloop/internal/handler/http/pathutil"
	"learnloop/internal/handler/http/respond"
	"learnloop/internal/usecase/notify"
)

// MarkReadHandler records a user's read receipt. Idempotent: marking an
// already-read notification succeeds without change.
type MarkReadHandler struct{ Svc *notify.Service }

func (h MarkReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractUUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}

	if err := h.Svc.MarkRead(r.Context(), id, req.UserID); err != nil {
		respond.SafeError(w, statusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelHandler withdraws a notification before delivery.
type CancelHandler struct{ Svc *notify.Service }

func (h CancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractUUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.Cancel(r.Context(), id); err != nil {
		respond.SafeError(w, statusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResendHandler puts a failed notification back through delivery.
type ResendHandler struct{ Svc *notify.Service }

func (h ResendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractUUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.Resend(r.Context(), id); err != nil {
		respond.SafeError(w, statusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
