package notification

import (
	"net/http"

	"learnloop/internal/handler/http/pathutil"
	"learnloop/internal/handler/http/respond"
	"learnloop/internal/usecase/notify"
)

type GetHandler struct{ Svc *notify.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractUUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respond.SafeError(w, statusCode(err), err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(n))
}
