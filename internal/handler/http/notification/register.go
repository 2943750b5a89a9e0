package notification

import (
	"log/slog"
	"net/http"

	"learnloop/internal/common/pagination"
	"learnloop/internal/handler/http/auth"
	"learnloop/internal/usecase/notify"
	"learnloop/internal/usecase/stats"
)

// Register registers the notification API routes. The caller is expected to
// wrap the mux with the auth middleware; stats additionally requires the
// admin role.
func Register(mux *http.ServeMux, svc *notify.Service, agg *stats.Aggregator, paginationCfg pagination.Config, logger *slog.Logger) {
	mux.Handle("POST /notifications", CreateHandler{svc})
	mux.Handle("POST /notifications/bulk", BulkCreateHandler{svc})
	mux.Handle("GET /notifications/{id}", GetHandler{svc})
	mux.Handle("POST /notifications/{id}/read", MarkReadHandler{svc})
	mux.Handle("POST /notifications/{id}/cancel", CancelHandler{svc})
	mux.Handle("POST /notifications/{id}/resend", ResendHandler{svc})

	mux.Handle("GET /users/{userID}/notifications", ListHandler{
		Svc:           svc,
		PaginationCfg: paginationCfg,
		Logger:        logger,
	})

	mux.Handle("GET /stats", auth.RequireAdmin(StatsHandler{agg}))
}
