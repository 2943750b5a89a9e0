// Package webhook exposes the provider callback endpoint. Requests carry an
// HMAC signature instead of a JWT; verification happens in the ingestor.
package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"learnloop/internal/handler/http/middleware"
	"learnloop/internal/handler/http/pathutil"
	"learnloop/internal/handler/http/respond"
	webhookUC "learnloop/internal/usecase/webhook"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// maxPayloadBytes caps webhook bodies. Provider callbacks are small; anything
// larger is abuse.
const maxPayloadBytes = 64 * 1024

type Handler struct {
	Ingestor *webhookUC.Ingestor
	Logger   *slog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	providerName, err := pathutil.ExtractSegment(r, "provider")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("provider is required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	err = h.Ingestor.Handle(r.Context(), providerName, body, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, webhookUC.ErrInvalidSignature):
		h.Logger.Warn("webhook signature rejected",
			slog.String("provider", providerName),
			slog.String("remote_addr", r.RemoteAddr))
		respond.SafeError(w, http.StatusUnauthorized, errors.New("invalid signature"))
	default:
		respond.SafeError(w, http.StatusBadRequest, err)
	}
}

// Register mounts the webhook endpoint behind per-IP rate limiting so one
// misbehaving provider cannot flood ingestion.
func Register(mux *http.ServeMux, ingestor *webhookUC.Ingestor, limiter *middleware.IPRateLimiter, logger *slog.Logger) {
	handler := http.Handler(Handler{Ingestor: ingestor, Logger: logger})
	if limiter != nil {
		handler = limiter.Middleware()(handler)
	}
	mux.Handle("POST /webhooks/{provider}", handler)
}
