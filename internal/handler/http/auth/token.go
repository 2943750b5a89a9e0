package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnloop/internal/handler/http/requestid"
	authservice "learnloop/internal/service/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

const tokenTTL = time.Hour

// TokenHandler authenticates a caller and issues a JWT carrying its role.
func TokenHandler(authService *authservice.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := slog.With(slog.String("request_id", requestid.FromContext(r.Context())))

		deny := func(code int, reason, msg string) {
			logger.Warn("authentication failed",
				slog.String("reason", reason),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest("unknown", "failure")
			http.Error(w, msg, code)
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			deny(http.StatusBadRequest, "invalid_request", "invalid request")
			return
		}

		creds := authservice.Credentials{Username: req.Username, Password: req.Password}
		if err := authService.ValidateCredentials(r.Context(), creds); err != nil {
			deny(http.StatusUnauthorized, "invalid_credentials", "unauthorized")
			return
		}

		role, err := authService.IdentifyRole(r.Context(), req.Username)
		if err != nil {
			deny(http.StatusUnauthorized, "role_identification_failed", "unauthorized")
			return
		}

		signed, err := issueToken(req.Username, role)
		if err != nil {
			logger.Error("token generation failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest(role, "failure")
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		logger.Info("authentication successful",
			slog.String("username", req.Username),
			slog.String("role", role),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		RecordAuthRequest(role, "success")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tokenResponse{Token: signed}); err != nil {
			logger.Error("encoding token response", slog.String("error", err.Error()))
		}
	}
}

func issueToken(username, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"role": role,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}
