package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnloop/internal/handler/http/respond"
)

type ctxKey string

const ctxCaller ctxKey = "caller"

// Caller identifies the authenticated API client: a backend service or an
// admin operator.
type Caller struct {
	Subject string
	Role    string
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxCaller).(Caller)
	return c, ok
}

// Authz requires a valid JWT for every method on protected endpoints. Public
// endpoints (health, metrics, token issuance, webhooks) pass through; webhook
// requests are authenticated downstream by their HMAC signature instead.
func Authz(next http.Handler) http.Handler {
	secret := []byte(os.Getenv("JWT_SECRET"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := validateJWT(r.Header.Get("Authorization"), secret)
		if err != nil {
			RecordAuthz("denied")
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
			return
		}
		if !validRole(caller.Role) {
			RecordAuthz("forbidden")
			respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
			return
		}
		RecordAuthz("allowed")
		ctx := context.WithValue(r.Context(), ctxCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin wraps a handler that only admin operators may call. It must
// run inside Authz, which populates the caller.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok || caller.Role != RoleAdmin {
			RecordAuthz("forbidden")
			respond.SafeError(w, http.StatusForbidden, errors.New("forbidden: admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateJWT(authz string, secret []byte) (Caller, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return Caller{}, errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Caller{}, errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return Caller{}, errors.New("token expired")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Caller{}, errors.New("invalid sub claim")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return Caller{}, errors.New("invalid role claim")
	}
	return Caller{Subject: sub, Role: role}, nil
}
