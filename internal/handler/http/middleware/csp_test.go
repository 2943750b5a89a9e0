package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"learnloop/pkg/security/csp"
)

func serveWithCSP(t *testing.T, cfg CSPMiddlewareConfig) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewCSPMiddleware(cfg).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	return rec
}

func TestCSPMiddleware_SetsHeader(t *testing.T) {
	rec := serveWithCSP(t, CSPMiddlewareConfig{
		Enabled:       true,
		DefaultPolicy: csp.StrictPolicy(),
	})

	got := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, got, "default-src 'none'")
	assert.Contains(t, got, "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy-Report-Only"))
}

func TestCSPMiddleware_ReportOnly(t *testing.T) {
	rec := serveWithCSP(t, CSPMiddlewareConfig{
		Enabled:       true,
		DefaultPolicy: csp.StrictPolicy(),
		ReportOnly:    true,
	})

	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy-Report-Only"), "default-src 'none'")
}

func TestCSPMiddleware_Disabled(t *testing.T) {
	rec := serveWithCSP(t, CSPMiddlewareConfig{
		Enabled:       false,
		DefaultPolicy: csp.StrictPolicy(),
	})

	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestCSPMiddleware_NilPolicySkips(t *testing.T) {
	rec := serveWithCSP(t, CSPMiddlewareConfig{Enabled: true})

	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
