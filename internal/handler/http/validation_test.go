package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveValidated(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	InputValidation()(h).ServeHTTP(rec, r)
	return rec
}

func TestInputValidation_PassesNormalRequest(t *testing.T) {
	reached := false
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})

	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{"channel":"email"}`))
	req.Header.Set("Authorization", "Bearer token")
	rec := serveValidated(h, req)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInputValidation_RejectsOversizedAuthHeader(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.Header.Set("Authorization", strings.Repeat("a", maxAuthHeaderBytes+1))
	rec := serveValidated(h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "authorization header too large")
}

func TestInputValidation_AuthHeaderAtLimitPasses(t *testing.T) {
	reached := false
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.Header.Set("Authorization", strings.Repeat("a", maxAuthHeaderBytes))
	serveValidated(h, req)

	assert.True(t, reached)
}

func TestInputValidation_RejectsOversizedPath(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("n", maxPathBytes), nil)
	rec := serveValidated(h, req)

	assert.Equal(t, http.StatusRequestURITooLong, rec.Code)
	assert.Contains(t, rec.Body.String(), "URI too long")
}

func TestInputValidation_CapsBody(t *testing.T) {
	var readErr error
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})

	body := strings.NewReader(strings.Repeat("x", maxBodyBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/notifications", body)
	serveValidated(h, req)

	require.Error(t, readErr)
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}
