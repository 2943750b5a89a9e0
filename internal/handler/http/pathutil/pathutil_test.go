package pathutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUUID(t *testing.T) {
	mux := http.NewServeMux()
	var gotID string
	var gotErr error
	mux.HandleFunc("GET /notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, gotErr = ExtractUUID(r, "id")
	})

	req := httptest.NewRequest(http.MethodGet, "/notifications/7f9c24e8-3b12-4a4f-8f25-1a0d3c6a7b01", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, gotErr)
	assert.Equal(t, "7f9c24e8-3b12-4a4f-8f25-1a0d3c6a7b01", gotID)

	req = httptest.NewRequest(http.MethodGet, "/notifications/not-a-uuid", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	assert.ErrorIs(t, gotErr, ErrInvalidID)
}

func TestExtractSegment(t *testing.T) {
	mux := http.NewServeMux()
	var gotProvider string
	var gotErr error
	mux.HandleFunc("POST /webhooks/{provider}", func(w http.ResponseWriter, r *http.Request) {
		gotProvider, gotErr = ExtractSegment(r, "provider")
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail-relay", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, gotErr)
	assert.Equal(t, "mail-relay", gotProvider)
}

func TestNormalizePath(t *testing.T) {
	const id = "7f9c24e8-3b12-4a4f-8f25-1a0d3c6a7b01"
	tests := []struct {
		path string
		want string
	}{
		{"/notifications/" + id, "/notifications/:id"},
		{"/notifications/" + id + "/read", "/notifications/:id/read"},
		{"/notifications/" + id + "/cancel", "/notifications/:id/cancel"},
		{"/notifications/" + id + "/resend", "/notifications/:id/resend"},
		{"/notifications/" + id + "?fields=status", "/notifications/:id"},
		{"/notifications/" + id + "/", "/notifications/:id"},
		{"/users/user-42/notifications", "/users/:id/notifications"},
		{"/webhooks/mail-relay", "/webhooks/:provider"},
		{"/notifications", "/notifications"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/auth/token", "/auth/token"},
		{"/unknown/path/123", "/unknown/path/123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.path), tt.path)
	}
}
