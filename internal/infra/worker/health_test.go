package worker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthServer_Liveness(t *testing.T) {
	h := NewHealthServer(":0", discardLogger())

	rec := httptest.NewRecorder()
	h.handleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthServer_ReadinessFollowsSetReady(t *testing.T) {
	h := NewHealthServer(":0", discardLogger())

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		return rec
	}

	// Not ready until the scheduler is wired up.
	rec := serve()
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, rec.Body.String())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve().Code)

	// Draining before shutdown flips it back.
	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve().Code)
}
