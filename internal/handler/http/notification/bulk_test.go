package notification

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/repository"
	"learnloop/internal/usecase/notify"
)

type stubNotificationRepo struct {
	repository.NotificationRepository
	mu      sync.Mutex
	created []entity.Notification
}

func (s *stubNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *n)
	return nil
}

func (s *stubNotificationRepo) UpdateStatus(context.Context, string, entity.Status) error {
	return nil
}

type stubPreferenceRepo struct {
	repository.PreferenceRepository
}

func (stubPreferenceRepo) Get(context.Context, string) (*entity.NotificationPreference, error) {
	return nil, nil // default-allow preferences
}

type stubDirectory struct{}

func (stubDirectory) Address(_ context.Context, userID string, _ entity.Channel) (string, error) {
	return userID + "@example.com", nil
}

func newBulkHandler(repo *stubNotificationRepo) BulkCreateHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := notify.NewPreferenceResolver(stubPreferenceRepo{}, logger)
	factory := notify.NewFactory(resolver, nil, stubDirectory{}, logger)
	svc := notify.NewService(factory, repo, nil, events.NewBus(), logger)
	return BulkCreateHandler{Svc: svc}
}

func TestBulkCreateHandler_BatchOverrides(t *testing.T) {
	repo := &stubNotificationRepo{}
	handler := newBulkHandler(repo)

	body := `{
		"user_ids": ["user-1", "user-2", "user-3"],
		"category": "reminder",
		"channels": ["email"],
		"title": "Lesson reminder",
		"body": "Starts in an hour",
		"batch_size": 2,
		"batch_delay_ms": 60000
	}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/notifications/bulk", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp bulkCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Created)

	// With batch_size 2 the third recipient lands one batch_delay_ms later.
	require.Len(t, repo.created, 3)
	staggered := 0
	for _, n := range repo.created {
		if n.NextRetryAt != nil {
			staggered++
			assert.WithinDuration(t,
				time.Now().Add(time.Minute), *n.NextRetryAt, 10*time.Second)
		}
	}
	assert.Equal(t, 1, staggered)
}

func TestBulkCreateHandler_NegativeBatchParams(t *testing.T) {
	handler := newBulkHandler(&stubNotificationRepo{})

	body := `{"user_ids": ["user-1"], "category": "reminder", "channels": ["email"],
		"title": "t", "body": "b", "batch_size": -1}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/notifications/bulk", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
