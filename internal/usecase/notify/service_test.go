package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/common/pagination"
	"learnloop/internal/dispatch"
	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/repository"
)

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*entity.Notification
	statusUpdates map[string]entity.Status
	cancelled     []string
	resent        []string
	read          []string
	cancelErr     error
	resendErr     error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		notifications: make(map[string]*entity.Notification),
		statusUpdates: make(map[string]entity.Status),
	}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *n
	f.notifications[n.ID] = &stored
	return nil
}

func (f *fakeNotificationRepo) Get(_ context.Context, id string) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return n, nil
}

func (f *fakeNotificationRepo) GetByTrackingID(context.Context, string) (*entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, userID string, _ repository.ListFilters, offset, limit int) ([]*entity.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []*entity.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			owned = append(owned, n)
		}
	}
	total := int64(len(owned))
	if offset >= len(owned) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

func (f *fakeNotificationRepo) UpdateStatus(_ context.Context, id string, status entity.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[id] = status
	if n, ok := f.notifications[id]; ok {
		n.Status = status
	}
	return nil
}

func (f *fakeNotificationRepo) ClaimForProcessing(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeNotificationRepo) ScheduleRetry(context.Context, string, int, time.Time, string) error {
	return nil
}

func (f *fakeNotificationRepo) MarkSent(context.Context, string) error      { return nil }
func (f *fakeNotificationRepo) MarkDelivered(context.Context, string) error { return nil }

func (f *fakeNotificationRepo) MarkFailed(context.Context, string, int, string) error { return nil }

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id string, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, id)
	return nil
}

func (f *fakeNotificationRepo) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeNotificationRepo) ResetForResend(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resendErr != nil {
		return f.resendErr
	}
	f.resent = append(f.resent, id)
	if n, ok := f.notifications[id]; ok {
		n.Status = entity.StatusPending
		n.Attempts = 0
	}
	return nil
}

func (f *fakeNotificationRepo) ListQueued(context.Context, int) ([]*entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) ExpireDue(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) CountByStatus(context.Context, repository.StatsFilters) (map[entity.Status]int64, error) {
	return nil, nil
}

var _ repository.NotificationRepository = (*fakeNotificationRepo)(nil)

type serviceFixture struct {
	service *Service
	repo    *fakeNotificationRepo
	queue   *dispatch.Queue
	events  *[]events.Event
	mu      *sync.Mutex
}

func newServiceFixture(t *testing.T, directory *fakeDirectory) *serviceFixture {
	t.Helper()
	repo := newFakeNotificationRepo()
	queue := dispatch.NewQueue()
	bus := events.NewBus()

	var mu sync.Mutex
	captured := &[]events.Event{}
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		*captured = append(*captured, e)
	})

	factory := newTestFactory(&fakePrefRepo{}, &fakeTemplateRepo{}, directory)
	return &serviceFixture{
		service: NewService(factory, repo, queue, bus, testLogger()),
		repo:    repo,
		queue:   queue,
		events:  captured,
		mu:      &mu,
	}
}

func (f *serviceFixture) eventTypes() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]events.Type, 0, len(*f.events))
	for _, e := range *f.events {
		types = append(types, e.Type)
	}
	return types
}

func TestService_Create_QueuesNotification(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{"user-1/email": "dana@example.com"}}
	fx := newServiceFixture(t, directory)

	result, err := fx.service.Create(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail},
		Title:    "Lesson reminder",
		Body:     "Starts in an hour",
	})
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)

	n := result.Notifications[0]
	assert.Equal(t, entity.StatusQueued, n.Status)
	assert.Equal(t, entity.StatusQueued, fx.repo.statusUpdates[n.ID])
	assert.Nil(t, n.NextRetryAt)
	assert.Equal(t, 1, fx.queue.Len())
	assert.Equal(t, []events.Type{events.TypeCreated, events.TypeQueued}, fx.eventTypes())
}

func TestService_Create_ScheduledFutureSetsRetryTime(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{"user-1/email": "dana@example.com"}}
	fx := newServiceFixture(t, directory)

	scheduledFor := time.Now().UTC().Add(2 * time.Hour)
	result, err := fx.service.Create(context.Background(), CreateRequest{
		UserID:       "user-1",
		Category:     entity.CategoryReminder,
		Channels:     []entity.Channel{entity.ChannelEmail},
		Title:        "Lesson reminder",
		Body:         "Starts later",
		ScheduledFor: scheduledFor,
	})
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)

	n := result.Notifications[0]
	require.NotNil(t, n.NextRetryAt)
	assert.Equal(t, scheduledFor, *n.NextRetryAt)

	// The queued item is held until the scheduled time, so an immediate pop
	// must time out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = fx.queue.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Create_AllChannelsDropped(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{}) // no addresses on file

	_, err := fx.service.Create(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail},
		Title:    "Lesson reminder",
		Body:     "Starts in an hour",
	})
	assert.ErrorIs(t, err, entity.ErrNoChannelsAllowed)
	assert.Empty(t, fx.repo.notifications)
}

func TestService_CreateBulk(t *testing.T) {
	// user-1 and user-2 have addresses; user-3 has none and is skipped.
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "one@example.com",
		"user-2/email": "two@example.com",
	}}
	fx := newServiceFixture(t, directory)

	result, err := fx.service.CreateBulk(context.Background(),
		[]string{"user-1", "user-2", "user-3"},
		CreateRequest{
			Category: entity.CategoryMarketing,
			Channels: []entity.Channel{entity.ChannelEmail},
			Title:    "New course available",
			Body:     "Check out Go Basics",
		}, BulkOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.SkippedUsers)
	assert.Empty(t, result.Failures)

	for _, n := range fx.repo.notifications {
		assert.True(t, n.IsBulk)
	}
	// Bulk notifications bypass the per-item queue.
	assert.Equal(t, 0, fx.queue.Len())
}

func TestService_CreateBulk_BatchStagger(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "one@example.com",
		"user-2/email": "two@example.com",
		"user-3/email": "three@example.com",
	}}
	fx := newServiceFixture(t, directory)

	base := time.Now().UTC().Add(time.Minute)
	result, err := fx.service.CreateBulk(context.Background(),
		[]string{"user-1", "user-2", "user-3"},
		CreateRequest{
			Category:     entity.CategoryMarketing,
			Channels:     []entity.Channel{entity.ChannelEmail},
			Title:        "New course available",
			Body:         "Check out Go Basics",
			ScheduledFor: base,
		}, BulkOptions{BatchSize: 2, BatchDelay: 5 * time.Minute})
	require.NoError(t, err)
	require.Equal(t, 3, result.Created)

	firstWave, secondWave := 0, 0
	for _, n := range fx.repo.notifications {
		require.NotNil(t, n.NextRetryAt)
		switch {
		case n.NextRetryAt.Equal(base):
			firstWave++
		case n.NextRetryAt.Equal(base.Add(5 * time.Minute)):
			secondWave++
		}
	}
	assert.Equal(t, 2, firstWave, "the first batch keeps the requested schedule")
	assert.Equal(t, 1, secondWave, "the overflow recipient waits one batch delay")
}

func TestService_CreateBulk_NoRecipients(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	_, err := fx.service.CreateBulk(context.Background(), nil, CreateRequest{}, BulkOptions{})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestService_Cancel_RemovesFromQueue(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{"user-1/email": "dana@example.com"}}
	fx := newServiceFixture(t, directory)

	result, err := fx.service.Create(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail},
		Title:    "Lesson reminder",
		Body:     "Starts in an hour",
	})
	require.NoError(t, err)
	id := result.Notifications[0].ID

	require.NoError(t, fx.service.Cancel(context.Background(), id))
	assert.Equal(t, []string{id}, fx.repo.cancelled)
	assert.Equal(t, 0, fx.queue.Len())
	assert.Contains(t, fx.eventTypes(), events.TypeCancelled)
}

func TestService_Cancel_AlreadySent(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	fx.repo.cancelErr = entity.ErrAlreadySent

	err := fx.service.Cancel(context.Background(), "n-1")
	assert.ErrorIs(t, err, entity.ErrAlreadySent)
}

func TestService_Resend_RequeuesFailed(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	fx.repo.notifications["n-1"] = &entity.Notification{
		ID:      "n-1",
		UserID:  "user-1",
		Channel: entity.ChannelEmail,
		Status:  entity.StatusFailed,
	}

	require.NoError(t, fx.service.Resend(context.Background(), "n-1"))
	assert.Equal(t, []string{"n-1"}, fx.repo.resent)
	assert.Equal(t, entity.StatusQueued, fx.repo.statusUpdates["n-1"])
	assert.Equal(t, 1, fx.queue.Len())
}

func TestService_Resend_NotResendable(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	fx.repo.resendErr = entity.ErrNotResendable

	err := fx.service.Resend(context.Background(), "n-1")
	assert.ErrorIs(t, err, entity.ErrNotResendable)
}

func TestService_MarkRead(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	require.NoError(t, fx.service.MarkRead(context.Background(), "n-1", "user-1"))
	assert.Equal(t, []string{"n-1"}, fx.repo.read)
	assert.Contains(t, fx.eventTypes(), events.TypeRead)
}

func TestService_List(t *testing.T) {
	fx := newServiceFixture(t, &fakeDirectory{})
	for _, id := range []string{"n-1", "n-2", "n-3"} {
		fx.repo.notifications[id] = &entity.Notification{ID: id, UserID: "user-1"}
	}
	fx.repo.notifications["other"] = &entity.Notification{ID: "other", UserID: "user-2"}

	list, metadata, err := fx.service.List(context.Background(), "user-1",
		repository.ListFilters{}, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(3), metadata.Total)
	assert.Equal(t, 2, metadata.TotalPages)
}
