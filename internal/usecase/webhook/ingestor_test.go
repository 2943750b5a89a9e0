package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/repository"
)

type fakeNotificationStore struct {
	byTrackingID map[string]*entity.Notification
	delivered    []string
	failed       map[string]string
	read         []string
}

func (f *fakeNotificationStore) Create(context.Context, *entity.Notification) error { return nil }

func (f *fakeNotificationStore) Get(context.Context, string) (*entity.Notification, error) {
	return nil, entity.ErrNotFound
}

func (f *fakeNotificationStore) GetByTrackingID(_ context.Context, trackingID string) (*entity.Notification, error) {
	return f.byTrackingID[trackingID], nil
}

func (f *fakeNotificationStore) ListByUser(context.Context, string, repository.ListFilters, int, int) ([]*entity.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotificationStore) UpdateStatus(context.Context, string, entity.Status) error {
	return nil
}

func (f *fakeNotificationStore) ClaimForProcessing(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeNotificationStore) ScheduleRetry(context.Context, string, int, time.Time, string) error {
	return nil
}

func (f *fakeNotificationStore) MarkSent(context.Context, string) error { return nil }

func (f *fakeNotificationStore) MarkDelivered(_ context.Context, id string) error {
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeNotificationStore) MarkFailed(_ context.Context, id string, _ int, lastError string) error {
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[id] = lastError
	return nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, id string, _ string, _ time.Time) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeNotificationStore) Cancel(context.Context, string) error         { return nil }
func (f *fakeNotificationStore) ResetForResend(context.Context, string) error { return nil }

func (f *fakeNotificationStore) ListQueued(context.Context, int) ([]*entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) ExpireDue(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationStore) CountByStatus(context.Context, repository.StatsFilters) (map[entity.Status]int64, error) {
	return nil, nil
}

type fakeInteractionStore struct {
	seen     map[string]bool
	recorded []*entity.Interaction
}

func (f *fakeInteractionStore) InsertUnique(_ context.Context, in *entity.Interaction) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := fmt.Sprintf("%s/%s/%s", in.Provider, in.ExternalMessageID, in.Type)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.recorded = append(f.recorded, in)
	return true, nil
}

func (f *fakeInteractionStore) ListByNotification(context.Context, string) ([]*entity.Interaction, error) {
	return nil, nil
}

func (f *fakeInteractionStore) CountByType(context.Context, repository.StatsFilters) (map[entity.InteractionType]int64, error) {
	return nil, nil
}

type fakePreferenceStore struct {
	disabled []string
}

func (f *fakePreferenceStore) Get(context.Context, string) (*entity.NotificationPreference, error) {
	return nil, nil
}

func (f *fakePreferenceStore) Upsert(context.Context, *entity.NotificationPreference) error {
	return nil
}

func (f *fakePreferenceStore) DisableChannel(_ context.Context, userID string, channel entity.Channel) error {
	f.disabled = append(f.disabled, userID+"/"+string(channel))
	return nil
}

var (
	_ repository.NotificationRepository = (*fakeNotificationStore)(nil)
	_ repository.InteractionRepository  = (*fakeInteractionStore)(nil)
	_ repository.PreferenceRepository   = (*fakePreferenceStore)(nil)
)

type ingestorFixture struct {
	ingestor      *Ingestor
	notifications *fakeNotificationStore
	interactions  *fakeInteractionStore
	preferences   *fakePreferenceStore
	captured      *[]events.Event
}

func newIngestorFixture(secrets map[string]string) *ingestorFixture {
	notifications := &fakeNotificationStore{byTrackingID: map[string]*entity.Notification{
		"track-1": {
			ID:      "n-1",
			UserID:  "user-1",
			Channel: entity.ChannelEmail,
			Status:  entity.StatusSent,
		},
	}}
	interactions := &fakeInteractionStore{}
	preferences := &fakePreferenceStore{}
	bus := events.NewBus()
	captured := &[]events.Event{}
	bus.Subscribe(func(e events.Event) { *captured = append(*captured, e) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &ingestorFixture{
		ingestor:      NewIngestor(notifications, interactions, preferences, secrets, bus, logger),
		notifications: notifications,
		interactions:  interactions,
		preferences:   preferences,
		captured:      captured,
	}
}

func (f *ingestorFixture) eventTypes() []events.Type {
	types := make([]events.Type, 0, len(*f.captured))
	for _, e := range *f.captured {
		types = append(types, e.Type)
	}
	return types
}

func TestIngestor_Delivered(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"delivered","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))

	assert.Equal(t, []string{"n-1"}, fx.notifications.delivered)
	require.Len(t, fx.interactions.recorded, 1)
	assert.Equal(t, entity.InteractionDelivered, fx.interactions.recorded[0].Type)
	assert.Equal(t, "ext-1", fx.interactions.recorded[0].ExternalMessageID)
	assert.Contains(t, fx.eventTypes(), events.TypeDelivered)
	assert.Contains(t, fx.eventTypes(), events.TypeWebhookReceived)
}

func TestIngestor_SignatureRequired(t *testing.T) {
	fx := newIngestorFixture(map[string]string{"mail-relay": "s3cret"})
	body := []byte(`{"event":"delivered","message_id":"ext-1","tracking_id":"track-1"}`)

	err := fx.ingestor.Handle(context.Background(), "mail-relay", body, "sha256=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, fx.notifications.delivered)
	assert.Empty(t, fx.interactions.recorded)

	// The same payload with a correct signature goes through.
	signature := Sign("s3cret", body)
	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, signature))
	assert.Equal(t, []string{"n-1"}, fx.notifications.delivered)
}

func TestIngestor_ReplayIsIdempotent(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"delivered","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))
	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))

	assert.Equal(t, []string{"n-1"}, fx.notifications.delivered)
	assert.Len(t, fx.interactions.recorded, 1)
}

func TestIngestor_UnknownEventTypeIsAccepted(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"queued_by_provider","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))
	assert.Empty(t, fx.interactions.recorded)
	assert.Empty(t, fx.eventTypes())
}

func TestIngestor_UnmatchedTrackingIDIsAccepted(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"delivered","message_id":"ext-1","tracking_id":"track-unknown"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))
	assert.Empty(t, fx.notifications.delivered)
	assert.Empty(t, fx.interactions.recorded)
}

func TestIngestor_BounceFailsAndDisablesChannel(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"bounced","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))

	assert.Equal(t, "recipient address bounced", fx.notifications.failed["n-1"])
	assert.Equal(t, []string{"user-1/email"}, fx.preferences.disabled)
	assert.Contains(t, fx.eventTypes(), events.TypeChannelDisabled)
}

func TestIngestor_BounceAfterDeliveredKeepsStatus(t *testing.T) {
	fx := newIngestorFixture(nil)
	fx.notifications.byTrackingID["track-1"].Status = entity.StatusDelivered
	body := []byte(`{"event":"bounced","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))

	// A late bounce cannot regress a delivered notification, but the
	// address is still bad.
	assert.Empty(t, fx.notifications.failed)
	assert.Equal(t, []string{"user-1/email"}, fx.preferences.disabled)
	assert.Len(t, fx.interactions.recorded, 1)
}

func TestIngestor_OpenedMarksRead(t *testing.T) {
	fx := newIngestorFixture(nil)
	body := []byte(`{"event":"opened","message_id":"ext-1","tracking_id":"track-1"}`)

	require.NoError(t, fx.ingestor.Handle(context.Background(), "mail-relay", body, ""))
	assert.Equal(t, []string{"n-1"}, fx.notifications.read)
	assert.Contains(t, fx.eventTypes(), events.TypeRead)
}

func TestIngestor_MalformedPayload(t *testing.T) {
	fx := newIngestorFixture(nil)
	err := fx.ingestor.Handle(context.Background(), "mail-relay", []byte("not json"), "")
	assert.Error(t, err)
	assert.Empty(t, fx.interactions.recorded)
}
