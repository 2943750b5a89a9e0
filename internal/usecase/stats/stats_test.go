package stats

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

type fakeCountStore struct {
	byStatus map[entity.Status]int64
	// byTypePerChannel maps channel -> interaction counts for that channel.
	byTypePerChannel map[entity.Channel]map[entity.InteractionType]int64
	queriedChannels  []entity.Channel
}

func (f *fakeCountStore) CountByStatus(context.Context, repository.StatsFilters) (map[entity.Status]int64, error) {
	return f.byStatus, nil
}

func (f *fakeCountStore) InsertUnique(context.Context, *entity.Interaction) (bool, error) {
	return false, nil
}

func (f *fakeCountStore) ListByNotification(context.Context, string) ([]*entity.Interaction, error) {
	return nil, nil
}

func (f *fakeCountStore) CountByType(_ context.Context, filters repository.StatsFilters) (map[entity.InteractionType]int64, error) {
	f.queriedChannels = append(f.queriedChannels, *filters.Channel)
	return f.byTypePerChannel[*filters.Channel], nil
}

// Remaining NotificationRepository methods are unused by the aggregator.
func (f *fakeCountStore) Create(context.Context, *entity.Notification) error { return nil }
func (f *fakeCountStore) Get(context.Context, string) (*entity.Notification, error) {
	return nil, entity.ErrNotFound
}
func (f *fakeCountStore) GetByTrackingID(context.Context, string) (*entity.Notification, error) {
	return nil, nil
}
func (f *fakeCountStore) ListByUser(context.Context, string, repository.ListFilters, int, int) ([]*entity.Notification, int64, error) {
	return nil, 0, nil
}
func (f *fakeCountStore) UpdateStatus(context.Context, string, entity.Status) error { return nil }
func (f *fakeCountStore) ClaimForProcessing(context.Context, string) (bool, error) {
	return false, nil
}
func (f *fakeCountStore) ScheduleRetry(context.Context, string, int, time.Time, string) error {
	return nil
}
func (f *fakeCountStore) MarkSent(context.Context, string) error             { return nil }
func (f *fakeCountStore) MarkDelivered(context.Context, string) error        { return nil }
func (f *fakeCountStore) MarkFailed(context.Context, string, int, string) error { return nil }
func (f *fakeCountStore) MarkRead(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeCountStore) Cancel(context.Context, string) error         { return nil }
func (f *fakeCountStore) ResetForResend(context.Context, string) error { return nil }
func (f *fakeCountStore) ListQueued(context.Context, int) ([]*entity.Notification, error) {
	return nil, nil
}
func (f *fakeCountStore) ExpireDue(context.Context, time.Time) (int64, error) { return 0, nil }

var (
	_ repository.NotificationRepository = (*fakeCountStore)(nil)
	_ repository.InteractionRepository  = (*fakeCountStore)(nil)
)

func newAggregator(store *fakeCountStore) *Aggregator {
	return NewAggregator(store, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAggregator_Summarize(t *testing.T) {
	store := &fakeCountStore{
		byStatus: map[entity.Status]int64{
			entity.StatusSent:      10,
			entity.StatusDelivered: 7,
			entity.StatusFailed:    2,
		},
		byTypePerChannel: map[entity.Channel]map[entity.InteractionType]int64{
			entity.ChannelEmail: {
				entity.InteractionDelivered: 7,
				entity.InteractionOpened:    4,
				entity.InteractionClicked:   1,
			},
			entity.ChannelPush: {
				entity.InteractionDelivered: 3,
			},
		},
	}

	summary, err := newAggregator(store).Summarize(context.Background(), repository.StatsFilters{})
	require.NoError(t, err)

	require.Equal(t, int64(19), summary.Total)

	// Every status is present, zero-count ones included.
	wantByStatus := map[entity.Status]int64{
		entity.StatusPending:    0,
		entity.StatusQueued:     0,
		entity.StatusProcessing: 0,
		entity.StatusSent:       10,
		entity.StatusDelivered:  7,
		entity.StatusFailed:     2,
		entity.StatusCancelled:  0,
	}
	if diff := cmp.Diff(wantByStatus, summary.ByStatus); diff != "" {
		t.Errorf("ByStatus mismatch (-want +got):\n%s", diff)
	}

	wantEngagement := map[entity.Channel]map[entity.InteractionType]int64{
		entity.ChannelEmail: store.byTypePerChannel[entity.ChannelEmail],
		entity.ChannelPush:  store.byTypePerChannel[entity.ChannelPush],
	}
	if diff := cmp.Diff(wantEngagement, summary.Engagement); diff != "" {
		t.Errorf("Engagement mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_ChannelFilterSkipsOthers(t *testing.T) {
	store := &fakeCountStore{
		byStatus: map[entity.Status]int64{entity.StatusSent: 1},
		byTypePerChannel: map[entity.Channel]map[entity.InteractionType]int64{
			entity.ChannelEmail: {entity.InteractionOpened: 1},
		},
	}

	email := entity.ChannelEmail
	summary, err := newAggregator(store).Summarize(context.Background(), repository.StatsFilters{Channel: &email})
	require.NoError(t, err)

	require.Equal(t, []entity.Channel{entity.ChannelEmail}, store.queriedChannels)
	require.Contains(t, summary.Engagement, entity.ChannelEmail)
	require.NotContains(t, summary.Engagement, entity.ChannelPush)
}

func TestAggregator_SMSFilterHasNoEngagement(t *testing.T) {
	store := &fakeCountStore{byStatus: map[entity.Status]int64{}}

	sms := entity.ChannelSMS
	summary, err := newAggregator(store).Summarize(context.Background(), repository.StatsFilters{Channel: &sms})
	require.NoError(t, err)
	require.Empty(t, summary.Engagement)
}
