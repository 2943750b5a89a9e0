package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

type fakePrefRepo struct {
	prefs    map[string]*entity.NotificationPreference
	disabled []string
}

func (f *fakePrefRepo) Get(_ context.Context, userID string) (*entity.NotificationPreference, error) {
	return f.prefs[userID], nil
}

func (f *fakePrefRepo) Upsert(context.Context, *entity.NotificationPreference) error { return nil }

func (f *fakePrefRepo) DisableChannel(_ context.Context, userID string, channel entity.Channel) error {
	f.disabled = append(f.disabled, userID+"/"+string(channel))
	return nil
}

type fakeTemplateRepo struct {
	templates map[string]*entity.NotificationTemplate
}

func (f *fakeTemplateRepo) Get(_ context.Context, id string) (*entity.NotificationTemplate, error) {
	return f.templates[id], nil
}

type fakeDirectory struct {
	addresses map[string]string // "userID/channel" -> address
	err       error
}

func (f *fakeDirectory) Address(_ context.Context, userID string, channel entity.Channel) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.addresses[userID+"/"+string(channel)], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFactory(prefs *fakePrefRepo, templates *fakeTemplateRepo, directory *fakeDirectory) *Factory {
	logger := testLogger()
	return NewFactory(NewPreferenceResolver(prefs, logger), templates, directory, logger)
}

func TestFactory_Build_DirectContent(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "dana@example.com",
		"user-1/push":  "push-token-1",
	}}
	factory := newTestFactory(&fakePrefRepo{}, &fakeTemplateRepo{}, directory)

	now := time.Now().UTC()
	result, err := factory.Build(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail, entity.ChannelPush},
		Title:    "Lesson reminder",
		Body:     "Your lesson starts in an hour",
	}, now)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 2)
	assert.Empty(t, result.Skipped)

	for _, n := range result.Notifications {
		assert.NotEmpty(t, n.ID)
		assert.NotEmpty(t, n.TrackingID)
		assert.Equal(t, entity.StatusPending, n.Status)
		assert.Equal(t, entity.PriorityNormal, n.Priority)
		assert.Equal(t, 3, n.MaxAttempts)
		assert.Equal(t, now, n.ScheduledFor)
		assert.Equal(t, "Your lesson starts in an hour", n.Body)
	}
	assert.Equal(t, "dana@example.com", result.Notifications[0].RecipientAddress)
	assert.Equal(t, "push-token-1", result.Notifications[1].RecipientAddress)
}

func TestFactory_Build_RendersTemplate(t *testing.T) {
	templates := &fakeTemplateRepo{templates: map[string]*entity.NotificationTemplate{
		"tpl-welcome": {
			ID:           "tpl-welcome",
			EmailSubject: "Welcome {{name}}",
			EmailBody:    "<p>Hi {{name}}</p>",
			SMSBody:      "", // never authored
		},
	}}
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "dana@example.com",
		"user-1/sms":   "+15551234567",
	}}
	prefs := &fakePrefRepo{prefs: map[string]*entity.NotificationPreference{
		"user-1": allowAllPreference("user-1"),
	}}
	factory := newTestFactory(prefs, templates, directory)

	result, err := factory.Build(context.Background(), CreateRequest{
		UserID:       "user-1",
		Category:     entity.CategoryLifecycle,
		Channels:     []entity.Channel{entity.ChannelEmail, entity.ChannelSMS},
		TemplateID:   "tpl-welcome",
		TemplateData: map[string]string{"name": "Dana"},
	}, time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, result.Notifications, 1)
	n := result.Notifications[0]
	assert.Equal(t, entity.ChannelEmail, n.Channel)
	assert.Equal(t, "Welcome Dana", n.Title)
	assert.Equal(t, "<p>Hi Dana</p>", n.Body)

	// The template has no SMS body, so the SMS channel is skipped rather
	// than sent empty.
	assert.Equal(t, SkipReasonNoTemplate, result.Skipped[entity.ChannelSMS])
}

func TestFactory_Build_TemplateNotFound(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{"user-1/email": "dana@example.com"}}
	factory := newTestFactory(&fakePrefRepo{}, &fakeTemplateRepo{}, directory)

	_, err := factory.Build(context.Background(), CreateRequest{
		UserID:     "user-1",
		Category:   entity.CategoryReminder,
		Channels:   []entity.Channel{entity.ChannelEmail},
		TemplateID: "tpl-missing",
	}, time.Now().UTC())
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}

func TestFactory_Build_SkipReasons(t *testing.T) {
	prefs := &fakePrefRepo{prefs: map[string]*entity.NotificationPreference{
		"user-1": func() *entity.NotificationPreference {
			p := allowAllPreference("user-1")
			p.PushEnabled = false
			return p
		}(),
	}}
	// No chat address on file; the email address is malformed.
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "not-an-address",
	}}
	factory := newTestFactory(prefs, &fakeTemplateRepo{}, directory)

	result, err := factory.Build(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail, entity.ChannelPush, entity.ChannelChat},
		Title:    "Reminder",
		Body:     "Lesson soon",
	}, time.Now().UTC())
	require.NoError(t, err)

	assert.Empty(t, result.Notifications)
	assert.Equal(t, SkipReasonInvalid, result.Skipped[entity.ChannelEmail])
	assert.Equal(t, SkipReasonPreference, result.Skipped[entity.ChannelPush])
	assert.Equal(t, SkipReasonNoAddress, result.Skipped[entity.ChannelChat])
}

func TestFactory_Build_RecipientOverrideWins(t *testing.T) {
	directory := &fakeDirectory{addresses: map[string]string{
		"user-1/email": "profile@example.com",
	}}
	factory := newTestFactory(&fakePrefRepo{}, &fakeTemplateRepo{}, directory)

	result, err := factory.Build(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail},
		Title:    "Reminder",
		Body:     "Lesson soon",
		RecipientOverride: map[entity.Channel]string{
			entity.ChannelEmail: "override@example.com",
		},
	}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, "override@example.com", result.Notifications[0].RecipientAddress)
}

func TestFactory_Build_DirectoryError(t *testing.T) {
	wantErr := errors.New("directory unavailable")
	factory := newTestFactory(&fakePrefRepo{}, &fakeTemplateRepo{}, &fakeDirectory{err: wantErr})

	_, err := factory.Build(context.Background(), CreateRequest{
		UserID:   "user-1",
		Category: entity.CategoryReminder,
		Channels: []entity.Channel{entity.ChannelEmail},
		Title:    "Reminder",
		Body:     "Lesson soon",
	}, time.Now().UTC())
	assert.ErrorIs(t, err, wantErr)
}

// allowAllPreference enables every channel and category flag, including SMS
// which the defaults leave off.
func allowAllPreference(userID string) *entity.NotificationPreference {
	p := entity.DefaultPreference(userID)
	p.SMSEnabled = true
	return p
}

var _ repository.PreferenceRepository = (*fakePrefRepo)(nil)
var _ repository.TemplateRepository = (*fakeTemplateRepo)(nil)
var _ repository.RecipientDirectory = (*fakeDirectory)(nil)
