package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

type PreferenceRepo struct{ db DBTX }

func NewPreferenceRepo(db DBTX) repository.PreferenceRepository {
	return &PreferenceRepo{db: db}
}

const preferenceColumns = `user_id,
email_enabled, push_enabled, sms_enabled, chat_enabled,
email_transactional,
email_reminders, push_reminders, sms_reminders, chat_reminders,
email_progress, push_progress, sms_progress, chat_progress,
email_marketing, push_marketing, sms_marketing, chat_marketing,
overrides, created_at, updated_at`

func (repo *PreferenceRepo) Get(ctx context.Context, userID string) (*entity.NotificationPreference, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_preferences WHERE user_id = $1 LIMIT 1`, preferenceColumns)

	var pref entity.NotificationPreference
	var overridesJSON []byte
	err := repo.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.EmailEnabled, &pref.PushEnabled, &pref.SMSEnabled, &pref.ChatEnabled,
		&pref.EmailTransactional,
		&pref.EmailReminders, &pref.PushReminders, &pref.SMSReminders, &pref.ChatReminders,
		&pref.EmailProgress, &pref.PushProgress, &pref.SMSProgress, &pref.ChatProgress,
		&pref.EmailMarketing, &pref.PushMarketing, &pref.SMSMarketing, &pref.ChatMarketing,
		&overridesJSON, &pref.CreatedAt, &pref.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &pref.Overrides); err != nil {
			return nil, fmt.Errorf("Get: unmarshal overrides: %w", err)
		}
	}

	return &pref, nil
}

func (repo *PreferenceRepo) Upsert(ctx context.Context, pref *entity.NotificationPreference) error {
	var overridesJSON []byte
	if pref.Overrides != nil {
		var err error
		overridesJSON, err = json.Marshal(pref.Overrides)
		if err != nil {
			return fmt.Errorf("Upsert: marshal overrides: %w", err)
		}
	}

	const query = `
INSERT INTO notification_preferences (
    user_id,
    email_enabled, push_enabled, sms_enabled, chat_enabled,
    email_transactional,
    email_reminders, push_reminders, sms_reminders, chat_reminders,
    email_progress, push_progress, sms_progress, chat_progress,
    email_marketing, push_marketing, sms_marketing, chat_marketing,
    overrides, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
ON CONFLICT (user_id) DO UPDATE SET
    email_enabled = EXCLUDED.email_enabled,
    push_enabled = EXCLUDED.push_enabled,
    sms_enabled = EXCLUDED.sms_enabled,
    chat_enabled = EXCLUDED.chat_enabled,
    email_transactional = EXCLUDED.email_transactional,
    email_reminders = EXCLUDED.email_reminders,
    push_reminders = EXCLUDED.push_reminders,
    sms_reminders = EXCLUDED.sms_reminders,
    chat_reminders = EXCLUDED.chat_reminders,
    email_progress = EXCLUDED.email_progress,
    push_progress = EXCLUDED.push_progress,
    sms_progress = EXCLUDED.sms_progress,
    chat_progress = EXCLUDED.chat_progress,
    email_marketing = EXCLUDED.email_marketing,
    push_marketing = EXCLUDED.push_marketing,
    sms_marketing = EXCLUDED.sms_marketing,
    chat_marketing = EXCLUDED.chat_marketing,
    overrides = EXCLUDED.overrides,
    updated_at = now()`

	_, err := repo.db.ExecContext(ctx, query,
		pref.UserID,
		pref.EmailEnabled, pref.PushEnabled, pref.SMSEnabled, pref.ChatEnabled,
		pref.EmailTransactional,
		pref.EmailReminders, pref.PushReminders, pref.SMSReminders, pref.ChatReminders,
		pref.EmailProgress, pref.PushProgress, pref.SMSProgress, pref.ChatProgress,
		pref.EmailMarketing, pref.PushMarketing, pref.SMSMarketing, pref.ChatMarketing,
		overridesJSON,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// DisableChannel flips a channel's global gate off. Creates the preference row
// from defaults first when the user has none, so the deactivation sticks.
func (repo *PreferenceRepo) DisableChannel(ctx context.Context, userID string, channel entity.Channel) error {
	var column string
	switch channel {
	case entity.ChannelEmail:
		column = "email_enabled"
	case entity.ChannelPush:
		column = "push_enabled"
	case entity.ChannelSMS:
		column = "sms_enabled"
	case entity.ChannelChat:
		column = "chat_enabled"
	default:
		return fmt.Errorf("DisableChannel: unknown channel %q", channel)
	}

	pref, err := repo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("DisableChannel: %w", err)
	}
	if pref == nil {
		defaults := entity.DefaultPreference(userID)
		if err := repo.Upsert(ctx, defaults); err != nil {
			return fmt.Errorf("DisableChannel: %w", err)
		}
	}

	query := fmt.Sprintf(`UPDATE notification_preferences SET %s = FALSE, updated_at = now() WHERE user_id = $1`, column)
	if _, err := repo.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("DisableChannel: %w", err)
	}
	return nil
}
