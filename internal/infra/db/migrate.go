package db

import "database/sql"

func MigrateUp(database *sql.DB) error {
	if _, err := database.Exec(`
CREATE TABLE IF NOT EXISTS notifications (
    id                VARCHAR(36) PRIMARY KEY,
    user_id           VARCHAR(36) NOT NULL,
    category          VARCHAR(20) NOT NULL,
    channel           VARCHAR(10) NOT NULL,
    title             TEXT NOT NULL,
    body              TEXT NOT NULL,
    plain_body        TEXT NOT NULL DEFAULT '',
    priority          VARCHAR(10) NOT NULL DEFAULT 'normal',
    status            VARCHAR(12) NOT NULL DEFAULT 'pending',
    scheduled_for     TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at        TIMESTAMPTZ,
    tracking_id       VARCHAR(36) NOT NULL UNIQUE,
    recipient_address TEXT NOT NULL DEFAULT '',
    attempts          INTEGER NOT NULL DEFAULT 0,
    max_attempts      INTEGER NOT NULL DEFAULT 3,
    last_error        TEXT,
    next_retry_at     TIMESTAMPTZ,
    bulk              BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    read_at           TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := database.Exec(`
CREATE TABLE IF NOT EXISTS notification_preferences (
    user_id             VARCHAR(36) PRIMARY KEY,
    email_enabled       BOOLEAN NOT NULL DEFAULT TRUE,
    push_enabled        BOOLEAN NOT NULL DEFAULT TRUE,
    sms_enabled         BOOLEAN NOT NULL DEFAULT FALSE,
    chat_enabled        BOOLEAN NOT NULL DEFAULT TRUE,
    email_transactional BOOLEAN NOT NULL DEFAULT TRUE,
    email_reminders     BOOLEAN NOT NULL DEFAULT TRUE,
    push_reminders      BOOLEAN NOT NULL DEFAULT TRUE,
    sms_reminders       BOOLEAN NOT NULL DEFAULT TRUE,
    chat_reminders      BOOLEAN NOT NULL DEFAULT TRUE,
    email_progress      BOOLEAN NOT NULL DEFAULT TRUE,
    push_progress       BOOLEAN NOT NULL DEFAULT TRUE,
    sms_progress        BOOLEAN NOT NULL DEFAULT TRUE,
    chat_progress       BOOLEAN NOT NULL DEFAULT TRUE,
    email_marketing     BOOLEAN NOT NULL DEFAULT TRUE,
    push_marketing      BOOLEAN NOT NULL DEFAULT TRUE,
    sms_marketing       BOOLEAN NOT NULL DEFAULT TRUE,
    chat_marketing      BOOLEAN NOT NULL DEFAULT TRUE,
    overrides           JSONB,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := database.Exec(`
CREATE TABLE IF NOT EXISTS notification_templates (
    id            VARCHAR(64) PRIMARY KEY,
    name          TEXT NOT NULL,
    email_subject TEXT NOT NULL DEFAULT '',
    email_body    TEXT NOT NULL DEFAULT '',
    push_title    TEXT NOT NULL DEFAULT '',
    push_body     TEXT NOT NULL DEFAULT '',
    sms_body      TEXT NOT NULL DEFAULT '',
    chat_body     TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := database.Exec(`
CREATE TABLE IF NOT EXISTS interactions (
    id                  SERIAL PRIMARY KEY,
    notification_id     VARCHAR(36) NOT NULL REFERENCES notifications(id),
    provider            VARCHAR(40) NOT NULL,
    external_message_id VARCHAR(128) NOT NULL,
    event_type          VARCHAR(20) NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := database.Exec(`
CREATE TABLE IF NOT EXISTS delivery_attempts (
    id              SERIAL PRIMARY KEY,
    notification_id VARCHAR(36) NOT NULL REFERENCES notifications(id),
    attempt_number  INTEGER NOT NULL,
    provider        VARCHAR(40) NOT NULL,
    outcome         VARCHAR(20) NOT NULL,
    error_detail    TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Queue rebuild and retry scans filter on status
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status)`,
		// User-facing listing orders by created_at DESC per user
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
		// Webhook correlation resolves by tracking id (already UNIQUE, kept for clarity)
		`CREATE INDEX IF NOT EXISTS idx_notifications_tracking ON notifications(tracking_id)`,
		// Expiry sweep scans for overdue non-terminal rows
		`CREATE INDEX IF NOT EXISTS idx_notifications_expires ON notifications(expires_at) WHERE expires_at IS NOT NULL`,
		// Webhook idempotency gate
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_interactions_dedupe ON interactions(provider, external_message_id, event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_notification ON interactions(notification_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_notification ON delivery_attempts(notification_id)`,
	}
	for _, idx := range indexes {
		if _, err := database.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}
