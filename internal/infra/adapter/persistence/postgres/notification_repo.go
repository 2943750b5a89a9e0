// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

// notificationColumns is the column list shared by every SELECT on the
// notifications table. Scan order must match scanNotification.
const notificationColumns = `id, user_id, category, channel, title, body, plain_body, priority, status,
scheduled_for, expires_at, tracking_id, recipient_address, attempts, max_attempts,
last_error, next_retry_at, bulk, created_at, updated_at, read_at`

type NotificationRepo struct{ db DBTX }

func NewNotificationRepo(db DBTX) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

// psql builds statements with $N placeholders for PostgreSQL.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var lastError sql.NullString
	if err := row.Scan(
		&n.ID, &n.UserID, &n.Category, &n.Channel, &n.Title, &n.Body, &n.PlainBody,
		&n.Priority, &n.Status, &n.ScheduledFor, &n.ExpiresAt, &n.TrackingID,
		&n.RecipientAddress, &n.Attempts, &n.MaxAttempts, &lastError, &n.NextRetryAt,
		&n.IsBulk, &n.CreatedAt, &n.UpdatedAt, &n.ReadAt,
	); err != nil {
		return nil, err
	}
	n.LastError = lastError.String
	return &n, nil
}

func (repo *NotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	const query = `
INSERT INTO notifications (
    id, user_id, category, channel, title, body, plain_body, priority, status,
    scheduled_for, expires_at, tracking_id, recipient_address, attempts, max_attempts,
    last_error, next_retry_at, bulk, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())`
	_, err := repo.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Category, n.Channel, n.Title, n.Body, n.PlainBody,
		n.Priority, n.Status, n.ScheduledFor, n.ExpiresAt, n.TrackingID,
		n.RecipientAddress, n.Attempts, n.MaxAttempts,
		sql.NullString{String: n.LastError, Valid: n.LastError != ""}, n.NextRetryAt, n.IsBulk,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) Get(ctx context.Context, id string) (*entity.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1 LIMIT 1`, notificationColumns)
	n, err := scanNotification(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return n, nil
}

func (repo *NotificationRepo) GetByTrackingID(ctx context.Context, trackingID string) (*entity.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE tracking_id = $1 LIMIT 1`, notificationColumns)
	n, err := scanNotification(repo.db.QueryRowContext(ctx, query, trackingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByTrackingID: %w", err)
	}
	return n, nil
}

// listConditions translates ListFilters into squirrel predicates shared by the
// page query and the count query.
func listConditions(userID string, filters repository.ListFilters) []sq.Sqlizer {
	conds := []sq.Sqlizer{sq.Eq{"user_id": userID}}
	if filters.Status != nil {
		conds = append(conds, sq.Eq{"status": *filters.Status})
	}
	if filters.Category != nil {
		conds = append(conds, sq.Eq{"category": *filters.Category})
	}
	if filters.Channel != nil {
		conds = append(conds, sq.Eq{"channel": *filters.Channel})
	}
	if filters.Unread {
		conds = append(conds, sq.Eq{"read_at": nil})
	}
	if filters.From != nil {
		conds = append(conds, sq.GtOrEq{"created_at": *filters.From})
	}
	if filters.To != nil {
		conds = append(conds, sq.LtOrEq{"created_at": *filters.To})
	}
	return conds
}

func (repo *NotificationRepo) ListByUser(ctx context.Context, userID string, filters repository.ListFilters, offset, limit int) ([]*entity.Notification, int64, error) {
	conds := listConditions(userID, filters)

	countQuery := psql.Select("count(*)").From("notifications")
	pageQuery := psql.Select(notificationColumns).From("notifications")
	for _, c := range conds {
		countQuery = countQuery.Where(c)
		pageQuery = pageQuery.Where(c)
	}

	statement, args, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: build count: %w", err)
	}
	var total int64
	if err := repo.db.QueryRowContext(ctx, statement, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	statement, args, err = pageQuery.
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: build page: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUser: %w", err)
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (repo *NotificationRepo) UpdateStatus(ctx context.Context, id string, status entity.Status) error {
	const query = `UPDATE notifications SET status = $2, updated_at = now() WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return requireRow(res, "UpdateStatus")
}

// ClaimForProcessing is the single writer gate for PROCESSING ownership:
// the conditional UPDATE succeeds for at most one worker per notification.
func (repo *NotificationRepo) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	const query = `
UPDATE notifications SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3`
	res, err := repo.db.ExecContext(ctx, query, id, entity.StatusProcessing, entity.StatusQueued)
	if err != nil {
		return false, fmt.Errorf("ClaimForProcessing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ClaimForProcessing: %w", err)
	}
	return affected == 1, nil
}

func (repo *NotificationRepo) ScheduleRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	const query = `
UPDATE notifications
SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, updated_at = now()
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, entity.StatusQueued, attempts, nextRetryAt, lastError)
	if err != nil {
		return fmt.Errorf("ScheduleRetry: %w", err)
	}
	return requireRow(res, "ScheduleRetry")
}

func (repo *NotificationRepo) MarkSent(ctx context.Context, id string) error {
	return repo.UpdateStatus(ctx, id, entity.StatusSent)
}

func (repo *NotificationRepo) MarkDelivered(ctx context.Context, id string) error {
	const query = `
UPDATE notifications SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3`
	res, err := repo.db.ExecContext(ctx, query, id, entity.StatusDelivered, entity.StatusSent)
	if err != nil {
		return fmt.Errorf("MarkDelivered: %w", err)
	}
	// A delivered webhook for an already-delivered notification is a replay, not an error.
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil
	}
	return nil
}

func (repo *NotificationRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	const query = `
UPDATE notifications SET status = $2, attempts = $3, last_error = $4, next_retry_at = NULL, updated_at = now()
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, entity.StatusFailed, attempts, lastError)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return requireRow(res, "MarkFailed")
}

func (repo *NotificationRepo) MarkRead(ctx context.Context, id string, userID string, at time.Time) error {
	const query = `
UPDATE notifications SET read_at = $3, updated_at = now()
WHERE id = $1 AND user_id = $2 AND read_at IS NULL`
	if _, err := repo.db.ExecContext(ctx, query, id, userID, at); err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	// Zero rows affected means the notification was already read; that is
	// fine, MarkRead is idempotent.
	return nil
}

func (repo *NotificationRepo) Cancel(ctx context.Context, id string) error {
	const query = `
UPDATE notifications SET status = $2, updated_at = now()
WHERE id = $1 AND status IN ($3, $4)`
	res, err := repo.db.ExecContext(ctx, query, id,
		entity.StatusCancelled, entity.StatusPending, entity.StatusQueued)
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish "already sent" from "not found" for a precise API error.
	current, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return entity.ErrNotFound
		}
		return fmt.Errorf("Cancel: %w", err)
	}
	if current.Status == entity.StatusSent || current.Status == entity.StatusDelivered {
		return entity.ErrAlreadySent
	}
	return &entity.StateTransitionError{From: current.Status, To: entity.StatusCancelled}
}

func (repo *NotificationRepo) ResetForResend(ctx context.Context, id string) error {
	const query = `
UPDATE notifications
SET status = $2, attempts = 0, last_error = NULL, next_retry_at = NULL, updated_at = now()
WHERE id = $1 AND status = $3`
	res, err := repo.db.ExecContext(ctx, query, id, entity.StatusPending, entity.StatusFailed)
	if err != nil {
		return fmt.Errorf("ResetForResend: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ResetForResend: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := repo.Get(ctx, id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return entity.ErrNotFound
		}
		return fmt.Errorf("ResetForResend: %w", err)
	}
	return entity.ErrNotResendable
}

func (repo *NotificationRepo) ListQueued(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := fmt.Sprintf(`
SELECT %s FROM notifications
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`, notificationColumns)
	rows, err := repo.db.QueryContext(ctx, query, entity.StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("ListQueued: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ListQueued: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (repo *NotificationRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const query = `
UPDATE notifications
SET status = $1, last_error = 'expired before send', updated_at = now()
WHERE expires_at IS NOT NULL AND expires_at < $2 AND status IN ($3, $4, $5)`
	res, err := repo.db.ExecContext(ctx, query,
		entity.StatusFailed, now,
		entity.StatusPending, entity.StatusQueued, entity.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("ExpireDue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ExpireDue: %w", err)
	}
	return affected, nil
}

func (repo *NotificationRepo) CountByStatus(ctx context.Context, filters repository.StatsFilters) (map[entity.Status]int64, error) {
	query := psql.Select("status", "count(*)").From("notifications").GroupBy("status")
	if filters.UserID != "" {
		query = query.Where(sq.Eq{"user_id": filters.UserID})
	}
	if filters.Category != nil {
		query = query.Where(sq.Eq{"category": *filters.Category})
	}
	if filters.Channel != nil {
		query = query.Where(sq.Eq{"channel": *filters.Channel})
	}
	if filters.From != nil {
		query = query.Where(sq.GtOrEq{"created_at": *filters.From})
	}
	if filters.To != nil {
		query = query.Where(sq.LtOrEq{"created_at": *filters.To})
	}

	statement, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: build: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.Status]int64, len(entity.AllStatuses))
	for rows.Next() {
		var status entity.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountByStatus: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// requireRow converts a zero-row UPDATE into entity.ErrNotFound.
func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return entity.ErrNotFound
	}
	return nil
}
