package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

type InteractionRepo struct{ db DBTX }

func NewInteractionRepo(db DBTX) repository.InteractionRepository {
	return &InteractionRepo{db: db}
}

// InsertUnique relies on the unique index over
// (provider, external_message_id, event_type) to make webhook replays no-ops.
func (repo *InteractionRepo) InsertUnique(ctx context.Context, in *entity.Interaction) (bool, error) {
	const query = `
INSERT INTO interactions (notification_id, provider, external_message_id, event_type, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (provider, external_message_id, event_type) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query,
		in.NotificationID, in.Provider, in.ExternalMessageID, in.Type)
	if err != nil {
		return false, fmt.Errorf("InsertUnique: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertUnique: %w", err)
	}
	return affected == 1, nil
}

func (repo *InteractionRepo) ListByNotification(ctx context.Context, notificationID string) ([]*entity.Interaction, error) {
	const query = `
SELECT id, notification_id, provider, external_message_id, event_type, created_at
FROM interactions
WHERE notification_id = $1
ORDER BY created_at ASC`
	rows, err := repo.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("ListByNotification: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interactions := make([]*entity.Interaction, 0, 8)
	for rows.Next() {
		var in entity.Interaction
		if err := rows.Scan(
			&in.ID, &in.NotificationID, &in.Provider,
			&in.ExternalMessageID, &in.Type, &in.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByNotification: %w", err)
		}
		interactions = append(interactions, &in)
	}
	return interactions, rows.Err()
}

// CountByType joins through notifications so the stats filters (user, channel,
// category, window) apply to engagement counts as well.
func (repo *InteractionRepo) CountByType(ctx context.Context, filters repository.StatsFilters) (map[entity.InteractionType]int64, error) {
	query := psql.Select("i.event_type", "count(*)").
		From("interactions i").
		Join("notifications n ON i.notification_id = n.id").
		GroupBy("i.event_type")
	if filters.UserID != "" {
		query = query.Where(sq.Eq{"n.user_id": filters.UserID})
	}
	if filters.Category != nil {
		query = query.Where(sq.Eq{"n.category": *filters.Category})
	}
	if filters.Channel != nil {
		query = query.Where(sq.Eq{"n.channel": *filters.Channel})
	}
	if filters.From != nil {
		query = query.Where(sq.GtOrEq{"i.created_at": *filters.From})
	}
	if filters.To != nil {
		query = query.Where(sq.LtOrEq{"i.created_at": *filters.To})
	}

	statement, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("CountByType: build: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("CountByType: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.InteractionType]int64)
	for rows.Next() {
		var eventType entity.InteractionType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("CountByType: %w", err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

type DeliveryAttemptRepo struct{ db DBTX }

func NewDeliveryAttemptRepo(db DBTX) repository.DeliveryAttemptRepository {
	return &DeliveryAttemptRepo{db: db}
}

func (repo *DeliveryAttemptRepo) Record(ctx context.Context, attempt *entity.DeliveryAttempt) error {
	const query = `
INSERT INTO delivery_attempts (notification_id, attempt_number, provider, outcome, error_detail, created_at)
VALUES ($1, $2, $3, $4, $5, now())`
	_, err := repo.db.ExecContext(ctx, query,
		attempt.NotificationID, attempt.AttemptNumber, attempt.Provider,
		attempt.Outcome, attempt.ErrorDetail)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (repo *DeliveryAttemptRepo) ListByNotification(ctx context.Context, notificationID string) ([]*entity.DeliveryAttempt, error) {
	const query = `
SELECT id, notification_id, attempt_number, provider, outcome, error_detail, created_at
FROM delivery_attempts
WHERE notification_id = $1
ORDER BY attempt_number ASC`
	rows, err := repo.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("ListByNotification: %w", err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]*entity.DeliveryAttempt, 0, 4)
	for rows.Next() {
		var a entity.DeliveryAttempt
		var detail sql.NullString
		if err := rows.Scan(
			&a.ID, &a.NotificationID, &a.AttemptNumber,
			&a.Provider, &a.Outcome, &detail, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByNotification: %w", err)
		}
		a.ErrorDetail = detail.String
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
