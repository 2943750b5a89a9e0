package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

type TemplateRepo struct{ db DBTX }

func NewTemplateRepo(db DBTX) repository.TemplateRepository {
	return &TemplateRepo{db: db}
}

func (repo *TemplateRepo) Get(ctx context.Context, id string) (*entity.NotificationTemplate, error) {
	const query = `
SELECT id, name, email_subject, email_body, push_title, push_body, sms_body, chat_body,
       created_at, updated_at
FROM notification_templates
WHERE id = $1
LIMIT 1`
	var tpl entity.NotificationTemplate
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.EmailSubject, &tpl.EmailBody,
		&tpl.PushTitle, &tpl.PushBody, &tpl.SMSBody, &tpl.ChatBody,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &tpl, nil
}
