package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"learnloop/internal/domain/entity"
	"learnloop/internal/repository"
)

// DirectoryRepo resolves delivery addresses from the user profile table owned
// by the account service. Read-only from this service's perspective.
type DirectoryRepo struct{ db DBTX }

func NewDirectoryRepo(db DBTX) repository.RecipientDirectory {
	return &DirectoryRepo{db: db}
}

func (repo *DirectoryRepo) Address(ctx context.Context, userID string, channel entity.Channel) (string, error) {
	var column string
	switch channel {
	case entity.ChannelEmail:
		column = "email"
	case entity.ChannelPush:
		column = "push_token"
	case entity.ChannelSMS:
		column = "phone"
	case entity.ChannelChat:
		column = "chat_id"
	default:
		return "", fmt.Errorf("Address: unknown channel %q", channel)
	}

	query := fmt.Sprintf(`SELECT COALESCE(%s, '') FROM users WHERE id = $1 LIMIT 1`, column)
	var address string
	err := repo.db.QueryRowContext(ctx, query, userID).Scan(&address)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("Address: %w", err)
	}
	return address, nil
}
