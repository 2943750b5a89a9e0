package dispatch

import (
	"context"
	"log/slog"
	"time"

	"learnloop/internal/repository"
)

// Sweeper fails notifications whose expiry passed while they sat in a
// non-terminal state. The dispatcher also checks expiry at claim time; the
// sweep catches rows that never reach a worker, like PENDING scheduled sends.
type Sweeper struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewSweeper(repo repository.NotificationRepository, logger *slog.Logger) *Sweeper {
	return &Sweeper{repo: repo, logger: logger}
}

// Sweep runs one expiry pass and reports how many rows it failed.
// Intended to be scheduled periodically.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", slog.Any("error", err))
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("expired notifications swept", slog.Int64("count", expired))
	}
	return expired, nil
}
