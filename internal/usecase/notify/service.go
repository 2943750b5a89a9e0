package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"learnloop/internal/common/pagination"
	"learnloop/internal/dispatch"
	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/repository"
)

// bulkConcurrency bounds the per-recipient build fan-out in CreateBulk.
const bulkConcurrency = 8

// Service is the application-facing surface for creating and managing
// notifications. It owns the PENDING -> QUEUED handoff; everything after
// QUEUED belongs to the dispatch engine.
type Service struct {
	factory *Factory
	repo    repository.NotificationRepository
	// queue is the in-process dispatch buffer. Nil when the service runs in
	// the API process; the worker's poll loop picks queued rows up there.
	queue  *dispatch.Queue
	bus    *events.Bus
	logger *slog.Logger
}

func NewService(factory *Factory, repo repository.NotificationRepository, queue *dispatch.Queue, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		factory: factory,
		repo:    repo,
		queue:   queue,
		bus:     bus,
		logger:  logger,
	}
}

// CreateResult reports the outcome of a create request: the notifications
// that were queued plus the channels that were dropped, with reasons.
type CreateResult struct {
	Notifications []*entity.Notification
	Skipped       map[entity.Channel]string
}

// Create fans the request out to the permitted channels and queues each
// resulting notification. Returns entity.ErrNoChannelsAllowed when every
// requested channel was dropped.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	now := time.Now().UTC()
	built, err := s.factory.Build(ctx, req, now)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if len(built.Notifications) == 0 {
		return nil, fmt.Errorf("Create: %w", entity.ErrNoChannelsAllowed)
	}

	for _, n := range built.Notifications {
		if err := s.enqueue(ctx, n, now); err != nil {
			return nil, fmt.Errorf("Create: %w", err)
		}
	}

	recordCreated(built.Notifications)
	for channel, reason := range built.Skipped {
		recordSkipped(channel, reason)
	}
	return &CreateResult{Notifications: built.Notifications, Skipped: built.Skipped}, nil
}

// enqueue persists the notification and moves it to QUEUED. A future
// ScheduledFor is stored as the retry eligibility time so the dispatch
// engine holds the notification until then, including across restarts.
func (s *Service) enqueue(ctx context.Context, n *entity.Notification, now time.Time) error {
	if n.ScheduledFor.After(now) {
		scheduledFor := n.ScheduledFor
		n.NextRetryAt = &scheduledFor
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	s.publish(events.TypeCreated, n, "")

	if err := n.Transition(entity.StatusQueued); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, n.ID, entity.StatusQueued); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	s.publish(events.TypeQueued, n, "")

	// Bulk notifications are picked up by the worker's batch dispatcher;
	// only direct sends go to the per-item queue.
	if s.queue != nil && !n.IsBulk {
		readyAt := now
		if n.NextRetryAt != nil {
			readyAt = *n.NextRetryAt
		}
		s.queue.Push(dispatch.Item{NotificationID: n.ID, Channel: n.Channel, ReadyAt: readyAt})
	}
	return nil
}

// BulkResult reports per-recipient outcomes of a bulk create.
type BulkResult struct {
	Created int
	// SkippedUsers counts recipients for whom every channel was dropped.
	SkippedUsers int
	// Failures maps recipient user ids to the error that stopped their
	// fan-out. Infrastructure failures for one recipient do not abort the
	// rest of the batch.
	Failures map[string]string
}

// BulkOptions carries the caller's batching overrides for one bulk request.
// Zero values fall back to the dispatch defaults.
type BulkOptions struct {
	// BatchSize is the number of recipients released per wave.
	BatchSize int
	// BatchDelay is the gap between consecutive waves.
	BatchDelay time.Duration
}

func (o BulkOptions) withDefaults() BulkOptions {
	cfg := dispatch.DefaultConfig()
	if o.BatchSize <= 0 {
		o.BatchSize = cfg.BatchSize
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = cfg.BatchDelay
	}
	return o
}

// CreateBulk fans one request out to many recipients. Each recipient gets
// their own preference resolution and recipient lookup; the resulting
// notifications are flagged for batch dispatch. Recipients past the first
// BatchSize get their eligibility staggered by BatchDelay per wave, so the
// dispatch engine drains the group at the caller's pace.
func (s *Service) CreateBulk(ctx context.Context, userIDs []string, req CreateRequest, opts BulkOptions) (*BulkResult, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("CreateBulk: %w", ErrNoRecipients)
	}
	opts = opts.withDefaults()

	base := req.ScheduledFor
	if base.IsZero() {
		base = time.Now().UTC()
	}

	result := &BulkResult{Failures: make(map[string]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, userID := range userIDs {
		userID := userID
		wave := i / opts.BatchSize
		g.Go(func() error {
			perUser := req
			perUser.UserID = userID
			perUser.Bulk = true
			if wave > 0 {
				perUser.ScheduledFor = base.Add(time.Duration(wave) * opts.BatchDelay)
			}

			_, err := s.Create(gctx, perUser)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Created++
			case isNoChannels(err):
				result.SkippedUsers++
			default:
				result.Failures[userID] = err.Error()
				s.logger.Warn("bulk recipient failed",
					slog.String("user_id", userID),
					slog.String("error", err.Error()))
			}
			// Per-recipient failures are collected, not propagated: one bad
			// recipient must not cancel the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("CreateBulk: %w", err)
	}

	s.logger.Info("bulk create finished",
		slog.Int("recipients", len(userIDs)),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.SkippedUsers),
		slog.Int("failed", len(result.Failures)))
	return result, nil
}

// Get returns the notification, or entity.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return n, nil
}

// List returns a page of the user's notifications plus pagination metadata.
func (s *Service) List(ctx context.Context, userID string, filters repository.ListFilters, params pagination.Params) ([]*entity.Notification, pagination.Metadata, error) {
	query := pagination.OffsetStrategy{}.CalculateQuery(params)
	notifications, total, err := s.repo.ListByUser(ctx, userID, filters, query.Offset, query.Limit)
	if err != nil {
		return nil, pagination.Metadata{}, fmt.Errorf("List: %w", err)
	}
	metadata := pagination.OffsetStrategy{}.BuildMetadata(params, total, false)
	return notifications, metadata, nil
}

// MarkRead records that the user has read the notification. Idempotent.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	s.bus.Publish(events.Event{Type: events.TypeRead, NotificationID: id, UserID: userID})
	return nil
}

// Cancel withdraws a PENDING or QUEUED notification before delivery.
// Returns entity.ErrAlreadySent when delivery has already happened.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	if s.queue != nil {
		s.queue.Remove(id)
	}
	s.bus.Publish(events.Event{Type: events.TypeCancelled, NotificationID: id})
	return nil
}

// Resend puts a FAILED notification back through delivery with a fresh
// attempt budget. Returns entity.ErrNotResendable for other statuses.
func (s *Service) Resend(ctx context.Context, id string) error {
	if err := s.repo.ResetForResend(ctx, id); err != nil {
		return fmt.Errorf("Resend: %w", err)
	}
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("Resend: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, entity.StatusQueued); err != nil {
		return fmt.Errorf("Resend: %w", err)
	}
	s.publish(events.TypeQueued, n, "resend")

	if s.queue != nil && !n.IsBulk {
		s.queue.Push(dispatch.Item{NotificationID: n.ID, Channel: n.Channel, ReadyAt: time.Now()})
	}
	return nil
}

func (s *Service) publish(t events.Type, n *entity.Notification, detail string) {
	s.bus.Publish(events.Event{
		Type:           t,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        string(n.Channel),
		Detail:         detail,
	})
}

func isNoChannels(err error) bool {
	return errors.Is(err, entity.ErrNoChannelsAllowed)
}
