// Package dispatch drains the delivery buffer through channel providers,
// applying per-channel pacing, provider circuit breaking, and the persistent
// retry schedule.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"learnloop/internal/domain/entity"
	"learnloop/internal/events"
	"learnloop/internal/infra/provider"
	"learnloop/internal/observability/tracing"
	"learnloop/internal/repository"
	"learnloop/internal/resilience/circuitbreaker"
)

// Deps wires the dispatcher's collaborators.
type Deps struct {
	Queue       *Queue
	Repo        repository.NotificationRepository
	Attempts    repository.DeliveryAttemptRepository
	Preferences repository.PreferenceRepository
	Providers   *provider.Registry
	Bus         *events.Bus
	Logger      *slog.Logger
}

// Dispatcher runs the delivery workers.
type Dispatcher struct {
	cfg    Config
	queue  *Queue
	repo   repository.NotificationRepository
	atts   repository.DeliveryAttemptRepository
	prefs  repository.PreferenceRepository
	provs  *provider.Registry
	bus    *events.Bus
	logger *slog.Logger

	pacers  map[entity.Channel]*provider.RateLimiter
	batcher *Batcher

	breakerMu sync.Mutex
	breakers  map[string]*circuitbreaker.CircuitBreaker
}

func NewDispatcher(cfg Config, deps Deps) *Dispatcher {
	pacers := make(map[entity.Channel]*provider.RateLimiter, len(cfg.ChannelRatesPerMinute))
	for channel, perMinute := range cfg.ChannelRatesPerMinute {
		burst := perMinute / 10
		if burst < 1 {
			burst = 1
		}
		pacers[channel] = provider.NewRateLimiter(float64(perMinute)/60.0, burst)
	}

	return &Dispatcher{
		cfg:      cfg,
		queue:    deps.Queue,
		repo:     deps.Repo,
		atts:     deps.Attempts,
		prefs:    deps.Preferences,
		provs:    deps.Providers,
		bus:      deps.Bus,
		logger:   deps.Logger,
		pacers:   pacers,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// Queue exposes the delivery buffer for enqueueing and cancellation.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// AttachBatcher routes bulk notifications through the batch dispatcher.
// Must be called before Run.
func (d *Dispatcher) AttachBatcher(b *Batcher) { d.batcher = b }

// Run rebuilds the buffer from persisted QUEUED rows, then blocks draining
// it with the configured worker pool until the context ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.rebuild(ctx); err != nil {
		return fmt.Errorf("Run: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			return d.workerLoop(gctx)
		})
	}
	g.Go(func() error {
		return d.pollLoop(gctx)
	})
	g.Go(func() error {
		return d.depthLoop(gctx)
	})
	if d.batcher != nil {
		g.Go(func() error {
			return d.batcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("Run: %w", err)
	}
	return nil
}

// rebuild reloads QUEUED notifications into the in-memory buffer at startup.
// Retries and scheduled sends keep their persisted eligibility time.
func (d *Dispatcher) rebuild(ctx context.Context) error {
	count, err := d.offerQueued(ctx)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	d.logger.Info("dispatch buffer rebuilt", slog.Int("queued", count))
	return nil
}

// offerQueued pushes persisted QUEUED rows into the buffer. The queue
// dedupes ids, so re-offering already-buffered rows is a no-op; this is how
// rows created by the API process reach the worker.
func (d *Dispatcher) offerQueued(ctx context.Context) (int, error) {
	queued, err := d.repo.ListQueued(ctx, d.cfg.RebuildLimit)
	if err != nil {
		return 0, err
	}
	for _, n := range queued {
		readyAt := time.Now()
		if n.NextRetryAt != nil && n.NextRetryAt.After(readyAt) {
			readyAt = *n.NextRetryAt
		}
		if n.IsBulk && d.batcher != nil && !readyAt.After(time.Now()) {
			d.batcher.Add(ctx, n)
			continue
		}
		d.queue.Push(Item{NotificationID: n.ID, Channel: n.Channel, ReadyAt: readyAt})
	}
	return len(queued), nil
}

// pollLoop periodically re-offers persisted QUEUED rows.
func (d *Dispatcher) pollLoop(ctx context.Context) error {
	interval := d.cfg.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.offerQueued(ctx); err != nil {
				d.logger.Error("poll queued notifications", slog.Any("error", err))
			}
		}
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context) error {
	for {
		item, err := d.queue.Pop(ctx)
		if err != nil {
			return err
		}
		d.process(ctx, item)
	}
}

func (d *Dispatcher) depthLoop(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			SetQueueDepth(float64(d.queue.Len()))
		}
	}
}

// process runs one delivery attempt end to end.
func (d *Dispatcher) process(ctx context.Context, item Item) {
	logger := d.logger.With(slog.String("notification_id", item.NotificationID))

	n, err := d.repo.Get(ctx, item.NotificationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return
		}
		logger.Error("load notification", slog.Any("error", err))
		d.requeueLater(item, 5*time.Second)
		return
	}

	// Cancellation races the buffer: the row wins.
	if n.Status != entity.StatusQueued {
		return
	}

	if n.IsExpired(time.Now()) {
		if err := d.repo.MarkFailed(ctx, n.ID, n.Attempts, "expired before send"); err != nil {
			logger.Error("mark expired", slog.Any("error", err))
		}
		d.bus.Publish(events.Event{
			Type:           events.TypeExpired,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
		})
		return
	}

	if err := d.pace(ctx, n.Channel); err != nil {
		return
	}

	claimed, err := d.repo.ClaimForProcessing(ctx, n.ID)
	if err != nil {
		logger.Error("claim notification", slog.Any("error", err))
		d.requeueLater(item, 5*time.Second)
		return
	}
	if !claimed {
		return
	}

	d.deliver(ctx, n)
}

// pace blocks on the per-channel send pacer.
func (d *Dispatcher) pace(ctx context.Context, channel entity.Channel) error {
	pacer, ok := d.pacers[channel]
	if !ok {
		return nil
	}
	start := time.Now()
	if err := pacer.Wait(ctx); err != nil {
		return err
	}
	recordRateLimitWait(string(channel), time.Since(start))
	return nil
}

// deliver calls the provider for an already-claimed notification and applies
// the outcome.
func (d *Dispatcher) deliver(ctx context.Context, n *entity.Notification) {
	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.id", n.ID),
		attribute.String("notification.channel", string(n.Channel)),
	)

	logger := d.logger.With(
		slog.String("notification_id", n.ID),
		slog.String("channel", string(n.Channel)),
	)

	prov := d.provs.ForChannel(n.Channel)
	if prov == nil {
		d.fail(ctx, n, n.Attempts, "no provider registered for channel")
		return
	}

	breaker := d.breakerFor(prov.Name())
	start := time.Now()

	raw, err := breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.ProviderTimeout)
		defer cancel()

		res, sendErr := prov.Send(callCtx, n)
		if sendErr != nil {
			return nil, sendErr
		}
		// Transient failures feed the breaker's failure count; permanent
		// rejections are the backend working as intended.
		if res.Outcome == entity.OutcomeTransientFailure {
			return res, fmt.Errorf("transient delivery failure: %s", res.Detail)
		}
		return res, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		recordCircuitOpen(prov.Name())
		logger.Warn("provider circuit open, deferring",
			slog.String("provider", prov.Name()))
		// No attempt was made: back to the buffer without burning budget.
		d.putBack(ctx, n, 15*time.Second, "provider circuit open")
		return
	}

	var res *provider.SendResult
	if r, ok := raw.(*provider.SendResult); ok && r != nil {
		res = r
	} else if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-call: put it back untouched.
			d.putBack(ctx, n, 0, "shutdown during delivery")
			return
		}
		res = provider.Classify(prov.Name(), err)
	} else {
		res = provider.Classify(prov.Name(), errors.New("provider returned no result"))
	}

	d.ApplyResult(ctx, n, res, time.Since(start))
}

// ApplyResult records the attempt and advances the notification per the
// outcome. Shared by the single-send path and the bulk batcher.
func (d *Dispatcher) ApplyResult(ctx context.Context, n *entity.Notification, res *provider.SendResult, elapsed time.Duration) {
	logger := d.logger.With(
		slog.String("notification_id", n.ID),
		slog.String("channel", string(n.Channel)),
		slog.String("provider", res.Provider),
	)

	attemptNumber := n.Attempts + 1
	recordAttempt(string(n.Channel), string(res.Outcome), elapsed)

	if err := d.atts.Record(ctx, &entity.DeliveryAttempt{
		NotificationID: n.ID,
		AttemptNumber:  attemptNumber,
		Provider:       res.Provider,
		Outcome:        res.Outcome,
		ErrorDetail:    res.Detail,
	}); err != nil {
		logger.Error("record delivery attempt", slog.Any("error", err))
	}

	switch res.Outcome {
	case entity.OutcomeSuccess:
		if err := d.repo.MarkSent(ctx, n.ID); err != nil {
			logger.Error("mark sent", slog.Any("error", err))
			return
		}
		d.bus.Publish(events.Event{
			Type:           events.TypeSent,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
			Provider:       res.Provider,
			Attempt:        attemptNumber,
		})
		logger.Info("notification sent",
			slog.String("external_message_id", res.ExternalMessageID),
			slog.Int("attempt", attemptNumber))

	case entity.OutcomeTransientFailure:
		if d.cfg.Retry.Exhausted(attemptNumber) {
			recordExhausted(string(n.Channel))
			d.fail(ctx, n, attemptNumber, res.Detail)
			return
		}
		delay := d.cfg.Retry.NextDelay(attemptNumber)
		if res.RetryAfter > delay {
			delay = res.RetryAfter
		}
		nextRetryAt := time.Now().Add(delay)
		if err := d.repo.ScheduleRetry(ctx, n.ID, attemptNumber, nextRetryAt, res.Detail); err != nil {
			logger.Error("schedule retry", slog.Any("error", err))
			return
		}
		d.queue.Push(Item{NotificationID: n.ID, Channel: n.Channel, ReadyAt: nextRetryAt})
		recordRetryScheduled(string(n.Channel))
		d.bus.Publish(events.Event{
			Type:           events.TypeRetryScheduled,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(n.Channel),
			Provider:       res.Provider,
			Attempt:        attemptNumber,
			Detail:         res.Detail,
		})
		logger.Warn("delivery failed, retry scheduled",
			slog.Int("attempt", attemptNumber),
			slog.Duration("delay", delay),
			slog.String("error", res.Detail))

	case entity.OutcomePermanentFailure:
		d.fail(ctx, n, attemptNumber, res.Detail)
		if res.InvalidRecipient {
			if err := d.prefs.DisableChannel(ctx, n.UserID, n.Channel); err != nil {
				logger.Error("disable channel", slog.Any("error", err))
			} else {
				recordChannelDisabled(string(n.Channel))
				d.bus.Publish(events.Event{
					Type:           events.TypeChannelDisabled,
					NotificationID: n.ID,
					UserID:         n.UserID,
					Channel:        string(n.Channel),
					Provider:       res.Provider,
					Detail:         "recipient address invalid",
				})
				logger.Warn("channel disabled after invalid recipient")
			}
		}
	}
}

// fail marks the notification FAILED, persisting the attempt that ended it,
// and publishes the terminal event.
func (d *Dispatcher) fail(ctx context.Context, n *entity.Notification, attempts int, detail string) {
	if err := d.repo.MarkFailed(ctx, n.ID, attempts, detail); err != nil {
		d.logger.Error("mark failed",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
		return
	}
	d.bus.Publish(events.Event{
		Type:           events.TypeFailed,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        string(n.Channel),
		Detail:         detail,
	})
}

// putBack moves a claimed notification back to QUEUED without consuming an
// attempt, then re-buffers it.
func (d *Dispatcher) putBack(_ context.Context, n *entity.Notification, delay time.Duration, reason string) {
	// Detached context: putBack also runs during shutdown, after the worker
	// context is already cancelled.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	readyAt := time.Now().Add(delay)
	if err := d.repo.ScheduleRetry(persistCtx, n.ID, n.Attempts, readyAt, reason); err != nil {
		d.logger.Error("defer notification",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
		return
	}
	d.queue.Push(Item{NotificationID: n.ID, Channel: n.Channel, ReadyAt: readyAt})
}

// requeueLater re-buffers an unclaimed item after an infrastructure error.
func (d *Dispatcher) requeueLater(item Item, delay time.Duration) {
	item.ReadyAt = time.Now().Add(delay)
	d.queue.Push(item)
}

func (d *Dispatcher) breakerFor(providerName string) *circuitbreaker.CircuitBreaker {
	d.breakerMu.Lock()
	defer d.breakerMu.Unlock()
	if b, ok := d.breakers[providerName]; ok {
		return b
	}
	b := circuitbreaker.New(circuitbreaker.ProviderConfig(providerName))
	d.breakers[providerName] = b
	return b
}

// BreakerStates reports each provider breaker's state for health output.
func (d *Dispatcher) BreakerStates() map[string]string {
	d.breakerMu.Lock()
	defer d.breakerMu.Unlock()
	states := make(map[string]string, len(d.breakers))
	for name, b := range d.breakers {
		states[name] = b.State().String()
	}
	return states
}
