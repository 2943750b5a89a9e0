package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"learnloop/internal/domain/entity"
	"learnloop/internal/infra/provider"
)

// Batcher coalesces bulk sends into one provider call per channel. A batch
// flushes when it reaches the configured size or when its oldest entry has
// waited the configured delay, whichever comes first.
type Batcher struct {
	d      *Dispatcher
	size   int
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	buffers map[entity.Channel]*channelBatch
	pending map[string]struct{}
}

type channelBatch struct {
	notifications []*entity.Notification
	oldest        time.Time
}

func NewBatcher(d *Dispatcher, cfg Config, logger *slog.Logger) *Batcher {
	return &Batcher{
		d:       d,
		size:    cfg.BatchSize,
		delay:   cfg.BatchDelay,
		logger:  logger,
		buffers: make(map[entity.Channel]*channelBatch),
		pending: make(map[string]struct{}),
	}
}

// Add buffers one bulk notification. Already-buffered ids are ignored so the
// dispatcher's poll loop can re-offer rows safely. A full batch flushes
// immediately on the caller's goroutine.
func (b *Batcher) Add(ctx context.Context, n *entity.Notification) {
	b.mu.Lock()
	if _, dup := b.pending[n.ID]; dup {
		b.mu.Unlock()
		return
	}
	b.pending[n.ID] = struct{}{}
	batch, ok := b.buffers[n.Channel]
	if !ok {
		batch = &channelBatch{oldest: time.Now()}
		b.buffers[n.Channel] = batch
	}
	if len(batch.notifications) == 0 {
		batch.oldest = time.Now()
	}
	batch.notifications = append(batch.notifications, n)

	var ready []*entity.Notification
	if len(batch.notifications) >= b.size {
		ready = batch.notifications
		delete(b.buffers, n.Channel)
	}
	b.mu.Unlock()

	if ready != nil {
		b.flush(ctx, n.Channel, ready)
	}
}

// Run flushes aged batches until the context ends. Remaining batches are
// flushed once on shutdown so buffered bulk sends are not stranded until the
// queue rebuild at next start.
func (b *Batcher) Run(ctx context.Context) error {
	interval := b.delay / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flushAll(context.Background())
			return ctx.Err()
		case <-ticker.C:
			b.flushAged(ctx)
		}
	}
}

func (b *Batcher) flushAged(ctx context.Context) {
	now := time.Now()

	b.mu.Lock()
	aged := make(map[entity.Channel][]*entity.Notification)
	for channel, batch := range b.buffers {
		if len(batch.notifications) > 0 && now.Sub(batch.oldest) >= b.delay {
			aged[channel] = batch.notifications
			delete(b.buffers, channel)
		}
	}
	b.mu.Unlock()

	for channel, notifications := range aged {
		b.flush(ctx, channel, notifications)
	}
}

func (b *Batcher) flushAll(ctx context.Context) {
	b.mu.Lock()
	remaining := b.buffers
	b.buffers = make(map[entity.Channel]*channelBatch)
	b.mu.Unlock()

	for channel, batch := range remaining {
		if len(batch.notifications) > 0 {
			b.flush(ctx, channel, batch.notifications)
		}
	}
}

// flush claims and delivers one channel batch through SendBulk. Outcomes are
// applied per message, so one bad recipient never blocks the rest.
func (b *Batcher) flush(ctx context.Context, channel entity.Channel, notifications []*entity.Notification) {
	b.mu.Lock()
	for _, n := range notifications {
		delete(b.pending, n.ID)
	}
	b.mu.Unlock()

	prov := b.d.provs.ForChannel(channel)
	if prov == nil {
		for _, n := range notifications {
			b.d.fail(ctx, n, n.Attempts, "no provider registered for channel")
		}
		return
	}

	claimed := make([]*entity.Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.IsExpired(time.Now()) {
			b.d.fail(ctx, n, n.Attempts, "expired before send")
			continue
		}
		ok, err := b.d.repo.ClaimForProcessing(ctx, n.ID)
		if err != nil {
			b.logger.Error("claim bulk notification",
				slog.String("notification_id", n.ID),
				slog.Any("error", err))
			continue
		}
		if ok {
			claimed = append(claimed, n)
		}
	}
	if len(claimed) == 0 {
		return
	}

	if err := b.d.pace(ctx, channel); err != nil {
		for _, n := range claimed {
			b.d.putBack(ctx, n, 0, "shutdown during bulk delivery")
		}
		return
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, b.d.cfg.ProviderTimeout)
	results, err := prov.SendBulk(callCtx, claimed)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		for _, n := range claimed {
			b.d.putBack(ctx, n, 0, "bulk delivery interrupted")
		}
		return
	}

	for i, n := range claimed {
		if i >= len(results) || results[i] == nil {
			b.d.ApplyResult(ctx, n, provider.Classify(prov.Name(), errBulkResultMissing), elapsed)
			continue
		}
		b.d.ApplyResult(ctx, n, results[i], elapsed)
	}

	b.logger.Info("bulk batch flushed",
		slog.String("channel", string(channel)),
		slog.Int("size", len(claimed)),
		slog.Duration("elapsed", elapsed))
}

// Classified as transient: the backend accepted the batch but returned fewer
// results than messages.
var errBulkResultMissing = errors.New("backend returned no result for message")
