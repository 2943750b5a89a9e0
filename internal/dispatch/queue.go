package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"learnloop/internal/domain/entity"
)

// Item is one queued delivery. ReadyAt gates retries: an item with a future
// ReadyAt stays buffered until the clock reaches it.
type Item struct {
	NotificationID string
	Channel        entity.Channel
	ReadyAt        time.Time

	seq uint64
}

// Queue is the in-memory delivery buffer consumed by dispatch workers. The
// database remains the source of truth; the buffer is rebuilt from QUEUED
// rows at startup, so losing it on crash loses no notifications.
type Queue struct {
	mu       sync.Mutex
	items    itemHeap
	buffered map[string]struct{}
	removed  map[string]struct{}
	wake     chan struct{}
	nextSeq  uint64
}

func NewQueue() *Queue {
	return &Queue{
		buffered: make(map[string]struct{}),
		removed:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Push buffers an item. Ids already buffered are ignored, which lets the
// poll loop re-offer persisted rows without duplicating work. An id that was
// removed and later re-pushed becomes eligible again once its old entry has
// drained; until then the poll loop re-offers it.
func (q *Queue) Push(item Item) {
	q.mu.Lock()
	if _, dup := q.buffered[item.NotificationID]; dup {
		q.mu.Unlock()
		return
	}
	delete(q.removed, item.NotificationID)
	q.buffered[item.NotificationID] = struct{}{}
	item.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Remove drops a pending item, used when a notification is cancelled before
// a worker picks it up. Unknown ids are tolerated: the tombstone simply
// never matches.
func (q *Queue) Remove(notificationID string) {
	q.mu.Lock()
	q.removed[notificationID] = struct{}{}
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of buffered items, including not-yet-ready retries
// and excluding tombstoned ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, item := range q.items {
		if _, gone := q.removed[item.NotificationID]; !gone {
			count++
		}
	}
	return count
}

// Pop blocks until an item is ready or the context ends. Items come out in
// ReadyAt order; same-time items come out in insertion order.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		now := time.Now()
		var wait time.Duration = -1

		for q.items.Len() > 0 {
			top := q.items[0]
			if _, gone := q.removed[top.NotificationID]; gone {
				heap.Pop(&q.items)
				delete(q.removed, top.NotificationID)
				delete(q.buffered, top.NotificationID)
				continue
			}
			if !top.ReadyAt.After(now) {
				heap.Pop(&q.items)
				delete(q.buffered, top.NotificationID)
				q.mu.Unlock()
				return top, nil
			}
			wait = top.ReadyAt.Sub(now)
			break
		}
		q.mu.Unlock()

		if wait < 0 {
			select {
			case <-ctx.Done():
				return Item{}, ctx.Err()
			case <-q.wake:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Item{}, ctx.Err()
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// itemHeap orders by ReadyAt, then insertion order for stability.
type itemHeap []Item

func (h itemHeap) Len() int      { return len(h) }
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h itemHeap) Less(i, j int) bool {
	if h[i].ReadyAt.Equal(h[j].ReadyAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].ReadyAt.Before(h[j].ReadyAt)
}

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(Item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
