package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
)

func TestQueue_PopOrdersByReadyAt(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	q.Push(Item{NotificationID: "later", Channel: entity.ChannelEmail, ReadyAt: now.Add(-1 * time.Second)})
	q.Push(Item{NotificationID: "earlier", Channel: entity.ChannelEmail, ReadyAt: now.Add(-2 * time.Second)})

	ctx := context.Background()

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "earlier", first.NotificationID)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", second.NotificationID)
}

func TestQueue_SameReadyAtKeepsInsertionOrder(t *testing.T) {
	q := NewQueue()
	ready := time.Now().Add(-time.Second)

	for _, id := range []string{"a", "b", "c"} {
		q.Push(Item{NotificationID: id, ReadyAt: ready})
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		item, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, item.NotificationID)
	}
}

func TestQueue_BlocksUntilReady(t *testing.T) {
	q := NewQueue()
	q.Push(Item{NotificationID: "retry", ReadyAt: time.Now().Add(80 * time.Millisecond)})

	start := time.Now()
	item, err := q.Pop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "retry", item.NotificationID)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond,
		"Pop should not release the item before its ready time")
}

func TestQueue_PopContextCancelled(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue()
	now := time.Now().Add(-time.Second)

	q.Push(Item{NotificationID: "cancelled", ReadyAt: now})
	q.Push(Item{NotificationID: "kept", ReadyAt: now.Add(time.Millisecond)})

	q.Remove("cancelled")
	assert.Equal(t, 1, q.Len())

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", item.NotificationID)
}

func TestQueue_PushAfterRemoveReenables(t *testing.T) {
	q := NewQueue()
	q.Remove("n-1")
	q.Push(Item{NotificationID: "n-1", ReadyAt: time.Now().Add(-time.Second)})

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n-1", item.NotificationID)
}

func TestQueue_WakesOnPushWhileWaiting(t *testing.T) {
	q := NewQueue()

	done := make(chan Item, 1)
	go func() {
		item, err := q.Pop(context.Background())
		if err == nil {
			done <- item
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(Item{NotificationID: "fresh", ReadyAt: time.Now()})

	select {
	case item := <-done:
		assert.Equal(t, "fresh", item.NotificationID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}
