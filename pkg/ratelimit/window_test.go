package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a controllable time for window math.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestWindow(t *testing.T) (*SlidingWindowAlgorithm, *InMemoryRateLimitStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewSlidingWindowAlgorithm(clock), NewInMemoryRateLimitStore(InMemoryStoreConfig{MaxKeys: 100}), clock
}

func TestSlidingWindow_AllowsUnderLimit(t *testing.T) {
	algo, store, _ := newTestWindow(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := algo.IsAllowed(ctx, "10.0.0.1", store, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 2-i, decision.Remaining)
	}
}

func TestSlidingWindow_DeniesOverLimit(t *testing.T) {
	algo, store, _ := newTestWindow(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := algo.IsAllowed(ctx, "10.0.0.1", store, 2, time.Minute)
		require.NoError(t, err)
	}

	decision, err := algo.IsAllowed(ctx, "10.0.0.1", store, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(60), decision.RetryAfterSeconds())
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	algo, store, clock := newTestWindow(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := algo.IsAllowed(ctx, "10.0.0.1", store, 2, time.Minute)
		require.NoError(t, err)
	}

	// The earlier requests drop out once the window moves past them.
	clock.Advance(61 * time.Second)
	decision, err := algo.IsAllowed(ctx, "10.0.0.1", store, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	algo, store, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := algo.IsAllowed(ctx, "10.0.0.1", store, 1, time.Minute)
	require.NoError(t, err)

	denied, err := algo.IsAllowed(ctx, "10.0.0.1", store, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	other, err := algo.IsAllowed(ctx, "10.0.0.2", store, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestSlidingWindow_ClockRegressionDoesNotReopenWindow(t *testing.T) {
	algo, store, clock := newTestWindow(t)
	ctx := context.Background()

	_, err := algo.IsAllowed(ctx, "10.0.0.1", store, 1, time.Minute)
	require.NoError(t, err)

	// The clock stepping backwards must not push earlier requests out of
	// the window.
	clock.Advance(-2 * time.Minute)
	decision, err := algo.IsAllowed(ctx, "10.0.0.1", store, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestSlidingWindow_PruneTracking(t *testing.T) {
	algo, store, clock := newTestWindow(t)
	ctx := context.Background()

	_, err := algo.IsAllowed(ctx, "10.0.0.1", store, 5, time.Minute)
	require.NoError(t, err)
	_, err = algo.IsAllowed(ctx, "10.0.0.2", store, 5, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, algo.PruneTracking(time.Hour))
	assert.Equal(t, 0, algo.PruneTracking(time.Hour))
}

func TestSlidingWindow_NonAtomicStoreFallback(t *testing.T) {
	algo, _, _ := newTestWindow(t)
	ctx := context.Background()
	store := &plainStore{inner: NewInMemoryRateLimitStore(InMemoryStoreConfig{MaxKeys: 10})}

	first, err := algo.IsAllowed(ctx, "k", store, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := algo.IsAllowed(ctx, "k", store, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, second.Allowed)
}

// plainStore hides the atomic method so the fallback path gets exercised.
type plainStore struct {
	inner *InMemoryRateLimitStore
}

func (s *plainStore) AddRequest(ctx context.Context, key string, ts time.Time) error {
	return s.inner.AddRequest(ctx, key, ts)
}

func (s *plainStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	return s.inner.GetRequestCount(ctx, key, cutoff)
}

func (s *plainStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	return s.inner.Cleanup(ctx, cutoff)
}

func (s *plainStore) KeyCount(ctx context.Context) (int, error) {
	return s.inner.KeyCount(ctx)
}

func (s *plainStore) MemoryUsage(ctx context.Context) (int64, error) {
	return s.inner.MemoryUsage(ctx)
}
