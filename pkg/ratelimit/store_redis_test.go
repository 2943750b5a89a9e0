package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestRedisStore connects to the Redis instance named by REDIS_ADDR and
// skips the test when none is configured. These tests exercise the real
// sorted-set commands and the check-and-add script.
func newTestRedisStore(t *testing.T) *RedisRateLimitStore {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis store tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis at %s not reachable: %v", addr, err)
	}

	cfg := DefaultRedisStoreConfig()
	cfg.KeyPrefix = fmt.Sprintf("ratelimit-test:%d:", time.Now().UnixNano())
	return NewRedisRateLimitStore(client, cfg)
}

func TestRedisStore_AddAndCount(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		if err := store.AddRequest(ctx, "client-1", now.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("AddRequest failed: %v", err)
		}
	}

	count, err := store.GetRequestCount(ctx, "client-1", now.Add(-time.Second))
	if err != nil {
		t.Fatalf("GetRequestCount failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 requests, got %d", count)
	}

	// Requests before the cutoff are excluded.
	count, err = store.GetRequestCount(ctx, "client-1", now.Add(2*time.Millisecond))
	if err != nil {
		t.Fatalf("GetRequestCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 requests after cutoff, got %d", count)
	}
}

func TestRedisStore_GetRequests(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := store.AddRequest(ctx, "client-2", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("AddRequest failed: %v", err)
		}
	}

	timestamps, err := store.GetRequests(ctx, "client-2", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("GetRequests failed: %v", err)
	}
	if len(timestamps) != 3 {
		t.Fatalf("expected 3 timestamps, got %d", len(timestamps))
	}
	for i, ts := range timestamps {
		want := now.Add(time.Duration(i) * time.Second)
		if !ts.Equal(want) {
			t.Errorf("timestamp %d: expected %v, got %v", i, want, ts)
		}
	}
}

func TestRedisStore_CheckAndAddRequest(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-time.Minute)

	const limit = 3
	for i := 0; i < limit; i++ {
		allowed, count, err := store.CheckAndAddRequest(ctx, "client-3", now, cutoff, limit)
		if err != nil {
			t.Fatalf("CheckAndAddRequest failed: %v", err)
		}
		if !allowed {
			t.Errorf("request %d: expected allowed", i)
		}
		if count != i+1 {
			t.Errorf("request %d: expected count %d, got %d", i, i+1, count)
		}
	}

	allowed, count, err := store.CheckAndAddRequest(ctx, "client-3", now, cutoff, limit)
	if err != nil {
		t.Fatalf("CheckAndAddRequest failed: %v", err)
	}
	if allowed {
		t.Error("expected request over limit to be denied")
	}
	if count != limit {
		t.Errorf("expected count %d at limit, got %d", limit, count)
	}
}

func TestRedisStore_Cleanup(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.AddRequest(ctx, "client-4", now.Add(-time.Hour)); err != nil {
		t.Fatalf("AddRequest failed: %v", err)
	}
	if err := store.AddRequest(ctx, "client-4", now); err != nil {
		t.Fatalf("AddRequest failed: %v", err)
	}

	if err := store.Cleanup(ctx, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	count, err := store.GetRequestCount(ctx, "client-4", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GetRequestCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 request after cleanup, got %d", count)
	}
}

func TestRedisStore_KeyCount(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.AddRequest(ctx, key, now); err != nil {
			t.Fatalf("AddRequest failed: %v", err)
		}
	}

	count, err := store.KeyCount(ctx)
	if err != nil {
		t.Fatalf("KeyCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 keys, got %d", count)
	}
}
