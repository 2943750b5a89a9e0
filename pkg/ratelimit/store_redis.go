package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore is a Redis-backed implementation of RateLimitStore.
//
// Request timestamps are kept in one sorted set per key, scored by Unix
// nanoseconds. This makes window queries a single ZCOUNT and cleanup a
// ZREMRANGEBYSCORE. The store also implements AtomicRateLimitStore using a
// Lua script so the check-and-add happens in one round trip with no TOCTOU
// window between concurrent callers.
//
// Use this store when rate limit state must be shared across multiple API
// replicas; the in-memory store is otherwise cheaper.
type RedisRateLimitStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	clock     Clock

	// seq disambiguates members added within the same nanosecond.
	seq atomic.Int64
}

// RedisStoreConfig holds configuration for RedisRateLimitStore.
type RedisStoreConfig struct {
	// KeyPrefix namespaces the sorted sets in Redis.
	// Default: "ratelimit:"
	KeyPrefix string

	// TTL is how long an idle key lives before Redis expires it. It should
	// be at least as long as the largest rate limit window in use.
	// Default: 10 minutes
	TTL time.Duration

	// Clock provides time operations for testing.
	// Default: SystemClock
	Clock Clock
}

// DefaultRedisStoreConfig returns the default configuration.
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		KeyPrefix: "ratelimit:",
		TTL:       10 * time.Minute,
		Clock:     &SystemClock{},
	}
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
// The client is owned by the caller and not closed by the store.
func NewRedisRateLimitStore(client redis.UniversalClient, config RedisStoreConfig) *RedisRateLimitStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
		clock:     config.Clock,
	}
}

func (s *RedisRateLimitStore) redisKey(key string) string {
	return s.keyPrefix + key
}

// member encodes a timestamp into a unique sorted-set member.
func (s *RedisRateLimitStore) member(timestamp time.Time) string {
	return strconv.FormatInt(timestamp.UnixNano(), 10) + ":" + strconv.FormatInt(s.seq.Add(1), 10)
}

// AddRequest records a new request timestamp for the given key.
func (s *RedisRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	rkey := s.redisKey(key)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(timestamp.UnixNano()),
		Member: s.member(timestamp),
	})
	pipe.Expire(ctx, rkey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("AddRequest: %w", err)
	}
	return nil
}

// GetRequests retrieves all request timestamps for the key after the cutoff.
func (s *RedisRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	members, err := s.client.ZRangeByScore(ctx, s.redisKey(key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("GetRequests: %w", err)
	}

	timestamps := make([]time.Time, 0, len(members))
	for _, m := range members {
		nanos := m
		if idx := strings.IndexByte(m, ':'); idx >= 0 {
			nanos = m[:idx]
		}
		n, err := strconv.ParseInt(nanos, 10, 64)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, time.Unix(0, n))
	}
	return timestamps, nil
}

// GetRequestCount returns the number of requests for the key after the cutoff.
func (s *RedisRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	count, err := s.client.ZCount(ctx, s.redisKey(key),
		"("+strconv.FormatInt(cutoff.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("GetRequestCount: %w", err)
	}
	return int(count), nil
}

// Cleanup removes request timestamps older than the cutoff from every key.
// Redis expires idle keys on its own via the TTL, so this pass only trims
// live keys and is safe to run infrequently.
func (s *RedisRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	max := strconv.FormatInt(cutoff.UnixNano(), 10)

	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Err(); err != nil {
			return fmt.Errorf("Cleanup: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("Cleanup: %w", err)
	}
	return nil
}

// KeyCount returns the number of active keys currently in storage.
func (s *RedisRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("KeyCount: %w", err)
	}
	return count, nil
}

// MemoryUsage returns an estimate of the memory used by rate limit state.
// Redis does not expose per-prefix usage cheaply, so this estimates from the
// key count and an average entry footprint.
func (s *RedisRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	count, err := s.KeyCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("MemoryUsage: %w", err)
	}
	// Rough figure: sorted set overhead plus a handful of entries per key.
	const bytesPerKey = 512
	return int64(count) * bytesPerKey, nil
}

// checkAndAddScript trims the window, checks the count, and conditionally
// adds the new entry in one atomic Redis-side evaluation.
//
// KEYS[1] = sorted set key
// ARGV[1] = cutoff (unix nanos, exclusive)
// ARGV[2] = limit
// ARGV[3] = new entry score (unix nanos)
// ARGV[4] = new entry member
// ARGV[5] = key TTL in milliseconds
//
// Returns {allowed (0/1), count after the operation}.
var checkAndAddScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
    return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`)

// CheckAndAddRequest atomically checks the rate limit and records the request
// when allowed. Implements AtomicRateLimitStore.
func (s *RedisRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp, cutoff time.Time, limit int) (bool, int, error) {
	res, err := checkAndAddScript.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		strconv.FormatInt(cutoff.UnixNano(), 10),
		limit,
		strconv.FormatInt(timestamp.UnixNano(), 10),
		s.member(timestamp),
		s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("CheckAndAddRequest: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("CheckAndAddRequest: unexpected script result %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}
