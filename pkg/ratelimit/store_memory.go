package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore keeps request timestamps in process memory. Capacity
// is bounded by MaxKeys; when full, the least recently touched keys are
// evicted so a flood of unique client IPs cannot exhaust memory.
//
// State is per process. Run the Redis store instead when several API
// replicas must share limits.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	maxKeys int
	metrics RateLimitMetrics
}

// keyEntry is the LRU element payload: one key and its timestamps.
type keyEntry struct {
	key        string
	timestamps []time.Time
}

// InMemoryStoreConfig configures the in-memory store.
type InMemoryStoreConfig struct {
	// MaxKeys caps the number of tracked keys. Default 10000.
	MaxKeys int

	// Metrics receives eviction counts. Optional.
	Metrics RateLimitMetrics
}

func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}
	return &InMemoryRateLimitStore{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxKeys: config.MaxKeys,
		metrics: config.Metrics,
	}
}

// AddRequest records one request timestamp, evicting cold keys if the store
// is at capacity and the key is new.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(key, timestamp)
	return nil
}

// GetRequestCount counts requests for the key newer than the cutoff.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countAfter(key, cutoff), nil
}

// CheckAndAddRequest implements AtomicRateLimitStore: the count and the add
// happen under one lock, so concurrent requests cannot both slip under the
// limit.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp, cutoff time.Time, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.countAfter(key, cutoff)
	if count >= limit {
		return false, count, nil
	}
	s.add(key, timestamp)
	return true, count + 1, nil
}

// Cleanup drops timestamps older than the cutoff and removes keys left empty.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, elem := range s.entries {
		entry := elem.Value.(*keyEntry)
		kept := entry.timestamps[:0]
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			s.lru.Remove(elem)
			delete(s.entries, key)
			continue
		}
		entry.timestamps = kept
	}
	return nil
}

// KeyCount reports the number of tracked keys.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// MemoryUsage estimates the bytes held by the store for health reporting.
func (s *InMemoryRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Rough per-entry accounting: map slot + list element + entry header,
	// then 24 bytes per time.Time.
	const perKey = 160
	const perTimestamp = 24

	total := int64(len(s.entries)) * perKey
	for _, elem := range s.entries {
		total += int64(len(elem.Value.(*keyEntry).timestamps)) * perTimestamp
	}
	return total, nil
}

// add records a timestamp for the key and marks it most recently used.
// Caller holds the lock.
func (s *InMemoryRateLimitStore) add(key string, timestamp time.Time) {
	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*keyEntry)
		entry.timestamps = append(entry.timestamps, timestamp)
		s.lru.MoveToFront(elem)
		return
	}

	if len(s.entries) >= s.maxKeys {
		s.evict()
	}
	elem := s.lru.PushFront(&keyEntry{key: key, timestamps: []time.Time{timestamp}})
	s.entries[key] = elem
}

// countAfter counts the key's timestamps newer than the cutoff.
// Caller holds the lock.
func (s *InMemoryRateLimitStore) countAfter(key string, cutoff time.Time) int {
	elem, ok := s.entries[key]
	if !ok {
		return 0
	}
	count := 0
	for _, ts := range elem.Value.(*keyEntry).timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// evict drops the coldest tenth of the keys. Evicting a batch instead of a
// single key keeps a full store from evicting on every new key.
// Caller holds the lock.
func (s *InMemoryRateLimitStore) evict() {
	target := s.maxKeys / 10
	if target < 1 {
		target = 1
	}
	evicted := 0
	for evicted < target {
		back := s.lru.Back()
		if back == nil {
			break
		}
		s.lru.Remove(back)
		delete(s.entries, back.Value.(*keyEntry).key)
		evicted++
	}
	if evicted > 0 {
		s.metrics.RecordEviction("store", evicted)
	}
}
