package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// MemoryBucketStore is the in-process BucketStore. Buckets live in a sharded
// map keyed by FNV-1a of the client key, so contention stays per shard and
// two unrelated clients never wait on the same lock.
//
// Buckets are created lazily and overwritten in place when their window
// elapses; they are never deleted, so the map grows with the number of
// distinct client keys seen. Single-instance deployments accept this; use
// RedisBucketStore where eviction matters.
type MemoryBucketStore struct {
	shards [shardCount]bucketShard
	now    func() time.Time
}

type bucketShard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count       int
	windowStart time.Time
}

// MemoryOption configures a MemoryBucketStore.
type MemoryOption func(*MemoryBucketStore)

// WithMemoryClock sets the time source for testability.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryBucketStore creates an empty sharded store.
func NewMemoryBucketStore(opts ...MemoryOption) *MemoryBucketStore {
	s := &MemoryBucketStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].buckets = make(map[string]*bucket)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements BucketStore with fixed-window semantics: the first request
// after a window elapses starts a fresh window with count 1.
func (s *MemoryBucketStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	shard := &s.shards[shardFor(key)]
	now := s.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	b := shard.buckets[key]
	if b == nil || now.Sub(b.windowStart) >= window {
		b = &bucket{count: 1, windowStart: now}
		shard.buckets[key] = b
		return 1, now.Add(window), nil
	}
	b.count++
	return b.count, b.windowStart.Add(window), nil
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % shardCount
}
