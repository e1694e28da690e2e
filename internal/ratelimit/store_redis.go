package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:bucket:"

// RedisBucketStore is the BucketStore for multi-instance deployments where
// every instance must see the same counters. Each key's window lives as one
// Redis counter whose TTL doubles as the window boundary.
type RedisBucketStore struct {
	client *redis.Client
}

// NewRedisBucketStore wraps an existing client.
func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Incr implements BucketStore. INCR and the first-request EXPIRE run in one
// pipeline so the window TTL is set atomically with the counter's birth.
func (s *RedisBucketStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	rkey := redisKeyPrefix + key

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rkey)
		pipe.ExpireNX(ctx, rkey, window)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr %q: %w", key, err)
	}

	ttl, err := s.client.TTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(incr.Val()), time.Now().Add(ttl), nil
}
