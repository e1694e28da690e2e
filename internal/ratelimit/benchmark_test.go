package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkIncr measures single-threaded throughput on one hot key.
func BenchmarkIncr(b *testing.B) {
	store := NewMemoryBucketStore()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = store.Incr(ctx, "bench-key", time.Minute)
	}
}

// BenchmarkIncr_Parallel measures contention on a single shared key.
func BenchmarkIncr_Parallel(b *testing.B) {
	store := NewMemoryBucketStore()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = store.Incr(ctx, "bench-key", time.Minute)
		}
	})
}

// BenchmarkIncr_HighCardinality_Parallel measures throughput across many
// client keys, where sharding keeps goroutines off each other's locks.
func BenchmarkIncr_HighCardinality_Parallel(b *testing.B) {
	store := NewMemoryBucketStore()
	ctx := context.Background()
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := fmt.Sprintf("ip:10.0.%d.%d", (i/256)%256, i%256)
			_, _, _ = store.Incr(ctx, key, time.Minute)
		}
	})
}
