// Package ratelimit admits or rejects requests per client key using fixed
// windows. Fixed-window counting costs O(1) memory and time per client per
// window; the price is up to 2x burst across a window boundary, accepted for
// the credential-stuffing abuse model this guards.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Result is the outcome of an admission check. Rejection is a result, not an
// error: callers translate it to a throttling response, never to an
// authentication failure.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// BucketStore counts requests per key inside fixed windows. Implementations
// must support concurrent read-modify-write per key without serializing
// unrelated keys behind one lock.
type BucketStore interface {
	// Incr advances the counter for key in the current window and reports
	// the count after the increment plus when the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Limiter applies one limit/window policy over a BucketStore.
type Limiter struct {
	store  BucketStore
	limit  int
	window time.Duration
	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger attaches a logger for rejection events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// NewLimiter builds a limiter admitting up to limit requests per window for
// each key.
func NewLimiter(store BucketStore, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{store: store, limit: limit, window: window}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records one request for key and reports whether it is within the
// limit. A store failure admits the request: losing rate protection briefly
// is better than locking every client out.
func (l *Limiter) Admit(ctx context.Context, key string) Result {
	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "rate limit store unavailable, admitting", "error", err)
		}
		// The count is unknown, so report the full budget rather than a
		// contradictory allowed-but-exhausted result.
		return Result{Allowed: true, Remaining: l.limit, ResetAt: time.Now().Add(l.window)}
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	allowed := count <= l.limit
	if !allowed && l.logger != nil {
		l.logger.InfoContext(ctx, "rate limit exceeded",
			"key", key,
			"count", count,
			"limit", l.limit,
			"log_type", "audit",
		)
	}
	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}
