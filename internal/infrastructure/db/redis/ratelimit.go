package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/natours/booking-api/internal/core/ports"
)

// RateLimiter is a fixed-window counter shared by every API instance.
// Key format: ratelimit:<key>:<window_start_unix>
type RateLimiter struct {
	client redis.Cmdable
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per key within each window.
func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, max: limit, window: window, now: time.Now}
}

// Allow counts one request for key.
func (l *RateLimiter) Allow(ctx context.Context, key string) (ports.Quota, error) {
	now := l.now()
	start := now.Truncate(l.window)
	reset := start.Add(l.window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, reset.Sub(now))
	if _, err := pipe.Exec(ctx); err != nil {
		return ports.Quota{}, fmt.Errorf("rate limit: %w", err)
	}

	count := int(incr.Val())
	return ports.Quota{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: max(l.max-count, 0),
		Reset:     reset,
	}, nil
}
