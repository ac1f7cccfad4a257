package cache

import (
	"context"
	"fmt"
	"time"
)

// Limiter enforces a fixed quota per identifier and time bucket.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// bucket aligns a moment to its window so every replica counting against
// the same redis agrees on the counter key. A new window starts a new
// bucket, which resets the quota.
func bucket(now time.Time, window time.Duration) int64 {
	return now.Unix() / int64(window.Seconds())
}

// Allow counts requests in the bucket the current time falls into. The
// first hit sets the bucket's expiry to the window length, so stale
// buckets clean themselves up. An unreachable backend returns an error;
// callers must treat that as a deny.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s:%d", key, bucket(time.Now(), window))

	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return n <= int64(limit), nil
}
