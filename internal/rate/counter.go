package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Unlimited disables a counter check entirely. A check against Unlimited
// never increments, so disabled counters cannot grow without bound.
const Unlimited = -1

// Counter counts events against opaque keys within fixed windows. All
// increments are single Redis round trips, so concurrent bursts against
// one key never lose updates.
type Counter struct {
	redis redis.UniversalClient
}

// NewCounter creates a Counter backed by the given Redis client.
func NewCounter(redisClient redis.UniversalClient) *Counter {
	return &Counter{redis: redisClient}
}

// MaxReached increments the counter for key and reports whether the
// pre-increment count had already reached max. The window TTL is attached
// only when this increment created the key, anchoring the window at the
// first offense. max == Unlimited short-circuits to false without
// touching the store.
func (c *Counter) MaxReached(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	if max == Unlimited {
		return false, nil
	}

	count, err := c.Increment(ctx, key, window)
	if err != nil {
		return false, err
	}
	return count-1 >= int64(max), nil
}

// Increment atomically bumps the counter for key, attaching the window
// TTL on the first hit only, and returns the post-increment count.
func (c *Counter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// GetAttempts returns the current count for key with no side effects.
// Absent keys read as zero.
func (c *Counter) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := c.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for key. Resetting an absent key is a no-op.
func (c *Counter) Reset(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
