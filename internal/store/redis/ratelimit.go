package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounter is a ratelimit.CounterStore shared by every replica.
type RateCounter struct {
	client *redis.Client
}

// NewRateCounter creates a Redis counter store
func NewRateCounter(client *redis.Client) *RateCounter {
	return &RateCounter{client: client}
}

// Incr bumps the window counter and starts the window on first use.
func (r *RateCounter) Incr(ctx context.Context, id string, window time.Duration) (int64, time.Duration, error) {
	key := RateLimitKey(id)

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("rate counter incr: %w", err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// No expiry yet: this hit opened the window.
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate counter expire: %w", err)
		}
		ttl = window
	}
	return incr.Val(), ttl, nil
}
