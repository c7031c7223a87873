package ratelimit

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/hop/internal/logger"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// CounterStore is a keyed counter with per-key expiry.
//
// Incr adds one to key and returns the new count together with the time left
// before the key expires. The first Incr of a key starts its window.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window limiter: Limit hits per Window per identifier,
// the window starting at the identifier's first hit.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	log    logger.Logger
}

// New creates a limiter. Non-positive limit or window fall back to the
// defaults (60 per minute).
func New(store CounterStore, limit int, window time.Duration, log logger.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Limit returns the configured number of hits per window.
func (l *Limiter) Limit() int { return l.limit }

// Allow counts one hit for id.
// A failing counter store lets the request through.
func (l *Limiter) Allow(ctx context.Context, id string) Decision {
	count, ttl, err := l.store.Incr(ctx, id, l.window)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request",
			logger.String("client", id),
			logger.Error(err))
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}

	if count <= int64(l.limit) {
		return Decision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - int(count),
		}
	}

	if ttl <= 0 || ttl > l.window {
		ttl = l.window
	}
	return Decision{
		Allowed:    false,
		Limit:      l.limit,
		Remaining:  0,
		RetryAfter: ttl,
	}
}
