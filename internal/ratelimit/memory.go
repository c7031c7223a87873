package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig tunes the in-process counter store.
type MemoryConfig struct {
	MaxEntries    int           // sweep early once this many keys are tracked (0 = unbounded)
	SweepInterval time.Duration // how often expired windows are dropped
}

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in a map guarded by a mutex.
// Limits are per process; use the Redis store to share them across replicas.
type MemoryStore struct {
	cfg       MemoryConfig
	now       func() time.Time
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

// NewMemoryStore creates a store. now may be nil (time.Now).
func NewMemoryStore(cfg MemoryConfig, now func() time.Time) *MemoryStore {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		cfg:       cfg,
		now:       now,
		windows:   make(map[string]*window, 1024),
		lastSweep: now(),
	}
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.cfg.SweepInterval ||
		(s.cfg.MaxEntries > 0 && len(s.windows) >= s.cfg.MaxEntries) {
		s.sweepLocked(now)
	}

	w := s.windows[key]
	if w == nil || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.expiresAt.Sub(now), nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}
