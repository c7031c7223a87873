package shortener

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/ratelimit"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// blockingStore never answers FindLinkByCode / InsertLink until ctx is done.
type blockingStore struct {
	domain.LinkStore
}

func (blockingStore) FindLinkByCode(ctx context.Context, _ string) (*domain.Link, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) InsertLink(ctx context.Context, _ *domain.Link) error {
	<-ctx.Done()
	return ctx.Err()
}

// syncClicks records synchronously so tests can assert without waiting.
type syncClicks struct {
	rec *Recorder
}

func (s syncClicks) Submit(e *domain.ClickEvent) bool {
	return s.rec.write(context.Background(), e) == nil
}

type fixture struct {
	store   *memory.Store
	clock   *testClock
	service *Service
}

func newFixture(limit int, cfg ServiceConfig) *fixture {
	store := memory.New()
	clock := newTestClock()
	log := logger.NewNop()
	opts := []Option{WithClock(clock.Now), WithStorageTimeout(time.Second)}

	var limiter RateLimiter
	if limit > 0 {
		limiter = ratelimit.New(ratelimit.NewMemoryStore(ratelimit.MemoryConfig{}, clock.Now), limit, time.Minute, log)
	}

	rec := NewRecorder(store, log, nil, RecorderConfig{})
	svc := NewService(Components{
		Store:     store,
		Generator: NewGenerator(store, domain.NewReservedCodes()),
		Lifecycle: NewLifecycle(store, log, nil, opts...),
		Resolver:  NewResolver(store, nil, opts...),
		Clicks:    syncClicks{rec: rec},
		Limiter:   limiter,
	}, cfg, log, nil, opts...)

	return &fixture{store: store, clock: clock, service: svc}
}
