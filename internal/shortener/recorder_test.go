package shortener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
)

// gatedStore blocks click inserts until the gate is opened.
type gatedStore struct {
	domain.LinkStore
	gate     chan struct{}
	inserted atomic.Int64
	fail     bool
}

func (s *gatedStore) InsertClickEvent(ctx context.Context, e *domain.ClickEvent) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.fail {
		return domain.Unavailable("insert click", errors.New("down"))
	}
	s.inserted.Add(1)
	return nil
}

func TestRecordSynchronous(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	link := domain.NewLink("abc123", "https://example.com", false, nil, time.Now())
	_ = store.InsertLink(ctx, link)

	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{})
	if err := rec.Record(ctx, link.ID, time.Now(), "203.0.113.7", "curl/8"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if n, _ := store.CountClicksForLink(ctx, link.ID); n != 1 {
		t.Errorf("clicks = %d, want 1", n)
	}
}

func TestRecordFailureIsTyped(t *testing.T) {
	rec := NewRecorder(&gatedStore{fail: true}, logger.NewNop(), nil, RecorderConfig{})
	err := rec.Record(context.Background(), domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Record() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	store := &gatedStore{gate: make(chan struct{})}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 1, QueueSize: 2})
	e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")

	// Not started: the queue fills and further events are dropped.
	if !rec.Submit(e) || !rec.Submit(e) {
		t.Fatal("first two submits should be queued")
	}
	if rec.Submit(e) {
		t.Error("third submit should be dropped")
	}
	if rec.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", rec.Pending())
	}
}

func TestSubmitDoesNotWaitForStorage(t *testing.T) {
	store := &gatedStore{gate: make(chan struct{})}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 1, QueueSize: 8, WriteTimeout: time.Second})
	rec.Start(context.Background())
	e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 4; i++ {
			rec.Submit(e)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a stalled store")
	}

	close(store.gate)
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := store.inserted.Load(); got != 4 {
		t.Errorf("inserted = %d, want 4 after drain", got)
	}
}

func TestStopDrainsAndRefuses(t *testing.T) {
	store := &gatedStore{}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 3, QueueSize: 64})
	e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")

	for i := 0; i < 20; i++ {
		rec.Submit(e)
	}
	rec.Start(context.Background())
	rec.Start(context.Background())

	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := store.inserted.Load(); got != 20 {
		t.Errorf("inserted = %d, want 20", got)
	}
	if rec.Submit(e) {
		t.Error("Submit after Stop should be refused")
	}
	// Stop is idempotent.
	if err := rec.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWorkerFailuresAreSwallowed(t *testing.T) {
	store := &gatedStore{fail: true}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 2})

	var wg sync.WaitGroup
	rec.Start(context.Background())
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Submit(domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", ""))
		}()
	}
	wg.Wait()

	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if store.inserted.Load() != 0 {
		t.Error("failing store should insert nothing")
	}
}

func TestSubmitRacingStopLosesNothingAccepted(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := &gatedStore{}
		rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 2, QueueSize: 256})
		rec.Start(context.Background())
		e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")

		var accepted atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if rec.Submit(e) {
						accepted.Add(1)
					}
				}
			}()
		}

		if err := rec.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		wg.Wait()

		if got := rec.Pending(); got != 0 {
			t.Fatalf("round %d: Pending() = %d after Stop, want 0", round, got)
		}
		if got, want := store.inserted.Load(), accepted.Load(); got != want {
			t.Fatalf("round %d: inserted = %d, accepted = %d", round, got, want)
		}
	}
}

func TestStopWithoutStartDiscardsQueue(t *testing.T) {
	store := &gatedStore{}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 1, QueueSize: 4})
	e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")

	rec.Submit(e)
	rec.Submit(e)
	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := rec.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
	if store.inserted.Load() != 0 {
		t.Error("nothing should be written without workers")
	}
}

func TestCancelledWorkersRefuseNewEvents(t *testing.T) {
	store := &gatedStore{}
	rec := NewRecorder(store, logger.NewNop(), nil, RecorderConfig{Workers: 2, QueueSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	e := domain.NewClickEvent(domain.NewLink("abc", "https://x.io", false, nil, time.Now()).ID, time.Now(), "", "")
	for rec.Submit(e) {
		if time.Now().After(deadline) {
			t.Fatal("Submit still accepted after workers were cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := rec.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}
