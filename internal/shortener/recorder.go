package shortener

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
)

const (
	DefaultClickWorkers      = 4
	DefaultClickQueueSize    = 1024
	DefaultClickWriteTimeout = 2 * time.Second
)

// RecorderConfig sizes the background click pipeline.
type RecorderConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// Recorder appends click events off the redirect path.
//
// Submit never blocks: events go into a bounded queue drained by a fixed
// pool of workers, and a full queue drops the event. Failures are logged and
// counted, never returned to the redirect caller.
type Recorder struct {
	store   domain.LinkStore
	log     logger.Logger
	metrics *metrics.Metrics

	workers      int
	writeTimeout time.Duration

	queue    chan *domain.ClickEvent
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  sync.Once
	stopOnce sync.Once

	// intake guards stopped. Submit holds it for reading across the send,
	// so no event can enter the queue once closeIntake returns.
	intake  sync.RWMutex
	stopped bool
}

func NewRecorder(store domain.LinkStore, log logger.Logger, m *metrics.Metrics, cfg RecorderConfig) *Recorder {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultClickWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultClickQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultClickWriteTimeout
	}

	return &Recorder{
		store:        store,
		log:          log,
		metrics:      m,
		workers:      cfg.Workers,
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan *domain.ClickEvent, cfg.QueueSize),
		stopCh:       make(chan struct{}),
	}
}

// Record inserts one click synchronously.
func (r *Recorder) Record(ctx context.Context, linkID uuid.UUID, clickedAt time.Time, ip, userAgent string) error {
	return r.write(ctx, domain.NewClickEvent(linkID, clickedAt, ip, userAgent))
}

// Submit enqueues an event and reports whether it was accepted.
func (r *Recorder) Submit(event *domain.ClickEvent) bool {
	r.intake.RLock()
	if r.stopped {
		r.intake.RUnlock()
		r.drop(event, "recorder stopped")
		return false
	}

	select {
	case r.queue <- event:
		r.intake.RUnlock()
		return true
	default:
		r.intake.RUnlock()
		r.drop(event, "queue full")
		return false
	}
}

// Start launches the workers. Calling it again is a no-op.
func (r *Recorder) Start(ctx context.Context) {
	r.started.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.run(ctx)
		}
		r.log.Info("click recorder started",
			logger.Int("workers", r.workers),
			logger.Int("queue_size", cap(r.queue)))
	})
}

// Stop refuses new events, lets the workers drain what is queued and waits
// for them until ctx is done.
func (r *Recorder) Stop(ctx context.Context) error {
	r.closeIntake()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Left over only when the workers never ran.
		if n := r.discardQueued("recorder stopped"); n > 0 {
			r.log.Warn("click recorder stopped with unwritten clicks", logger.Int("dropped", n))
		}
		r.log.Info("click recorder stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("click recorder stop timed out",
			logger.Int("pending", len(r.queue)))
		return ctx.Err()
	}
}

// Pending returns the number of queued events.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			// Workers never inherit the request context; the request that
			// produced the click is usually finished by now.
			_ = r.write(context.Background(), e)
		case <-r.stopCh:
			r.drain()
			return
		case <-ctx.Done():
			r.closeIntake()
			r.drain()
			return
		}
	}
}

// closeIntake refuses new events. Once it returns Submit can no longer
// enqueue, so a drain that follows sees every accepted event.
func (r *Recorder) closeIntake() {
	r.stopOnce.Do(func() {
		r.intake.Lock()
		r.stopped = true
		close(r.stopCh)
		r.intake.Unlock()
	})
}

func (r *Recorder) discardQueued(reason string) int {
	n := 0
	for {
		select {
		case e := <-r.queue:
			r.drop(e, reason)
			n++
		default:
			return n
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.queue:
			_ = r.write(context.Background(), e)
		default:
			return
		}
	}
}

func (r *Recorder) write(parent context.Context, e *domain.ClickEvent) error {
	ctx, cancel := context.WithTimeout(parent, r.writeTimeout)
	defer cancel()

	if err := r.store.InsertClickEvent(ctx, e); err != nil {
		r.metrics.ClickFailed()
		r.log.Warn("failed to record click",
			logger.String("link_id", e.LinkID.String()),
			logger.Error(err))
		return storageErr("insert click", err)
	}
	r.metrics.ClickRecorded()
	return nil
}

func (r *Recorder) drop(e *domain.ClickEvent, reason string) {
	r.metrics.ClickDropped()
	r.log.Warn("click dropped",
		logger.String("link_id", e.LinkID.String()),
		logger.String("reason", reason))
}
