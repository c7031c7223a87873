package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/hop/internal/logger"
)

const (
	// DefaultSweepInterval is used when the sweeper is enabled without an interval.
	DefaultSweepInterval = 5 * time.Minute
)

// ExpiredSweeper writes expiry back to storage.
// *shortener.Lifecycle satisfies it.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically flags links whose expires_at has passed.
// Redirects never depend on it: expiry is evaluated on read, the sweeper only
// keeps the stored flag and the list filters honest.
type ExpirySweeper struct {
	target   ExpiredSweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
	done     chan struct{}
}

// NewExpirySweeper creates a sweeper running every interval.
func NewExpirySweeper(target ExpiredSweeper, log logger.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &ExpirySweeper{
		target:   target,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop or ctx.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial expiry sweep failed", logger.Error(err))
	}

	s.started = true
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("expiry sweep failed", logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("expiry sweeper started", logger.Duration("interval", s.interval))
}

// Stop ends the loop and waits for an in-flight sweep. Safe to call twice,
// and before Start.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.done
	}
}

// Sweep runs a single pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("expiry sweep completed",
			logger.Int64("expired", n),
			logger.Duration("took", time.Since(start)))
	} else {
		s.logger.Debug("no links to expire")
	}
	return n, nil
}
