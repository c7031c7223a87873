package shortener

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
)

// Lifecycle owns the operator transitions of a link.
//
//	Active <-> Disabled   (Disable / Enable, idempotent)
//	Active  -> Expired    (time based, irreversible)
//	any     -> deleted    (Delete, cascades to clicks)
//
// Expired is never stored as the source of truth: EffectiveStatus derives it
// from ExpiresAt, and SweepExpired only writes it back.
type Lifecycle struct {
	store   domain.LinkStore
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

func NewLifecycle(store domain.LinkStore, log logger.Logger, m *metrics.Metrics, opts ...Option) *Lifecycle {
	o := buildOptions(opts)
	return &Lifecycle{
		store:   store,
		log:     log,
		metrics: m,
		now:     o.now,
		timeout: o.storageTimeout,
	}
}

// Disable soft-disables a link. ExpiresAt and clicks are untouched.
func (l *Lifecycle) Disable(ctx context.Context, code string) (*domain.Link, error) {
	return l.setActive(ctx, code, false)
}

// Enable re-activates a disabled link.
// An expired link stays expired: the flag is written but EffectiveStatus
// still reports StatusExpired.
func (l *Lifecycle) Enable(ctx context.Context, code string) (*domain.Link, error) {
	return l.setActive(ctx, code, true)
}

func (l *Lifecycle) setActive(ctx context.Context, code string, active bool) (*domain.Link, error) {
	if !domain.IsValidCode(code) {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := withStorageTimeout(ctx, l.timeout)
	defer cancel()

	link, err := l.store.UpdateLinkStatus(ctx, code, active, l.now())
	if err != nil {
		return nil, storageErr("update link status", err)
	}

	l.log.Info("link status changed",
		logger.String("code", code),
		logger.Bool("active", active),
		logger.String("status", string(domain.EffectiveStatus(link, l.now()))),
	)
	return link, nil
}

// Delete removes the link and every click event it owns.
func (l *Lifecycle) Delete(ctx context.Context, code string) error {
	if !domain.IsValidCode(code) {
		return domain.ErrNotFound
	}

	ctx, cancel := withStorageTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.DeleteLinkCascade(ctx, code); err != nil {
		return storageErr("delete link", err)
	}

	l.log.Info("link deleted", logger.String("code", code))
	return nil
}

// SweepExpired flags every link whose expiry has passed. Running it twice is
// a no-op the second time.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withStorageTimeout(ctx, l.timeout)
	defer cancel()

	n, err := l.store.MarkExpired(ctx, l.now())
	if err != nil {
		return 0, storageErr("mark expired", err)
	}

	l.metrics.ExpiredSwept(n)
	if n > 0 {
		l.log.Info("expired links swept", logger.Int64("count", n))
	}
	return n, nil
}
