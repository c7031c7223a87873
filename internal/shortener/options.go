package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
)

// DefaultStorageTimeout bounds a single storage call.
const DefaultStorageTimeout = 2 * time.Second

type options struct {
	now            func() time.Time
	storageTimeout time.Duration
}

// Option is shared by every component of the package.
type Option func(*options)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStorageTimeout bounds each storage call. Zero disables the bound.
func WithStorageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.storageTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:            time.Now,
		storageTimeout: DefaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func withStorageTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storageErr keeps the typed store outcomes. Anything else, including our
// own deadline, becomes ErrStorageUnavailable and is never read as NotFound.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrCodeConflict),
		errors.Is(err, domain.ErrStorageUnavailable):
		return err
	}
	return domain.Unavailable(op, err)
}
