package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/metrics"
)

// OutcomeKind is the redirect decision.
type OutcomeKind int

const (
	NotFound OutcomeKind = iota
	Found
	Gone
)

func (k OutcomeKind) String() string {
	switch k {
	case Found:
		return "found"
	case Gone:
		return "gone"
	default:
		return "not_found"
	}
}

// Outcome is the result of resolving a code. Link is set for Found and Gone.
type Outcome struct {
	Kind   OutcomeKind
	Link   *domain.Link
	Status domain.Status
}

// Destination is empty unless Kind is Found.
func (o Outcome) Destination() string {
	if o.Kind != Found || o.Link == nil {
		return ""
	}
	return o.Link.Destination
}

// Resolver maps a code to a redirect decision with one point lookup.
type Resolver struct {
	store   domain.LinkStore
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

func NewResolver(store domain.LinkStore, m *metrics.Metrics, opts ...Option) *Resolver {
	o := buildOptions(opts)
	return &Resolver{
		store:   store,
		metrics: m,
		now:     o.now,
		timeout: o.storageTimeout,
	}
}

// Resolve returns Found, NotFound or Gone. The only error is a storage
// failure, wrapped as domain.ErrStorageUnavailable.
func (r *Resolver) Resolve(ctx context.Context, code string) (Outcome, error) {
	start := time.Now()

	// A code that could never have been created cannot exist.
	if !domain.IsValidCode(code) {
		r.metrics.Redirect(NotFound.String(), time.Since(start))
		return Outcome{Kind: NotFound}, nil
	}

	ctx, cancel := withStorageTimeout(ctx, r.timeout)
	defer cancel()

	link, err := r.store.FindLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.metrics.Redirect(NotFound.String(), time.Since(start))
			return Outcome{Kind: NotFound}, nil
		}
		r.metrics.Redirect("error", time.Since(start))
		return Outcome{}, storageErr("find link", err)
	}

	out := Outcome{Link: link, Status: domain.EffectiveStatus(link, r.now())}
	if out.Status == domain.StatusActive {
		out.Kind = Found
	} else {
		out.Kind = Gone
	}

	r.metrics.Redirect(out.Kind.String(), time.Since(start))
	return out, nil
}
