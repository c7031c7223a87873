package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// LinkFilter narrows ListLinks. A nil Active lists every link.
type LinkFilter struct {
	Active *bool
}

// PageRequest is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page. It saturates at math.MaxInt
// instead of overflowing, so a huge page number reads as past the end.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// LinkPage is one page of links ordered by created_at DESC, code ASC.
type LinkPage struct {
	Links []*Link `json:"links"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// LinkStore is the durable storage the core depends on.
//
// Implementations must translate driver errors: a unique violation on code
// into ErrCodeConflict, a missing row into ErrNotFound, and every other
// failure into an error wrapping ErrStorageUnavailable. Implementations are
// shared by all requests and must be safe for concurrent use.
type LinkStore interface {
	// InsertLink persists a new link. The code uniqueness constraint is the
	// only arbiter of concurrent claims on the same code.
	InsertLink(ctx context.Context, link *Link) error

	// FindLinkByCode is the redirect hot path: a single point lookup on code.
	FindLinkByCode(ctx context.Context, code string) (*Link, error)

	// FindActiveLinkByDestination returns a generated, active, unexpired link
	// for destination, or ErrNotFound.
	FindActiveLinkByDestination(ctx context.Context, destination string, now time.Time) (*Link, error)

	// UpdateLinkStatus sets is_active and bumps updated_at.
	UpdateLinkStatus(ctx context.Context, code string, active bool, now time.Time) (*Link, error)

	// DeleteLinkCascade removes the link and all of its click events.
	DeleteLinkCascade(ctx context.Context, code string) error

	ListLinks(ctx context.Context, filter LinkFilter, page PageRequest) (*LinkPage, error)

	InsertClickEvent(ctx context.Context, event *ClickEvent) error
	CountClicksForLink(ctx context.Context, linkID uuid.UUID) (int64, error)

	// ListClickEvents returns at most limit events, most recent first.
	ListClickEvents(ctx context.Context, linkID uuid.UUID, limit int) ([]*ClickEvent, error)

	// AggregateClicksByDay returns sparse UTC day buckets at or after since.
	AggregateClicksByDay(ctx context.Context, linkID uuid.UUID, since time.Time) ([]DailyCount, error)

	// MarkExpired flags links whose expires_at <= now and that are not yet
	// flagged. It returns the number of rows changed.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
}
