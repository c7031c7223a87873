package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/hop/internal/domain"
)

// Store is an in-process domain.LinkStore.
// It backs tests and the "memory" driver; data does not survive a restart.
type Store struct {
	mu     sync.RWMutex
	links  map[string]*domain.Link            // code -> link
	byID   map[uuid.UUID]string               // link id -> code
	clicks map[uuid.UUID][]*domain.ClickEvent // link id -> events (append order)
}

// New creates an empty store.
func New() *Store {
	return &Store{
		links:  make(map[string]*domain.Link),
		byID:   make(map[uuid.UUID]string),
		clicks: make(map[uuid.UUID][]*domain.ClickEvent),
	}
}

// InsertLink stores a copy of link; a taken code yields ErrCodeConflict.
func (s *Store) InsertLink(ctx context.Context, link *domain.Link) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("insert link", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Code]; exists {
		return domain.ErrCodeConflict
	}
	s.links[link.Code] = cloneLink(link)
	s.byID[link.ID] = link.Code
	return nil
}

// FindLinkByCode retrieves a link by code
func (s *Store) FindLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("find link", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneLink(link), nil
}

// FindActiveLinkByDestination scans for a reusable generated link.
func (s *Store) FindActiveLinkByDestination(ctx context.Context, destination string, now time.Time) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("find link by destination", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Link
	for _, link := range s.links {
		if link.Destination != destination || link.IsCustomCode {
			continue
		}
		if domain.EffectiveStatus(link, now) != domain.StatusActive {
			continue
		}
		if best == nil || link.CreatedAt.Before(best.CreatedAt) {
			best = link
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneLink(best), nil
}

// UpdateLinkStatus sets the active flag
func (s *Store) UpdateLinkStatus(ctx context.Context, code string, active bool, now time.Time) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("update link status", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	link.IsActive = active
	link.UpdatedAt = now.UTC()
	return cloneLink(link), nil
}

// DeleteLinkCascade removes the link and its click events
func (s *Store) DeleteLinkCascade(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("delete link", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.clicks, link.ID)
	delete(s.byID, link.ID)
	delete(s.links, code)
	return nil
}

// ListLinks returns one page ordered by created_at DESC, code ASC
func (s *Store) ListLinks(ctx context.Context, filter domain.LinkFilter, page domain.PageRequest) (*domain.LinkPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("list links", err)
	}

	s.mu.RLock()
	matched := make([]*domain.Link, 0, len(s.links))
	for _, link := range s.links {
		if filter.Active != nil && link.IsActive != *filter.Active {
			continue
		}
		matched = append(matched, cloneLink(link))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Code < matched[j].Code
	})

	result := &domain.LinkPage{
		Links: []*domain.Link{},
		Total: int64(len(matched)),
		Page:  page.Page,
		Limit: page.Limit,
	}

	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return result, nil
	}
	end := len(matched)
	if page.Limit > 0 && page.Limit < end-start {
		end = start + page.Limit
	}
	result.Links = matched[start:end]
	return result, nil
}

// InsertClickEvent appends an event to an existing link
func (s *Store) InsertClickEvent(ctx context.Context, event *domain.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("insert click", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[event.LinkID]; !ok {
		// Mirrors the foreign key: the link was deleted under us.
		return domain.ErrNotFound
	}
	e := *event
	s.clicks[event.LinkID] = append(s.clicks[event.LinkID], &e)
	return nil
}

// CountClicksForLink returns the number of events for a link
func (s *Store) CountClicksForLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Unavailable("count clicks", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.clicks[linkID])), nil
}

// ListClickEvents returns the most recent events first
func (s *Store) ListClickEvents(ctx context.Context, linkID uuid.UUID, limit int) ([]*domain.ClickEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("list clicks", err)
	}

	s.mu.RLock()
	events := make([]*domain.ClickEvent, 0, len(s.clicks[linkID]))
	for _, e := range s.clicks[linkID] {
		c := *e
		events = append(events, &c)
	}
	s.mu.RUnlock()

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ClickedAt.After(events[j].ClickedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// AggregateClicksByDay buckets events by UTC day
func (s *Store) AggregateClicksByDay(ctx context.Context, linkID uuid.UUID, since time.Time) ([]domain.DailyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("aggregate clicks", err)
	}

	s.mu.RLock()
	counts := make(map[string]int64)
	for _, e := range s.clicks[linkID] {
		if e.ClickedAt.Before(since) {
			continue
		}
		counts[e.ClickedAt.UTC().Format(time.DateOnly)]++
	}
	s.mu.RUnlock()

	days := make([]domain.DailyCount, 0, len(counts))
	for day, n := range counts {
		days = append(days, domain.DailyCount{Day: day, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// MarkExpired flags expired links once
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Unavailable("mark expired", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, link := range s.links {
		if link.Expired || link.ExpiresAt == nil || link.ExpiresAt.After(now) {
			continue
		}
		link.Expired = true
		link.UpdatedAt = now.UTC()
		n++
	}
	return n, nil
}

// Ping always succeeds unless ctx is done
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

// Count returns the number of links in the store
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.links)
}

func cloneLink(l *domain.Link) *domain.Link {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

var _ domain.LinkStore = (*Store)(nil)
