package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/shortener"
)

// Result summarizes one seeding run.
type Result struct {
	Links   int
	Clicks  int
	Skipped int
}

// Seeder inserts seed links and their backdated clicks through a LinkStore.
type Seeder struct {
	store     domain.LinkStore
	generator *shortener.Generator
	log       logger.Logger
	now       func() time.Time
}

// NewSeeder creates a seeder. now may be nil.
func NewSeeder(store domain.LinkStore, gen *shortener.Generator, log logger.Logger, now func() time.Time) *Seeder {
	if now == nil {
		now = time.Now
	}
	return &Seeder{store: store, generator: gen, log: log, now: now}
}

// Apply inserts every link of file. Links whose code already exists are
// skipped, so running the same file twice only adds what is missing.
func (s *Seeder) Apply(ctx context.Context, file *File) (Result, error) {
	var res Result
	now := s.now().UTC()

	for i, entry := range file.Links {
		link, err := s.buildLink(entry, now)
		if err != nil {
			return res, fmt.Errorf("link #%d: %w", i+1, err)
		}

		_, err = s.generator.Claim(ctx, entry.Code, func(ctx context.Context, code string) error {
			link.Code = code
			return s.store.InsertLink(ctx, link)
		})
		if errors.Is(err, domain.ErrCodeConflict) && entry.Code != "" {
			s.log.Debug("seed link already present", logger.String("code", entry.Code))
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("link #%d (%s): %w", i+1, entry.Destination, err)
		}
		res.Links++

		n, err := s.insertClicks(ctx, link, entry.Clicks, now)
		res.Clicks += n
		if err != nil {
			return res, fmt.Errorf("clicks for %s: %w", link.Code, err)
		}

		s.log.Debug("seeded link",
			logger.String("code", link.Code),
			logger.String("destination", link.Destination),
			logger.Int("clicks", n))
	}

	s.log.Info("seed applied",
		logger.Int("links", res.Links),
		logger.Int("clicks", res.Clicks),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

func (s *Seeder) buildLink(entry LinkEntry, now time.Time) (*domain.Link, error) {
	dest, err := domain.NormalizeDestination(entry.Destination)
	if err != nil {
		return nil, err
	}
	if entry.CreatedDaysAgo < 0 {
		return nil, fmt.Errorf("%w: created_days_ago must be >= 0", domain.ErrInvalidInput)
	}
	if entry.Clicks < 0 {
		return nil, fmt.Errorf("%w: clicks must be >= 0", domain.ErrInvalidInput)
	}

	created := now.AddDate(0, 0, -entry.CreatedDaysAgo)
	var expires *time.Time
	if entry.ExpiresIn != 0 {
		t := now.Add(entry.ExpiresIn)
		expires = &t
	}

	link := domain.NewLink(entry.Code, dest, entry.Code != "", expires, created)
	if entry.Active != nil {
		link.IsActive = *entry.Active
	}
	return link, nil
}

// insertClicks spreads n events evenly over [created, now).
func (s *Seeder) insertClicks(ctx context.Context, link *domain.Link, n int, now time.Time) (int, error) {
	if n == 0 {
		return 0, nil
	}
	span := now.Sub(link.CreatedAt)
	step := span / time.Duration(n)

	for i := 0; i < n; i++ {
		at := link.CreatedAt.Add(step * time.Duration(i))
		ev := domain.NewClickEvent(link.ID, at, "127.0.0.1", "hop-seed")
		if err := s.store.InsertClickEvent(ctx, ev); err != nil {
			return i, err
		}
	}
	return n, nil
}
