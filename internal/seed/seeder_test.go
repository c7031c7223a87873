package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/shortener"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
)

var seedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSeeder(store *memory.Store) *Seeder {
	gen := shortener.NewGenerator(store, domain.NewReservedCodes())
	return NewSeeder(store, gen, logger.NewNop(), func() time.Time { return seedNow })
}

func boolPtr(b bool) *bool { return &b }

func TestSeederApply(t *testing.T) {
	store := memory.New()
	s := newSeeder(store)

	file := &File{Links: []LinkEntry{
		{Code: "gh-home", Destination: "https://github.com", CreatedDaysAgo: 10, Clicks: 5},
		{Destination: "https://example.com/promo", Active: boolPtr(false)},
		{Code: "old-sale", Destination: "https://example.com/sale", ExpiresIn: -24 * time.Hour},
	}}

	res, err := s.Apply(context.Background(), file)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Links != 3 || res.Clicks != 5 || res.Skipped != 0 {
		t.Errorf("Apply() = %+v, want 3 links, 5 clicks", res)
	}

	gh, err := store.FindLinkByCode(context.Background(), "gh-home")
	if err != nil {
		t.Fatalf("gh-home not seeded: %v", err)
	}
	if !gh.IsCustomCode || !gh.CreatedAt.Equal(seedNow.AddDate(0, 0, -10)) {
		t.Errorf("gh-home = %+v", gh)
	}

	events, _ := store.ListClickEvents(context.Background(), gh.ID, 0)
	if len(events) != 5 {
		t.Fatalf("clicks = %d, want 5", len(events))
	}
	for _, e := range events {
		if e.ClickedAt.Before(gh.CreatedAt) || !e.ClickedAt.Before(seedNow) {
			t.Errorf("click at %v outside [%v, %v)", e.ClickedAt, gh.CreatedAt, seedNow)
		}
	}

	old, _ := store.FindLinkByCode(context.Background(), "old-sale")
	if got := domain.EffectiveStatus(old, seedNow); got != domain.StatusExpired {
		t.Errorf("old-sale status = %s, want expired", got)
	}

	page, _ := store.ListLinks(context.Background(), domain.LinkFilter{Active: boolPtr(false)}, domain.PageRequest{Page: 1, Limit: 10})
	if page.Total != 1 || page.Links[0].IsCustomCode || len(page.Links[0].Code) != shortener.DefaultCodeLength {
		t.Errorf("disabled generated link not seeded: %+v", page)
	}
}

func TestSeederApplyTwiceSkipsExisting(t *testing.T) {
	store := memory.New()
	s := newSeeder(store)
	file := &File{Links: []LinkEntry{{Code: "go-docs", Destination: "https://go.dev/doc"}}}

	if _, err := s.Apply(context.Background(), file); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	res, err := s.Apply(context.Background(), file)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if res.Links != 0 || res.Skipped != 1 {
		t.Errorf("second Apply() = %+v, want 1 skipped", res)
	}
	if store.Count() != 1 {
		t.Errorf("store has %d links, want 1", store.Count())
	}
}

func TestSeederApplyInvalid(t *testing.T) {
	tests := []struct {
		name  string
		entry LinkEntry
		want  error
	}{
		{name: "bad destination", entry: LinkEntry{Destination: "ftp://x"}, want: domain.ErrInvalidDestination},
		{name: "short code", entry: LinkEntry{Code: "gh", Destination: "https://github.com"}, want: domain.ErrInvalidCode},
		{name: "negative clicks", entry: LinkEntry{Destination: "https://a.io", Clicks: -1}, want: domain.ErrInvalidInput},
		{name: "negative age", entry: LinkEntry{Destination: "https://a.io", CreatedDaysAgo: -2}, want: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			_, err := newSeeder(store).Apply(context.Background(), &File{Links: []LinkEntry{tt.entry}})
			if !errors.Is(err, tt.want) {
				t.Errorf("Apply() error = %v, want %v", err, tt.want)
			}
			if store.Count() != 0 {
				t.Errorf("invalid link was stored")
			}
		})
	}
}

func TestSeederReservedCodeIsSkipped(t *testing.T) {
	store := memory.New()
	res, err := newSeeder(store).Apply(context.Background(), &File{Links: []LinkEntry{
		{Code: "admin", Destination: "https://example.com"},
	}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Skipped != 1 || store.Count() != 0 {
		t.Errorf("reserved code result = %+v, count %d", res, store.Count())
	}
}
