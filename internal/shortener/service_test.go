package shortener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
)

func TestCreateResolveDisableDelete(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(link.Code) != 6 || !isBase62(link.Code) || link.IsCustomCode {
		t.Fatalf("Create() code = %q, want 6 base62 chars", link.Code)
	}

	steps := []struct {
		name string
		do   func() error
		want OutcomeKind
	}{
		{name: "created", do: func() error { return nil }, want: Found},
		{name: "disabled", do: func() error { _, err := f.service.Disable(ctx, link.Code); return err }, want: Gone},
		{name: "deleted", do: func() error { return f.service.Delete(ctx, link.Code) }, want: NotFound},
	}

	for _, st := range steps {
		if err := st.do(); err != nil {
			t.Fatalf("%s: error = %v", st.name, err)
		}
		out, err := f.service.Redirect(ctx, RedirectRequest{Code: link.Code})
		if err != nil {
			t.Fatalf("%s: Redirect() error = %v", st.name, err)
		}
		if out.Kind != st.want {
			t.Errorf("%s: Kind = %v, want %v", st.name, out.Kind, st.want)
		}
		if st.want == Found && out.Destination() != "https://example.com/page" {
			t.Errorf("%s: Destination() = %q", st.name, out.Destination())
		}
	}
}

func TestCreateCustomCodeConflict(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()

	link, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com/demo", CustomCode: "demo-v2"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if link.Code != "demo-v2" || !link.IsCustomCode {
		t.Errorf("Create() = %+v, want custom code demo-v2", link)
	}

	_, err = f.service.Create(ctx, CreateRequest{Destination: "https://other.example.com", CustomCode: "demo-v2"})
	if !errors.Is(err, domain.ErrCodeConflict) {
		t.Fatalf("second Create() error = %v, want ErrCodeConflict", err)
	}
	if f.store.Count() != 1 {
		t.Errorf("conflict wrote a record, store has %d links", f.store.Count())
	}

	// Disabling does not free the code.
	_, _ = f.service.Disable(ctx, "demo-v2")
	if _, err := f.service.Create(ctx, CreateRequest{Destination: "https://x.io", CustomCode: "demo-v2"}); !errors.Is(err, domain.ErrCodeConflict) {
		t.Errorf("Create() on disabled code error = %v, want ErrCodeConflict", err)
	}
}

func TestConcurrentCustomCodeRace(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.Create(context.Background(), CreateRequest{
				Destination: fmt.Sprintf("https://example.com/%d", i),
				CustomCode:  "launch",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, domain.ErrCodeConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	past := f.clock.Now().Add(-time.Second)
	now := f.clock.Now()

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{name: "bad scheme", req: CreateRequest{Destination: "ftp://example.com"}, wantErr: domain.ErrInvalidDestination},
		{name: "relative", req: CreateRequest{Destination: "/x"}, wantErr: domain.ErrInvalidDestination},
		{name: "bad custom code", req: CreateRequest{Destination: "https://example.com", CustomCode: "a b"}, wantErr: domain.ErrInvalidCode},
		{name: "reserved", req: CreateRequest{Destination: "https://example.com", CustomCode: "api"}, wantErr: domain.ErrCodeConflict},
		{name: "expiry in the past", req: CreateRequest{Destination: "https://example.com", ExpiresAt: &past}, wantErr: domain.ErrInvalidInput},
		{name: "expiry now", req: CreateRequest{Destination: "https://example.com", ExpiresAt: &now}, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if f.store.Count() != 0 {
		t.Errorf("invalid requests wrote %d links", f.store.Count())
	}
}

func TestCreateExpiryPrecedence(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()
	exp := f.clock.Now().Add(time.Hour)

	link, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", ExpiresAt: &exp})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(2 * time.Hour)
	out, _ := f.service.Redirect(ctx, RedirectRequest{Code: link.Code})
	if out.Kind != Gone || out.Status != domain.StatusExpired {
		t.Errorf("Redirect() = %v/%v, want gone/expired", out.Kind, out.Status)
	}
	stored, _ := f.store.FindLinkByCode(ctx, link.Code)
	if !stored.IsActive {
		t.Error("expiry must not rewrite is_active")
	}
}

func TestCreateRateLimited(t *testing.T) {
	f := newFixture(60, ServiceConfig{})
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if _, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", ClientID: "203.0.113.7"}); err != nil {
			t.Fatalf("request %d error = %v", i+1, err)
		}
	}

	_, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", ClientID: "203.0.113.7"})
	var rl *domain.RateLimitedError
	if !errors.As(err, &rl) || !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("61st Create() error = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", rl.RetryAfter)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", ClientID: "203.0.113.7"}); err != nil {
		t.Errorf("Create() after window error = %v", err)
	}
}

func TestRedirectsAreNotRateLimited(t *testing.T) {
	f := newFixture(1, ServiceConfig{})
	ctx := context.Background()
	link, _ := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", ClientID: "c"})

	for i := 0; i < 10; i++ {
		out, err := f.service.Redirect(ctx, RedirectRequest{Code: link.Code, ClientIP: "c"})
		if err != nil || out.Kind != Found {
			t.Fatalf("Redirect() #%d = %v, %v", i+1, out.Kind, err)
		}
	}
}

func TestDedupeDestinations(t *testing.T) {
	ctx := context.Background()

	off := newFixture(0, ServiceConfig{})
	a, _ := off.service.Create(ctx, CreateRequest{Destination: "https://example.com/same"})
	b, _ := off.service.Create(ctx, CreateRequest{Destination: "https://example.com/same"})
	if a.Code == b.Code {
		t.Error("without dedupe every request mints a new code")
	}

	on := newFixture(0, ServiceConfig{DedupeDestinations: true})
	a, _ = on.service.Create(ctx, CreateRequest{Destination: "https://example.com/same"})
	b, _ = on.service.Create(ctx, CreateRequest{Destination: " https://example.com/same "})
	if a.Code != b.Code {
		t.Errorf("dedupe should reuse %q, got %q", a.Code, b.Code)
	}
	c, err := on.service.Create(ctx, CreateRequest{Destination: "https://example.com/same", CustomCode: "mine"})
	if err != nil || c.Code != "mine" {
		t.Errorf("custom requests never dedupe, got %v, %v", c, err)
	}

	_, _ = on.service.Disable(ctx, a.Code)
	d, _ := on.service.Create(ctx, CreateRequest{Destination: "https://example.com/same"})
	if d.Code == a.Code {
		t.Error("a disabled link must not be reused")
	}
}

func TestRedirectRecordsClicksOnlyWhenFound(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()
	link, _ := f.service.Create(ctx, CreateRequest{Destination: "https://example.com"})

	for i := 0; i < 3; i++ {
		_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code, ClientIP: "203.0.113.7", UserAgent: "curl/8"})
	}
	_, _ = f.service.Redirect(ctx, RedirectRequest{Code: "missing"})
	_, _ = f.service.Disable(ctx, link.Code)
	_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code})

	n, _ := f.store.CountClicksForLink(ctx, link.ID)
	if n != 3 {
		t.Errorf("clicks = %d, want 3", n)
	}
}

func TestDeleteCascadesClicks(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()
	link, _ := f.service.Create(ctx, CreateRequest{Destination: "https://example.com"})
	for i := 0; i < 5; i++ {
		_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code})
	}

	if err := f.service.Delete(ctx, link.Code); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.store.CountClicksForLink(ctx, link.ID); n != 0 {
		t.Errorf("clicks after delete = %d, want 0", n)
	}
	if _, err := f.service.Analytics(ctx, link.Code, AnalyticsQuery{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Analytics() after delete error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = f.service.Create(ctx, CreateRequest{Destination: "https://example.com", CustomCode: fmt.Sprintf("code-%d", i)})
		f.clock.Advance(time.Second)
	}
	_, _ = f.service.Disable(ctx, "code-0")

	page, err := f.service.List(ctx, ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Links) != 2 || page.Links[0].Code != "code-4" {
		t.Errorf("List() = total %d, %d links, first %q", page.Total, len(page.Links), page.Links[0].Code)
	}

	inactive := false
	page, _ = f.service.List(ctx, ListQuery{Active: &inactive})
	if page.Total != 1 || page.Limit != DefaultPageLimit || page.Page != 1 {
		t.Errorf("List(inactive) = %+v", page)
	}

	page, err = f.service.List(ctx, ListQuery{Page: 50, Limit: 10})
	if err != nil || len(page.Links) != 0 {
		t.Errorf("empty page should not be an error, got %v, %v", page, err)
	}

	for _, q := range []ListQuery{{Page: -1}, {Limit: 101}, {Limit: -5}} {
		if _, err := f.service.List(ctx, q); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("List(%+v) error = %v, want ErrInvalidInput", q, err)
		}
	}
}

func TestListHugePageIsEmpty(t *testing.T) {
	f := newFixture(0, ServiceConfig{})
	ctx := context.Background()
	if _, err := f.service.Create(ctx, CreateRequest{Destination: "https://example.com", CustomCode: "only-one"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, q := range []ListQuery{
		{Page: math.MaxInt / 50, Limit: 100},
		{Page: math.MaxInt, Limit: MaxPageLimit},
		{Page: math.MaxInt, Limit: 1},
	} {
		page, err := f.service.List(ctx, q)
		if err != nil {
			t.Fatalf("List(%+v) error = %v", q, err)
		}
		if len(page.Links) != 0 || page.Total != 1 || page.Page != q.Page {
			t.Errorf("List(%+v) = %d links, total %d, page %d", q, len(page.Links), page.Total, page.Page)
		}
	}
}

func TestAnalytics(t *testing.T) {
	f := newFixture(0, ServiceConfig{RecentLimit: 2})
	ctx := context.Background()
	link, _ := f.service.Create(ctx, CreateRequest{Destination: "https://example.com"})

	// Two clicks three days ago, one today.
	f.clock.Advance(-72 * time.Hour)
	_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code, UserAgent: "first"})
	_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code, UserAgent: "second"})
	f.clock.Advance(72 * time.Hour)
	_, _ = f.service.Redirect(ctx, RedirectRequest{Code: link.Code, UserAgent: "latest"})

	report, err := f.service.Analytics(ctx, link.Code, AnalyticsQuery{Days: 5})
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if report.TotalClicks != 3 {
		t.Errorf("TotalClicks = %d, want 3", report.TotalClicks)
	}
	if len(report.Recent) != 2 || report.Recent[0].UserAgent != "latest" {
		t.Errorf("Recent should hold the 2 newest, most recent first, got %+v", report.Recent)
	}

	want := []domain.DailyCount{
		{Day: "2026-02-25", Count: 0},
		{Day: "2026-02-26", Count: 2},
		{Day: "2026-02-27", Count: 0},
		{Day: "2026-02-28", Count: 0},
		{Day: "2026-03-01", Count: 1},
	}
	if len(report.Daily) != len(want) {
		t.Fatalf("Daily = %+v, want %+v", report.Daily, want)
	}
	for i := range want {
		if report.Daily[i] != want[i] {
			t.Errorf("Daily[%d] = %+v, want %+v", i, report.Daily[i], want[i])
		}
	}

	report, _ = f.service.Analytics(ctx, link.Code, AnalyticsQuery{})
	if report.Daily != nil {
		t.Error("Days 0 should omit the series")
	}

	if _, err := f.service.Analytics(ctx, link.Code, AnalyticsQuery{Days: 400}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Analytics(days=400) error = %v, want ErrInvalidInput", err)
	}
}

func TestCreateStorageTimeout(t *testing.T) {
	store := blockingStore{LinkStore: memory.New()}
	log := logger.NewNop()
	opts := []Option{WithStorageTimeout(20 * time.Millisecond)}

	svc := NewService(Components{
		Store:     store,
		Generator: NewGenerator(store, domain.NewReservedCodes()),
		Lifecycle: NewLifecycle(store, log, nil, opts...),
		Resolver:  NewResolver(store, nil, opts...),
	}, ServiceConfig{}, log, nil, opts...)

	_, err := svc.Create(context.Background(), CreateRequest{Destination: "https://example.com"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Create() error = %v, want ErrStorageUnavailable", err)
	}

	_, err = svc.Redirect(context.Background(), RedirectRequest{Code: "abc123"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Redirect() error = %v, want ErrStorageUnavailable", err)
	}
}
