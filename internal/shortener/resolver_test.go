package shortener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
)

// countingStore counts point lookups.
type countingStore struct {
	domain.LinkStore
	lookups int
}

func (s *countingStore) FindLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	s.lookups++
	return s.LinkStore.FindLinkByCode(ctx, code)
}

func TestResolve(t *testing.T) {
	clock := newTestClock()
	now := clock.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	store := memory.New()
	ctx := context.Background()

	active := domain.NewLink("active", "https://example.com/a", false, &future, now.Add(-time.Hour))
	disabled := domain.NewLink("disabled", "https://example.com/d", false, nil, now.Add(-time.Hour))
	disabled.IsActive = false
	expired := domain.NewLink("expired", "https://example.com/e", false, &past, now.Add(-time.Hour))
	swept := domain.NewLink("swept", "https://example.com/s", false, nil, now.Add(-time.Hour))
	swept.Expired = true
	for _, l := range []*domain.Link{active, disabled, expired, swept} {
		if err := store.InsertLink(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	r := NewResolver(store, nil, WithClock(clock.Now))

	tests := []struct {
		code     string
		wantKind OutcomeKind
		wantDest string
		status   domain.Status
	}{
		{code: "active", wantKind: Found, wantDest: "https://example.com/a", status: domain.StatusActive},
		{code: "disabled", wantKind: Gone, status: domain.StatusDisabled},
		{code: "expired", wantKind: Gone, status: domain.StatusExpired},
		{code: "swept", wantKind: Gone, status: domain.StatusExpired},
		{code: "missing", wantKind: NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			out, err := r.Resolve(ctx, tt.code)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if out.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.wantKind)
			}
			if out.Destination() != tt.wantDest {
				t.Errorf("Destination() = %q, want %q", out.Destination(), tt.wantDest)
			}
			if tt.wantKind != NotFound && out.Status != tt.status {
				t.Errorf("Status = %v, want %v", out.Status, tt.status)
			}
		})
	}
}

func TestResolveTurnsGoneWhenExpiryPasses(t *testing.T) {
	clock := newTestClock()
	exp := clock.Now().Add(time.Minute)
	store := memory.New()
	_ = store.InsertLink(context.Background(), domain.NewLink("soon", "https://example.com", false, &exp, clock.Now()))
	r := NewResolver(store, nil, WithClock(clock.Now))

	out, _ := r.Resolve(context.Background(), "soon")
	if out.Kind != Found {
		t.Fatalf("before expiry Kind = %v, want found", out.Kind)
	}

	clock.Advance(time.Minute)
	out, _ = r.Resolve(context.Background(), "soon")
	if out.Kind != Gone {
		t.Errorf("at expiry Kind = %v, want gone", out.Kind)
	}
}

func TestResolveInvalidCodeSkipsStorage(t *testing.T) {
	store := &countingStore{LinkStore: memory.New()}
	r := NewResolver(store, nil)

	for _, code := range []string{"", "ab", "has/slash", "favicon.ico"} {
		out, err := r.Resolve(context.Background(), code)
		if err != nil || out.Kind != NotFound {
			t.Errorf("Resolve(%q) = %v, %v; want NotFound", code, out.Kind, err)
		}
	}
	if store.lookups != 0 {
		t.Errorf("invalid codes made %d lookups, want 0", store.lookups)
	}

	_, _ = r.Resolve(context.Background(), "valid")
	if store.lookups != 1 {
		t.Errorf("valid code made %d lookups, want exactly 1", store.lookups)
	}
}

func TestResolveTimeoutIsStorageUnavailable(t *testing.T) {
	r := NewResolver(blockingStore{}, nil, WithStorageTimeout(20*time.Millisecond))

	out, err := r.Resolve(context.Background(), "abc123")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrStorageUnavailable", err)
	}
	if errors.Is(err, domain.ErrNotFound) || out.Kind == Found {
		t.Error("a timeout must not be reported as NotFound or Found")
	}
}
