package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
	"github.com/MrSnakeDoc/hop/internal/ratelimit"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
	DefaultDays        = 30
	MaxDays            = 365
)

// RateLimiter is consulted on the creation path only.
type RateLimiter interface {
	Allow(ctx context.Context, id string) ratelimit.Decision
}

// ClickSink receives clicks for Found redirects.
type ClickSink interface {
	Submit(event *domain.ClickEvent) bool
}

// ServiceConfig holds creation and analytics policy.
type ServiceConfig struct {
	// DedupeDestinations returns an existing generated, active link for an
	// identical destination instead of minting a new code.
	DedupeDestinations bool

	RecentLimit int
}

// Service is the entry point used by the HTTP layer and the CLI.
type Service struct {
	store     domain.LinkStore
	generator *Generator
	lifecycle *Lifecycle
	resolver  *Resolver
	clicks    ClickSink
	limiter   RateLimiter

	cfg     ServiceConfig
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

// Components groups what a Service is assembled from. Limiter may be nil
// (no rate limiting).
type Components struct {
	Store     domain.LinkStore
	Generator *Generator
	Lifecycle *Lifecycle
	Resolver  *Resolver
	Clicks    ClickSink
	Limiter   RateLimiter
}

func NewService(c Components, cfg ServiceConfig, log logger.Logger, m *metrics.Metrics, opts ...Option) *Service {
	o := buildOptions(opts)
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	return &Service{
		store:     c.Store,
		generator: c.Generator,
		lifecycle: c.Lifecycle,
		resolver:  c.Resolver,
		clicks:    c.Clicks,
		limiter:   c.Limiter,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		now:       o.now,
		timeout:   o.storageTimeout,
	}
}

// ─────────────────────────────
// Creation
// ─────────────────────────────

// CreateRequest is a link creation call. ClientID keys the rate limiter.
type CreateRequest struct {
	Destination string
	CustomCode  string
	ExpiresAt   *time.Time
	ClientID    string
}

// Create validates, rate limits and persists a new link.
//
// Errors: *domain.RateLimitedError, domain.ErrInvalidInput (and its children),
// domain.ErrCodeConflict, domain.ErrGenerationExhausted,
// domain.ErrStorageUnavailable.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Link, error) {
	if s.limiter != nil && req.ClientID != "" {
		d := s.limiter.Allow(ctx, req.ClientID)
		if !d.Allowed {
			s.metrics.RateLimited()
			s.metrics.LinkCreateFailed("rate_limited")
			return nil, &domain.RateLimitedError{RetryAfter: d.RetryAfter}
		}
	}

	link, kind, err := s.create(ctx, req)
	if err != nil {
		s.metrics.LinkCreateFailed(failureReason(err))
		if errors.Is(err, domain.ErrGenerationExhausted) {
			s.log.Error("short code keyspace exhausted",
				logger.String("destination", req.Destination),
				logger.Error(err))
		}
		return nil, err
	}

	s.metrics.LinkCreated(kind)
	s.log.Info("link created",
		logger.String("code", link.Code),
		logger.String("kind", kind))
	return link, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*domain.Link, string, error) {
	dest, err := domain.NormalizeDestination(req.Destination)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, "", fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidInput)
	}

	if req.CustomCode == "" && s.cfg.DedupeDestinations {
		existing, err := s.findByDestination(ctx, dest, now)
		if err == nil {
			return existing, "reused", nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	custom := req.CustomCode != ""
	var link *domain.Link
	_, err = s.generator.Claim(ctx, req.CustomCode, func(ctx context.Context, code string) error {
		candidate := domain.NewLink(code, dest, custom, req.ExpiresAt, now)

		ctx, cancel := withStorageTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.store.InsertLink(ctx, candidate); err != nil {
			return storageErr("insert link", err)
		}
		link = candidate
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if custom {
		return link, "custom", nil
	}
	return link, "generated", nil
}

func (s *Service) findByDestination(ctx context.Context, dest string, now time.Time) (*domain.Link, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.FindActiveLinkByDestination(ctx, dest, now)
	return link, storageErr("find link by destination", err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrCodeConflict):
		return "conflict"
	case errors.Is(err, domain.ErrGenerationExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage"
	default:
		return "other"
	}
}

// ─────────────────────────────
// Redirect
// ─────────────────────────────

// RedirectRequest is one incoming short URL hit.
type RedirectRequest struct {
	Code      string
	ClientIP  string
	UserAgent string
}

// Redirect resolves the code and, on Found only, hands a click to the
// recorder without waiting for it.
func (s *Service) Redirect(ctx context.Context, req RedirectRequest) (Outcome, error) {
	out, err := s.resolver.Resolve(ctx, req.Code)
	if err != nil {
		s.log.Error("redirect lookup failed",
			logger.String("code", req.Code),
			logger.Error(err))
		return out, err
	}

	if out.Kind == Found && s.clicks != nil {
		s.clicks.Submit(domain.NewClickEvent(out.Link.ID, s.now(), req.ClientIP, req.UserAgent))
	}
	return out, nil
}

// ─────────────────────────────
// Management
// ─────────────────────────────

// ListQuery selects one page. Zero Page and Limit take the defaults.
type ListQuery struct {
	Page   int
	Limit  int
	Active *bool
}

// List returns links ordered by created_at DESC. An empty page is not an
// error.
func (s *Service) List(ctx context.Context, q ListQuery) (*domain.LinkPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", domain.ErrInvalidInput)
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidInput, MaxPageLimit)
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	page, err := s.store.ListLinks(ctx, domain.LinkFilter{Active: q.Active}, domain.PageRequest{Page: q.Page, Limit: q.Limit})
	if err != nil {
		return nil, storageErr("list links", err)
	}
	return page, nil
}

// Get returns a link by code.
func (s *Service) Get(ctx context.Context, code string) (*domain.Link, error) {
	if !domain.IsValidCode(code) {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.FindLinkByCode(ctx, code)
	if err != nil {
		return nil, storageErr("find link", err)
	}
	return link, nil
}

func (s *Service) Disable(ctx context.Context, code string) (*domain.Link, error) {
	return s.lifecycle.Disable(ctx, code)
}

func (s *Service) Enable(ctx context.Context, code string) (*domain.Link, error) {
	return s.lifecycle.Enable(ctx, code)
}

func (s *Service) Delete(ctx context.Context, code string) error {
	return s.lifecycle.Delete(ctx, code)
}

// Status is the effective status of link right now.
func (s *Service) Status(link *domain.Link) domain.Status {
	return domain.EffectiveStatus(link, s.now())
}

// ─────────────────────────────
// Analytics
// ─────────────────────────────

// AnalyticsQuery bounds the report. RecentLimit 0 takes the configured
// default; Days 0 omits the daily series.
type AnalyticsQuery struct {
	RecentLimit int
	Days        int
}

// Analytics is the click report of one link.
type Analytics struct {
	Link        *domain.Link         `json:"link"`
	Status      domain.Status        `json:"status"`
	TotalClicks int64                `json:"total_clicks"`
	Recent      []*domain.ClickEvent `json:"recent_clicks"`
	Daily       []domain.DailyCount  `json:"daily,omitempty"`
}

// Analytics resolves the code once, then runs the click queries by link id.
func (s *Service) Analytics(ctx context.Context, code string, q AnalyticsQuery) (*Analytics, error) {
	if q.RecentLimit == 0 {
		q.RecentLimit = s.cfg.RecentLimit
	}
	if q.RecentLimit < 1 || q.RecentLimit > MaxRecentLimit {
		return nil, fmt.Errorf("%w: recent must be between 1 and %d", domain.ErrInvalidInput, MaxRecentLimit)
	}
	if q.Days < 0 || q.Days > MaxDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d", domain.ErrInvalidInput, MaxDays)
	}

	link, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	total, err := s.store.CountClicksForLink(ctx, link.ID)
	if err != nil {
		return nil, storageErr("count clicks", err)
	}

	recent, err := s.store.ListClickEvents(ctx, link.ID, q.RecentLimit)
	if err != nil {
		return nil, storageErr("list clicks", err)
	}

	now := s.now()
	report := &Analytics{
		Link:        link,
		Status:      domain.EffectiveStatus(link, now),
		TotalClicks: total,
		Recent:      recent,
	}

	if q.Days > 0 {
		since := startOfDay(now).AddDate(0, 0, -(q.Days - 1))
		sparse, err := s.store.AggregateClicksByDay(ctx, link.ID, since)
		if err != nil {
			return nil, storageErr("aggregate clicks", err)
		}
		report.Daily = denseDays(sparse, since, q.Days)
	}

	return report, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// denseDays zero-fills the series, oldest day first.
func denseDays(sparse []domain.DailyCount, since time.Time, days int) []domain.DailyCount {
	counts := make(map[string]int64, len(sparse))
	for _, d := range sparse {
		counts[d.Day] = d.Count
	}

	out := make([]domain.DailyCount, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		out[i] = domain.DailyCount{Day: day, Count: counts[day]}
	}
	return out
}
