package deps

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
	"github.com/MrSnakeDoc/hop/internal/shortener"
)

// Pinger is a dependency the health endpoints can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time    // for testing, defaults to time.Now
	AllowedHosts   []string            // Host headers allowed to access the server
	AllowedCIDRS   []string            // IPs allowed to access healthz/readyz/metrics endpoints
	TrustProxy     bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	BaseURL        string              // prefix of short_url, no trailing slash
	RequestTimeout time.Duration       // handler bound, 0 takes the server default
	AnalyticsDays  int                 // daily series length when ?days is absent
	Service        *shortener.Service  // links, redirects, analytics
	Database       Pinger              // primary LinkStore
	Cache          Pinger              // Redis, nil when not configured
	Metrics        *metrics.Metrics    // nil disables /metrics
	PendingClicks  func() int          // click queue depth for /healthz, optional
	Validate       *validator.Validate // request DTO validation
}

// Now returns TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
