package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/hop/internal/config"
	"github.com/MrSnakeDoc/hop/internal/httpserver"
	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/scheduler"
	"github.com/MrSnakeDoc/hop/internal/version"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	core    *Core
	server  *httpserver.Server
	sweeper *scheduler.ExpirySweeper // nil when disabled
}

// New wires the HTTP server on top of the core. Storage is connected here so
// a missing database fails fast.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	core, err := NewCore(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	var sweeper *scheduler.ExpirySweeper
	if cfg.ExpirySweepInterval > 0 {
		sweeper = scheduler.NewExpirySweeper(core.Lifecycle, loggerClient.Named("sweeper"), cfg.ExpirySweepInterval)
	} else {
		loggerClient.Info("expiry sweeper disabled, expiry is evaluated on read only")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		BaseURL:        cfg.BaseURL,
		RequestTimeout: cfg.RequestTimeout,
		AnalyticsDays:  cfg.AnalyticsDays,
		Service:        core.Service,
		Database:       core.Database,
		Metrics:        core.Metrics,
		PendingClicks:  core.Recorder.Pending,
		Validate:       handlers.NewValidator(),
	}
	if core.Redis != nil {
		d.Cache = core.Redis
	}

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		core:    core,
		server:  httpserver.New(cfg, loggerClient, d),
		sweeper: sweeper,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting hop v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background click writers run on their own context so shutdown can
	// drain them after the server stopped accepting redirects.
	a.core.Recorder.Start(context.Background())

	if a.sweeper != nil {
		a.sweeper.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	if err := a.core.Recorder.Stop(shutdownCtx); err != nil {
		a.logger.Warn("click recorder did not drain before shutdown deadline", logger.Error(err))
	}

	if err := a.core.Close(); err != nil {
		a.logger.Warnf("failed to close storage: %v", err)
	} else {
		a.logger.Info("✅ Storage closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ hop stopped cleanly")
	return nil
}
