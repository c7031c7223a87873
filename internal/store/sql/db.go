package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/hop/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes the relational connection.
type Config struct {
	Driver         string        // postgres | sqlite
	DSN            string        // postgres DSN or sqlite file path
	MaxOpenConns   int           // shared pool size (postgres)
	MaxIdleConns   int           // idle connections kept (postgres)
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // initial wait between attempts, doubles up to maxRetryWait
}

const maxRetryWait = 10 * time.Second

// Open connects with retry, configures the pool and migrates the schema.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}

	log.Info("connecting to database",
		logger.String("driver", cfg.Driver),
		logger.Duration("timeout", cfg.ConnectTimeout))

	db, err := openWithRetry(ctx, dialector, cfg, log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}

	switch cfg.Driver {
	case DriverSQLite:
		// One writer; pragmas are per connection so keep a single one.
		sqlDB.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		} {
			if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	default:
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Info("connected to database", logger.String("driver", cfg.Driver))
	return s, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// openWithRetry keeps trying until the database answers a ping or
// ConnectTimeout elapses, with capped exponential backoff.
func openWithRetry(ctx context.Context, dialector gorm.Dialector, cfg Config, log logger.Logger) (*gorm.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	attempt := 0
	wait := cfg.RetryInterval

	for {
		attempt++

		db, err := gorm.Open(dialector, gormConfig())
		if err == nil {
			err = ping(ctx, db)
			if err == nil {
				if attempt > 1 {
					log.Warn("connected to database after retry", logger.Int("attempts", attempt))
				}
				return db, nil
			}
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("database unavailable - failed to connect after timeout",
				logger.Int("attempts", attempt),
				logger.Error(err))
			return nil, fmt.Errorf("database unavailable after %d attempts (timeout: %v): %w",
				attempt, cfg.ConnectTimeout, err)
		case <-timer.C:
			log.Warn("database connection failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			wait *= 2
			if wait > maxRetryWait {
				wait = maxRetryWait
			}
		}
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}
