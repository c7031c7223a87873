package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hop/internal/config"
	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
	"github.com/MrSnakeDoc/hop/internal/ratelimit"
	"github.com/MrSnakeDoc/hop/internal/redis"
	"github.com/MrSnakeDoc/hop/internal/shortener"
	"github.com/MrSnakeDoc/hop/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/hop/internal/store/redis"
	sqlstore "github.com/MrSnakeDoc/hop/internal/store/sql"
)

// Core is the storage and domain wiring shared by every command.
type Core struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Database is the durable store; Store is what the core uses (Database,
	// possibly behind the Redis cache).
	Database domain.LinkStore
	Store    domain.LinkStore
	Redis    *redisstore.Store // nil when Redis is not configured

	Generator *shortener.Generator
	Lifecycle *shortener.Lifecycle
	Resolver  *shortener.Resolver
	Recorder  *shortener.Recorder
	Service   *shortener.Service

	closers []func() error
}

// NewCore connects storage and assembles the domain components. Nothing is
// started: the recorder workers are started by the server only.
func NewCore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Core, error) {
	c := &Core{Config: cfg, Logger: log, Metrics: metrics.New()}

	db, err := c.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	c.Database = db
	c.Store = db

	if cfg.RedisEnabled() {
		client, err := c.openRedis(ctx)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Redis = redisstore.NewStore(client)
		c.Store = redisstore.NewCachedStore(db, client, redisstore.CacheConfig{
			TTL:           cfg.CacheTTL,
			NegativeTTL:   cfg.CacheNegativeTTL,
			LookupTimeout: cfg.StorageTimeout,
		}, log.Named("cache"), c.Metrics)
		log.Info("redirect cache enabled",
			logger.Duration("ttl", cfg.CacheTTL),
			logger.Duration("negative_ttl", cfg.CacheNegativeTTL))
	}

	opts := []shortener.Option{shortener.WithStorageTimeout(cfg.StorageTimeout)}

	c.Generator = shortener.NewGenerator(c.Store, domain.NewReservedCodes(cfg.ReservedCodes...),
		shortener.WithCodeLength(cfg.CodeLength),
		shortener.WithAttempts(cfg.CodeAttempts))
	c.Lifecycle = shortener.NewLifecycle(c.Store, log.Named("lifecycle"), c.Metrics, opts...)
	c.Resolver = shortener.NewResolver(c.Store, c.Metrics, opts...)
	c.Recorder = shortener.NewRecorder(c.Database, log.Named("clicks"), c.Metrics, shortener.RecorderConfig{
		Workers:      cfg.ClickWorkers,
		QueueSize:    cfg.ClickQueueSize,
		WriteTimeout: cfg.StorageTimeout,
	})

	c.Service = shortener.NewService(shortener.Components{
		Store:     c.Store,
		Generator: c.Generator,
		Lifecycle: c.Lifecycle,
		Resolver:  c.Resolver,
		Clicks:    c.Recorder,
		Limiter:   c.newLimiter(),
	}, shortener.ServiceConfig{
		DedupeDestinations: cfg.DedupeDestinations,
		RecentLimit:        cfg.AnalyticsRecentLimit,
	}, log.Named("service"), c.Metrics, opts...)

	return c, nil
}

func (c *Core) openDatabase(ctx context.Context) (domain.LinkStore, error) {
	cfg := c.Config
	if cfg.DBDriver == config.DriverMemory {
		c.Logger.Warn("using in-memory storage, links are lost on restart")
		return memory.New(), nil
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:         cfg.DBDriver,
		DSN:            cfg.DatabaseURL,
		MaxOpenConns:   cfg.DBMaxOpenConns,
		MaxIdleConns:   cfg.DBMaxIdleConns,
		ConnectTimeout: cfg.DBConnectTimeout,
		RetryInterval:  cfg.DBRetryInterval,
	}, c.Logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	return store, nil
}

func (c *Core) openRedis(ctx context.Context) (*goredis.Client, error) {
	cfg := c.Config
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.closers = append(c.closers, client.Close)
	return client, nil
}

func (c *Core) newLimiter() *ratelimit.Limiter {
	var counters ratelimit.CounterStore
	switch c.Config.RateLimitBackend {
	case config.BackendRedis:
		counters = redisstore.NewRateCounter(c.Redis.Client())
	default:
		counters = ratelimit.NewMemoryStore(ratelimit.MemoryConfig{MaxEntries: 100_000}, nil)
	}
	return ratelimit.New(counters, c.Config.RateLimitPerMinute, c.Config.RateLimitWindow, c.Logger.Named("ratelimit"))
}

// Close releases connections in reverse order of opening.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
