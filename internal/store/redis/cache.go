package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/metrics"
)

const (
	// DefaultCacheTTL is the default TTL for cached links
	DefaultCacheTTL = 5 * time.Minute
	// DefaultNegativeTTL is the default TTL for tombstones of unknown codes
	DefaultNegativeTTL = 30 * time.Second
	// DefaultLookupTimeout bounds a shared miss lookup
	DefaultLookupTimeout = 2 * time.Second

	tombstone = "-"
)

// CachedStore is a cache-aside decorator over a domain.LinkStore for the
// redirect hot path. Only FindLinkByCode reads the cache.
//
// Readers fill a missing key with SET NX; writers overwrite it with SET after
// their write commits. A reader holding state it loaded before a write can
// therefore never replace the writer's value. Redis failures never fail a
// lookup: they fall through to the wrapped store.
type CachedStore struct {
	domain.LinkStore

	client      *redis.Client
	ttl           time.Duration
	negativeTTL   time.Duration
	lookupTimeout time.Duration
	group         singleflight.Group
	log           logger.Logger
	metrics       *metrics.Metrics
}

// CacheConfig holds the cache TTLs and the miss lookup bound. Zero values
// take the defaults.
type CacheConfig struct {
	TTL           time.Duration
	NegativeTTL   time.Duration
	LookupTimeout time.Duration
}

// NewCachedStore wraps inner.
func NewCachedStore(inner domain.LinkStore, client *redis.Client, cfg CacheConfig, log logger.Logger, m *metrics.Metrics) *CachedStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = DefaultNegativeTTL
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	return &CachedStore{
		LinkStore:     inner,
		client:        client,
		ttl:           cfg.TTL,
		negativeTTL:   cfg.NegativeTTL,
		lookupTimeout: cfg.LookupTimeout,
		log:           log,
		metrics:       m,
	}
}

// FindLinkByCode serves from Redis when possible. Expiry is still evaluated
// by the caller from ExpiresAt, so a cached link turns Gone on time.
func (c *CachedStore) FindLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	key := LinkKey(code)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == tombstone {
			c.metrics.CacheLookup("negative")
			return nil, domain.ErrNotFound
		}
		var link domain.Link
		if jsonErr := json.Unmarshal(data, &link); jsonErr == nil {
			c.metrics.CacheLookup("hit")
			return &link, nil
		}
		c.log.Warn("dropping undecodable cache entry", logger.String("key", key))
		_ = c.client.Del(ctx, key).Err()
		c.metrics.CacheLookup("miss")
	case errors.Is(err, redis.Nil):
		c.metrics.CacheLookup("miss")
	default:
		c.metrics.CacheLookup("error")
		c.log.Debug("cache read failed, using store",
			logger.String("code", code),
			logger.Error(err))
	}

	// The flight is shared by every caller waiting on code, so it must not
	// die with the first caller's request. Each caller still stops waiting
	// when its own ctx is done.
	ch := c.group.DoChan(code, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()

		link, err := c.LinkStore.FindLinkByCode(lookupCtx, code)
		switch {
		case err == nil:
			c.fill(lookupCtx, key, link)
		case errors.Is(err, domain.ErrNotFound):
			c.fillTombstone(lookupCtx, key)
		}
		return link, err
	})

	select {
	case <-ctx.Done():
		return nil, domain.Unavailable("find link", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers of a shared flight must not share the pointer.
		link := *res.Val.(*domain.Link)
		return &link, nil
	}
}

// InsertLink writes through, replacing a tombstone left by an earlier lookup.
func (c *CachedStore) InsertLink(ctx context.Context, link *domain.Link) error {
	if err := c.LinkStore.InsertLink(ctx, link); err != nil {
		return err
	}
	c.overwrite(ctx, LinkKey(link.Code), link)
	return nil
}

func (c *CachedStore) UpdateLinkStatus(ctx context.Context, code string, active bool, now time.Time) (*domain.Link, error) {
	link, err := c.LinkStore.UpdateLinkStatus(ctx, code, active, now)
	if err != nil {
		return nil, err
	}
	c.overwrite(ctx, LinkKey(code), link)
	return link, nil
}

func (c *CachedStore) DeleteLinkCascade(ctx context.Context, code string) error {
	if err := c.LinkStore.DeleteLinkCascade(ctx, code); err != nil {
		return err
	}
	key := LinkKey(code)
	if err := c.client.Set(ctx, key, tombstone, c.negativeTTL).Err(); err != nil {
		c.invalidate(ctx, key, err)
	}
	return nil
}

// fill only sets a missing key.
func (c *CachedStore) fill(ctx context.Context, key string, link *domain.Link) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug("cache fill failed", logger.String("key", key), logger.Error(err))
	}
}

func (c *CachedStore) fillTombstone(ctx context.Context, key string) {
	if err := c.client.SetNX(ctx, key, tombstone, c.negativeTTL).Err(); err != nil {
		c.log.Debug("cache fill failed", logger.String("key", key), logger.Error(err))
	}
}

func (c *CachedStore) overwrite(ctx context.Context, key string, link *domain.Link) {
	data, err := json.Marshal(link)
	if err == nil {
		err = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		c.invalidate(ctx, key, err)
	}
}

// invalidate is the best effort fallback when a write-through fails.
func (c *CachedStore) invalidate(ctx context.Context, key string, cause error) {
	c.log.Warn("cache write failed, invalidating",
		logger.String("key", key),
		logger.Error(cause))
	if err := c.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		c.log.Error("cache invalidation failed, entry may be stale until ttl",
			logger.String("key", key),
			logger.Duration("ttl", c.ttl),
			logger.Error(err))
	}
}

var _ domain.LinkStore = (*CachedStore)(nil)
