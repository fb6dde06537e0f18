package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// DefaultCacheTTL applies when a caller passes a zero TTL
const DefaultCacheTTL = time.Hour

// CacheService is a JSON cache-aside wrapper over a CacheStore.
// Reads and writes are best-effort: store failures are logged and reads
// degrade to a miss. Counter operations propagate errors.
type CacheService struct {
	store      driven.CacheStore
	defaultTTL time.Duration
	metrics    driven.MetricsRecorder
	logger     *slog.Logger

	group singleflight.Group
}

// CacheServiceConfig holds dependencies for CacheService.
type CacheServiceConfig struct {
	Store      driven.CacheStore
	DefaultTTL time.Duration // default: 1h
	Metrics    driven.MetricsRecorder
	Logger     *slog.Logger
}

// NewCacheService creates a new cache service.
func NewCacheService(cfg CacheServiceConfig) *CacheService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &CacheService{
		store:      cfg.Store,
		defaultTTL: ttl,
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *CacheService) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *CacheService) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		c.metrics.RecordCache(false)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache value undecodable", "key", key, "error", err)
		c.metrics.RecordCache(false)
		return false
	}
	c.metrics.RecordCache(true)
	return true
}

// Set stores value under key. A zero ttl uses the default TTL.
func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value unencodable", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl(ttl)); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Delete removes keys.
func (c *CacheService) Delete(ctx context.Context, keys ...string) {
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache delete failed", "keys", keys, "error", err)
	}
}

// DeletePattern removes every key matching a glob and returns how many went.
func (c *CacheService) DeletePattern(ctx context.Context, pattern string) int {
	n, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache pattern delete failed", "pattern", pattern, "error", err)
		return 0
	}
	return n
}

// Keys lists keys matching a glob. Failures yield an empty list.
func (c *CacheService) Keys(ctx context.Context, pattern string) []string {
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache key scan failed", "pattern", pattern, "error", err)
		return nil
	}
	return keys
}

// Increment adds amount to a counter. ttl is applied when the counter is created.
func (c *CacheService) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	return c.store.IncrBy(ctx, key, amount, c.ttl(ttl))
}

// Decrement subtracts amount from a counter.
func (c *CacheService) Decrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	return c.store.IncrBy(ctx, key, -amount, c.ttl(ttl))
}

// CacheGet is a typed Get.
func CacheGet[T any](ctx context.Context, c *CacheService, key string) (T, bool) {
	var v T
	ok := c.Get(ctx, key, &v)
	return v, ok
}

type flightResult[T any] struct {
	value  T
	cached bool
}

// GetOrSet returns the cached value for key or produces, caches and returns it.
// Concurrent misses for the same key share one producer call. The boolean
// reports whether the value was served from the cache.
func GetOrSet[T any](ctx context.Context, c *CacheService, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := CacheGet[T](ctx, c, key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		// another flight may have filled the key between our miss and now
		if v, ok := CacheGet[T](ctx, c, key); ok {
			return flightResult[T]{value: v, cached: true}, nil
		}
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v, ttl)
		return flightResult[T]{value: v}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	r := res.(flightResult[T])
	return r.value, r.cached, nil
}
