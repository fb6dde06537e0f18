package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window request counter on the cache.
// Bursts at window boundaries are not smoothed.
type RateLimiter struct {
	cache  *CacheService
	logger *slog.Logger
	now    func() time.Time
}

// RateLimiterConfig holds dependencies for RateLimiter.
type RateLimiterConfig struct {
	Cache  *CacheService
	Logger *slog.Logger
	Now    func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{cache: cfg.Cache, logger: logger, now: now}
}

// CheckRateLimit counts one request against key in the current window.
// Store failures allow the request.
func (r *RateLimiter) CheckRateLimit(ctx context.Context, key string, maxRequests, windowSeconds int) domain.RateLimitResult {
	if windowSeconds <= 0 {
		return domain.RateLimitResult{Allowed: true, Remaining: maxRequests, ResetTime: r.now()}
	}

	windowMs := int64(windowSeconds) * 1000
	bucket := r.now().UnixMilli() / windowMs
	reset := time.UnixMilli((bucket + 1) * windowMs)
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	count, err := r.cache.Increment(ctx, counterKey, 1, time.Duration(windowSeconds)*time.Second)
	if err != nil {
		r.logger.Warn("rate limit check failed, allowing request", "key", key, "error", err)
		return domain.RateLimitResult{Allowed: true, Remaining: maxRequests, ResetTime: reset}
	}

	return domain.RateLimitResult{
		Allowed:   count <= int64(maxRequests),
		Remaining: max(0, maxRequests-int(count)),
		ResetTime: reset,
	}
}
