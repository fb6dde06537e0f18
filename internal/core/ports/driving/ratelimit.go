package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// RateLimiter checks fixed-window request quotas
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, maxRequests, windowSeconds int) domain.RateLimitResult
}
