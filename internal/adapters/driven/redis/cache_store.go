package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CacheStore = (*CacheStore)(nil)

const scanBatch = 200

// CacheStore implements driven.CacheStore on Redis strings.
// All keys are namespaced with a prefix that callers never see.
type CacheStore struct {
	client redis.UniversalClient
	prefix string
}

// NewCacheStore creates a cache store. prefix may be empty.
func NewCacheStore(client redis.UniversalClient, prefix string) *CacheStore {
	return &CacheStore{client: client, prefix: prefix}
}

func (s *CacheStore) key(k string) string {
	return s.prefix + k
}

// Get returns the value for key or domain.ErrNotFound.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value with ttl; zero means no expiry.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// scan walks keys matching pattern with SCAN and calls fn per batch.
func (s *CacheStore) scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(pattern), scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// DeletePattern removes every key matching the glob.
func (s *CacheStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	total := 0
	err := s.scan(ctx, pattern, func(keys []string) error {
		n, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("delete keys: %w", err)
		}
		total += int(n)
		return nil
	})
	return total, err
}

// Keys lists keys matching the glob, without the namespace prefix.
func (s *CacheStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var result []string
	err := s.scan(ctx, pattern, func(keys []string) error {
		for _, k := range keys {
			result = append(result, strings.TrimPrefix(k, s.prefix))
		}
		return nil
	})
	return result, err
}

// incrScript increments and sets the expiry only when the key was created
var incrScript = redis.NewScript(`
	local created = redis.call("exists", KEYS[1]) == 0
	local v = redis.call("incrby", KEYS[1], ARGV[1])
	if created and tonumber(ARGV[2]) > 0 then
		redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return v
`)

// IncrBy adds delta atomically. ttl applies only to a newly created counter.
func (s *CacheStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.client, []string{s.key(key)}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// Ping checks if the Redis backend is healthy.
func (s *CacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
