package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven/mocks"
)

func newTestCache(store *mocks.MockCacheStore) *CacheService {
	store.SetClock(newTestClock().Now)
	return NewCacheService(CacheServiceConfig{Store: store, Logger: quietLogger()})
}

func TestCacheService_SetGet(t *testing.T) {
	store := mocks.NewMockCacheStore()
	cache := newTestCache(store)
	ctx := context.Background()

	type payload struct {
		Name  string
		Count int
	}

	cache.Set(ctx, "k", payload{Name: "a", Count: 2}, 0)

	var got payload
	require.True(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
	assert.Equal(t, DefaultCacheTTL, store.TTL("k"))

	cache.Delete(ctx, "k")
	assert.False(t, cache.Get(ctx, "k", &got))
}

func TestCacheService_DeletePattern(t *testing.T) {
	cache := newTestCache(mocks.NewMockCacheStore())
	ctx := context.Background()

	cache.Set(ctx, "sync:progress:1", 1, time.Minute)
	cache.Set(ctx, "sync:progress:2", 2, time.Minute)
	cache.Set(ctx, "schedule:next:1", 3, time.Minute)

	assert.Equal(t, 2, cache.DeletePattern(ctx, "sync:progress:*"))
	assert.ElementsMatch(t, []string{"schedule:next:1"}, cache.Keys(ctx, "*"))
}

func TestCacheService_FailOpen(t *testing.T) {
	store := mocks.NewMockCacheStore()
	cache := newTestCache(store)
	ctx := context.Background()
	store.Err = errors.New("redis down")

	var v int
	assert.False(t, cache.Get(ctx, "k", &v), "read failure is a miss")
	assert.NotPanics(t, func() { cache.Set(ctx, "k", 1, 0) })
	assert.Equal(t, 0, cache.DeletePattern(ctx, "*"))

	_, err := cache.Increment(ctx, "counter", 1, time.Minute)
	assert.Error(t, err, "counter failures propagate")
}

func TestCacheService_IncrementDecrement(t *testing.T) {
	store := mocks.NewMockCacheStore()
	cache := newTestCache(store)
	ctx := context.Background()

	n, err := cache.Increment(ctx, "c", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = cache.Decrement(ctx, "c", 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, time.Minute, store.TTL("c"), "ttl is only set when the counter is created")
}

func TestGetOrSet_ProducesOnceAndCaches(t *testing.T) {
	cache := newTestCache(mocks.NewMockCacheStore())
	ctx := context.Background()

	calls := 0
	producer := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	v, cached, err := GetOrSet(ctx, cache, "list", time.Minute, producer)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"a", "b"}, v)

	v, cached, err = GetOrSet(ctx, cache, "list", time.Minute, producer)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrSet_SingleFlight(t *testing.T) {
	cache := newTestCache(mocks.NewMockCacheStore())
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	producer := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := GetOrSet(ctx, cache, "hot", time.Minute, producer)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// let the callers pile up on the in-flight producer
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGetOrSet_ProducerError(t *testing.T) {
	cache := newTestCache(mocks.NewMockCacheStore())
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := GetOrSet(ctx, cache, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	var v int
	assert.False(t, cache.Get(ctx, "k", &v), "failed production is not cached")
}
