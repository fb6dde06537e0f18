package redis

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestCacheStore_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewCacheStore(client, "sb:")
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "sync:progress:1", []byte(`{"a":1}`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "sync:progress:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("got %s", got)
	}
	if ttl := mr.TTL("sb:sync:progress:1"); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	mr.FastForward(time.Hour)
	if _, err := store.Get(ctx, "sync:progress:1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected expiry, got %v", err)
	}
}

func TestCacheStore_KeysAndDeletePattern(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewCacheStore(client, "sb:")
	ctx := context.Background()

	for _, k := range []string{"sync:progress:1", "sync:progress:2", "schedule:next:1"} {
		if err := store.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx, "sync:progress:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"sync:progress:1", "sync:progress:2"}) {
		t.Errorf("keys = %v", keys)
	}

	n, err := store.DeletePattern(ctx, "sync:progress:*")
	if err != nil {
		t.Fatalf("delete pattern: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	if err := store.Delete(ctx, "schedule:next:1", "never-set"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys, _ = store.Keys(ctx, "*")
	if len(keys) != 0 {
		t.Errorf("expected empty store, got %v", keys)
	}
}

func TestCacheStore_IncrBySetsTTLOnCreate(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewCacheStore(client, "")
	ctx := context.Background()

	n, err := store.IncrBy(ctx, "ratelimit:k:1", 1, time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}

	mr.FastForward(20 * time.Second)
	n, err = store.IncrBy(ctx, "ratelimit:k:1", 4, time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if ttl := mr.TTL("ratelimit:k:1"); ttl != 40*time.Second {
		t.Errorf("ttl = %v, want 40s (not refreshed)", ttl)
	}

	n, err = store.IncrBy(ctx, "ratelimit:k:1", -2, time.Minute)
	if err != nil || n != 3 {
		t.Errorf("decrement = %d, %v", n, err)
	}
}

func TestCacheStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewCacheStore(client, "")
	mr.Close()
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected a backend error, got %v", err)
	}
	if _, err := store.IncrBy(ctx, "k", 1, time.Minute); err == nil {
		t.Error("expected incr to fail")
	}
	if err := store.Ping(ctx); err == nil {
		t.Error("expected ping to fail")
	}
}
