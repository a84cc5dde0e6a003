package tokenstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*Redis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedis(rdb, "test:token")

	return store, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisRoundTrip(t *testing.T) {
	store, done := newRedisStore(t)
	defer done()
	ctx := context.Background()

	got, err := store.Get(ctx)
	if err != nil || got != "" {
		t.Fatalf("expected empty slot, got %q err %v", got, err)
	}

	if err := store.Set(ctx, "tok-redis"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err = store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "tok-redis" {
		t.Fatalf("expected tok-redis, got %q", got)
	}
}

func TestRedisClearIdempotent(t *testing.T) {
	store, done := newRedisStore(t)
	defer done()
	ctx := context.Background()

	if err := store.Set(ctx, "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty slot must be a no-op, got %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil || got != "" {
		t.Fatalf("expected empty slot after clear, got %q err %v", got, err)
	}
}

func TestRedisDefaultKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedis(rdb, "")
	if err := store.Set(context.Background(), "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, err := rdb.Get(context.Background(), "fleet:token").Result(); err != nil || got != "tok" {
		t.Fatalf("expected token under fleet:token, got %q err %v", got, err)
	}
}
