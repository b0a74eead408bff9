package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache, s
}

func TestNewCache(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache, err := NewCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRememberAndKnown(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()

	if cache.Known(ctx, 1, "digest-a") {
		t.Error("unknown digest reported as known")
	}

	if err := cache.Remember(ctx, 1, "digest-a"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	if !cache.Known(ctx, 1, "digest-a") {
		t.Error("remembered digest not known")
	}
	if cache.Known(ctx, 2, "digest-a") {
		t.Error("digest known for the wrong user")
	}
	if cache.Known(ctx, 1, "digest-b") {
		t.Error("unrelated digest known")
	}
}

func TestEntriesExpire(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Remember(ctx, 7, "digest"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if cache.Known(ctx, 7, "digest") {
		t.Error("expired entry still known")
	}
}

func TestForgetDropsOnlyThatUser(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	for _, digest := range []string{"d1", "d2"} {
		if err := cache.Remember(ctx, 1, digest); err != nil {
			t.Fatalf("Remember failed: %v", err)
		}
	}
	if err := cache.Remember(ctx, 2, "d1"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	if err := cache.Forget(ctx, 1); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}

	if cache.Known(ctx, 1, "d1") || cache.Known(ctx, 1, "d2") {
		t.Error("forgotten user still has cached digests")
	}
	if !cache.Known(ctx, 2, "d1") {
		t.Error("Forget dropped another user's digest")
	}
}
