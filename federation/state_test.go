package federation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStateStoreTakeIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	store := NewRedisStateStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	ctx := context.Background()

	pending := PendingAuth{Provider: "google", State: "st-1", Verifier: "ver-1", CreatedAt: time.Now().UTC()}
	if err := store.Save(ctx, pending, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL("fed:st-1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	got, err := store.Take(ctx, "st-1")
	if err != nil || got == nil {
		t.Fatalf("Take: %v %v", got, err)
	}
	if got.Provider != "google" || got.Verifier != "ver-1" {
		t.Fatalf("unexpected pending auth: %+v", got)
	}

	again, err := store.Take(ctx, "st-1")
	if err != nil || again != nil {
		t.Fatalf("expected state to be consumed, got %+v err=%v", again, err)
	}
}

func TestRedisStateStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	store := NewRedisStateStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	ctx := context.Background()
	if err := store.Save(ctx, PendingAuth{Provider: "github", State: "st"}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := store.Take(ctx, "st")
	if err != nil || got != nil {
		t.Fatalf("expected expired state, got %+v err=%v", got, err)
	}
}

func TestMemoryStateStore(t *testing.T) {
	store := NewMemoryStateStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Save(ctx, PendingAuth{Provider: "google", State: "a"}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, PendingAuth{Provider: "google", State: "b"}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got, _ := store.Take(ctx, "a"); got == nil || got.State != "a" {
		t.Fatalf("expected pending auth a, got %+v", got)
	}
	if got, _ := store.Take(ctx, "a"); got != nil {
		t.Fatal("expected a to be consumed")
	}

	now = now.Add(2 * time.Minute)
	if got, _ := store.Take(ctx, "b"); got != nil {
		t.Fatal("expected b to be expired")
	}
}
