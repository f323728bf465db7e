package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(newTestRedis(t), "test:rvk"),
	}
}

func TestLedgerAddAndIsRevoked(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{now: time.Now()}
			l := NewLedger(store, WithClock(c.Now))

			revoked, err := l.IsRevoked(ctx, "jti-1")
			if err != nil || revoked {
				t.Fatalf("expected not revoked before add, got %v err=%v", revoked, err)
			}

			exp := c.Now().Add(time.Hour)
			if err := l.Add(ctx, "jti-1", exp); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := l.Add(ctx, "jti-1", exp); err != nil {
				t.Fatalf("re-Add must be idempotent: %v", err)
			}

			revoked, err = l.IsRevoked(ctx, "jti-1")
			if err != nil || !revoked {
				t.Fatalf("expected revoked after add, got %v err=%v", revoked, err)
			}
		})
	}
}

func TestLedgerSweepRemovesExpiredExactlyOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{now: time.Now()}
			l := NewLedger(store, WithClock(c.Now))

			if err := l.Add(ctx, "short-1", c.Now().Add(time.Minute)); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := l.Add(ctx, "short-2", c.Now().Add(2*time.Minute)); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := l.Add(ctx, "long", c.Now().Add(24*time.Hour)); err != nil {
				t.Fatalf("Add: %v", err)
			}

			n, err := l.SweepExpired(ctx)
			if err != nil || n != 0 {
				t.Fatalf("expected nothing swept before expiry, got %d err=%v", n, err)
			}

			c.Advance(time.Hour)
			n, err = l.SweepExpired(ctx)
			if err != nil || n != 2 {
				t.Fatalf("expected 2 swept, got %d err=%v", n, err)
			}
			n, err = l.SweepExpired(ctx)
			if err != nil || n != 0 {
				t.Fatalf("expected idempotent second sweep, got %d err=%v", n, err)
			}

			if revoked, _ := l.IsRevoked(ctx, "long"); !revoked {
				t.Fatal("unexpired entry must survive sweep")
			}
			if revoked, _ := l.IsRevoked(ctx, "short-1"); revoked {
				t.Fatal("expired entry must be gone after sweep")
			}
		})
	}
}

func TestLedgerSweepKeepsEntriesWithinGrace(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{now: time.Now()}
			l := NewLedger(store, WithClock(c.Now), WithGrace(time.Minute))

			if err := l.Add(ctx, "jti", c.Now().Add(10*time.Minute)); err != nil {
				t.Fatalf("Add: %v", err)
			}

			c.Advance(10*time.Minute + 30*time.Second)
			n, err := l.SweepExpired(ctx)
			if err != nil || n != 0 {
				t.Fatalf("entry inside grace must survive, got %d err=%v", n, err)
			}
			if revoked, _ := l.IsRevoked(ctx, "jti"); !revoked {
				t.Fatal("entry inside grace must still be revoked")
			}

			c.Advance(time.Minute)
			n, err = l.SweepExpired(ctx)
			if err != nil || n != 1 {
				t.Fatalf("expected entry swept after grace, got %d err=%v", n, err)
			}
		})
	}
}

func TestWithGraceIgnoresNegative(t *testing.T) {
	l := NewLedger(NewMemoryStore(), WithGrace(-time.Minute))
	if l.Grace() != 0 {
		t.Fatalf("expected zero grace, got %s", l.Grace())
	}
}

func TestLedgerRejectsEmptyID(t *testing.T) {
	l := NewLedger(NewMemoryStore())
	if err := l.Add(context.Background(), "", time.Now()); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
	if revoked, err := l.IsRevoked(context.Background(), ""); revoked || err != nil {
		t.Fatalf("empty id must not be revoked: %v %v", revoked, err)
	}
}

func TestLedgerWrapsStoreFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	l := NewLedger(NewRedisStore(client, ""))
	mr.Close()

	ctx := context.Background()
	if err := l.Add(ctx, "jti", time.Now().Add(time.Hour)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Add, got %v", err)
	}
	if _, err := l.IsRevoked(ctx, "jti"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from IsRevoked, got %v", err)
	}
	if _, err := l.SweepExpired(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from SweepExpired, got %v", err)
	}
}

func TestConcurrentSweepsNeverOverDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := &clock{now: time.Now()}
	l := NewLedger(store, WithClock(c.Now))

	for i := 0; i < 50; i++ {
		exp := c.Now().Add(time.Minute)
		if i%2 == 0 {
			exp = c.Now().Add(24 * time.Hour)
		}
		if err := l.Add(ctx, fmt.Sprintf("jti-%d", i), exp); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	c.Advance(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := l.SweepExpired(ctx)
			if err != nil {
				t.Errorf("SweepExpired: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 25 {
		t.Fatalf("expected 25 entries removed in total, got %d", total)
	}
	if store.Len() != 25 {
		t.Fatalf("expected 25 unexpired entries left, got %d", store.Len())
	}
}
