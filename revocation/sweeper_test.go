package revocation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingStore struct {
	*MemoryStore
	calls atomic.Int64
}

func (f *failingStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New("connection refused")
}

func TestSweeperLogsFailuresAndKeepsRunning(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := &failingStore{MemoryStore: NewMemoryStore()}
	s := NewSweeper(NewLedger(store), 5*time.Millisecond, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	if store.calls.Load() < 3 {
		t.Fatalf("expected sweeper to retry after failures, got %d calls", store.calls.Load())
	}
	if logs.FilterMessage("revocation sweep failed").Len() == 0 {
		t.Fatal("expected sweep failures to be logged")
	}
}

func TestSweepOnceRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now()}
	store := NewMemoryStore()
	l := NewLedger(store, WithClock(c.Now))

	if err := l.Add(ctx, "old", c.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(ctx, "new", c.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s := NewSweeper(l, 0, nil)
	if n := s.SweepOnce(ctx); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if n := s.SweepOnce(ctx); n != 0 {
		t.Fatalf("expected 0 removed on repeat, got %d", n)
	}
}
