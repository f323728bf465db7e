package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds how long a pending handshake stays redeemable.
const DefaultStateTTL = 10 * time.Minute

// PendingAuth is the server-side half of an in-flight handshake.
type PendingAuth struct {
	Provider  string    `json:"provider"`
	State     string    `json:"state"`
	Verifier  string    `json:"verifier,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore keeps pending handshakes between Begin and Complete. Take
// returns (nil, nil) for unknown or expired state and must remove the
// record so it cannot be redeemed twice.
type StateStore interface {
	Save(ctx context.Context, p PendingAuth, ttl time.Duration) error
	Take(ctx context.Context, state string) (*PendingAuth, error)
}

// RedisStateStore implements StateStore with one key per state.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStateStore returns a Redis-backed StateStore. Keys are
// prefix + state; an empty prefix uses "fed:".
func NewRedisStateStore(client redis.UniversalClient, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "fed:"
	}
	return &RedisStateStore{client: client, prefix: prefix}
}

// Save implements StateStore.
func (s *RedisStateStore) Save(ctx context.Context, p PendingAuth, ttl time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+p.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// Take implements StateStore using GETDEL.
func (s *RedisStateStore) Take(ctx context.Context, state string) (*PendingAuth, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	var p PendingAuth
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &p, nil
}

// MemoryStateStore implements StateStore in process memory.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryState
	now     func() time.Time
}

type memoryState struct {
	pending   PendingAuth
	expiresAt time.Time
}

// NewMemoryStateStore returns an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]memoryState), now: time.Now}
}

// Save implements StateStore.
func (s *MemoryStateStore) Save(_ context.Context, p PendingAuth, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.State] = memoryState{pending: p, expiresAt: s.now().Add(ttl)}
	return nil
}

// Take implements StateStore.
func (s *MemoryStateStore) Take(_ context.Context, state string) (*PendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return nil, nil
	}
	delete(s.entries, state)
	if !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	p := entry.pending
	return &p, nil
}
