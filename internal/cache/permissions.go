// Package cache provides the read-through permission cache used by the
// identity directory.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Loader fetches the authoritative permission names for an account.
type Loader func(ctx context.Context, accountID string) ([]string, error)

// Permissions caches permission names per account id with a bounded TTL
// and entry count. Concurrent misses for the same account share one load.
type Permissions struct {
	lru    *expirable.LRU[string, []string]
	group  singleflight.Group
	load   Loader
	hits   atomic.Uint64
	misses atomic.Uint64

	// mu orders cache fills against invalidations. flights holds one entry
	// per account with a load in progress; gen moves on every invalidation
	// of that account while the entry exists.
	mu      sync.Mutex
	flights map[string]*flight
	purges  uint64

	// afterLoad runs between the loader returning and the fill. Tests only.
	afterLoad func(accountID string)
}

type flight struct {
	loads int
	gen   uint64
}

// NewPermissions returns a cache in front of load. Non-positive ttl or
// maxEntries fall back to the defaults.
func NewPermissions(load Loader, ttl time.Duration, maxEntries int) *Permissions {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Permissions{
		lru:     expirable.NewLRU[string, []string](maxEntries, nil, ttl),
		load:    load,
		flights: make(map[string]*flight),
	}
}

// Get returns the cached permissions for accountID, loading them on miss.
// The returned slice is a copy.
func (p *Permissions) Get(ctx context.Context, accountID string) ([]string, error) {
	if perms, ok := p.lru.Get(accountID); ok {
		p.hits.Add(1)
		return clone(perms), nil
	}
	p.misses.Add(1)

	v, err, _ := p.group.Do(accountID, func() (interface{}, error) {
		f, gen, purges := p.begin(accountID)
		perms, err := p.load(ctx, accountID)
		if p.afterLoad != nil {
			p.afterLoad(accountID)
		}
		p.finish(accountID, f, gen, purges, perms, err == nil)
		if err != nil {
			return nil, err
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]string)), nil
}

func (p *Permissions) begin(accountID string) (*flight, uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.flights[accountID]
	if f == nil {
		f = &flight{}
		p.flights[accountID] = f
	}
	f.loads++
	return f, f.gen, p.purges
}

// finish fills the cache only if no invalidation of accountID or purge ran
// since begin. The check and the fill happen under mu, as do the
// invalidation's bump and removal, so a stale fill cannot land afterwards.
func (p *Permissions) finish(accountID string, f *flight, gen, purges uint64, perms []string, fill bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fill && f.gen == gen && p.purges == purges {
		p.lru.Add(accountID, clone(perms))
	}
	f.loads--
	if f.loads == 0 {
		delete(p.flights, accountID)
	}
}

// Invalidate drops the entry for accountID. It returns only after the
// entry is gone, so the caller's next Get reloads.
func (p *Permissions) Invalidate(accountID string) {
	p.mu.Lock()
	if f := p.flights[accountID]; f != nil {
		f.gen++
	}
	p.lru.Remove(accountID)
	p.mu.Unlock()
	p.group.Forget(accountID)
}

// Purge drops every entry.
func (p *Permissions) Purge() {
	p.mu.Lock()
	p.purges++
	p.lru.Purge()
	p.mu.Unlock()
}

// Len returns the number of live entries.
func (p *Permissions) Len() int { return p.lru.Len() }

// Stats returns cumulative hit and miss counts.
func (p *Permissions) Stats() (hits, misses uint64) {
	return p.hits.Load(), p.misses.Load()
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
