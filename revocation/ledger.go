// Package revocation tracks token identifiers that were invalidated before
// their natural expiry.
//
// Each entry carries the expiry of the token it revokes. Sweeping removes
// only entries whose expiry plus the configured grace has passed, so a sweep
// can never resurrect a token that a validator with clock leeway would still
// accept, and concurrent sweeps only repeat work.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable = errors.New("revocation store unavailable")
	// ErrEmptyID is returned when adding an entry without a token identifier.
	ErrEmptyID = errors.New("revocation entry requires a token id")
)

// Store persists revocation entries. Implementations must be safe for
// concurrent use and treat a repeated Add of the same id as success.
type Store interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Ledger is the revocation API used by the session flows.
type Ledger struct {
	store Store
	now   func() time.Time
	grace time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used by SweepExpired.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithGrace keeps entries for grace past their expiry. Set it to the token
// validator's leeway. Negative values are treated as zero.
func WithGrace(grace time.Duration) Option {
	return func(l *Ledger) {
		if grace > 0 {
			l.grace = grace
		}
	}
}

// NewLedger returns a Ledger backed by store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add revokes jti until expiresAt. Adding an existing id is not an error.
func (l *Ledger) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrEmptyID
	}
	if err := l.store.Add(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (l *Ledger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ok, err := l.store.Contains(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Grace returns how long entries outlive their expiry.
func (l *Ledger) Grace() time.Duration { return l.grace }

// SweepExpired deletes entries whose expiry is before now minus the grace
// and returns how many were removed.
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.store.DeleteExpired(ctx, l.now().Add(-l.grace))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}
