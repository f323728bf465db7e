package memory

import (
	"context"
	"sync"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Accounts is a mutex-guarded goIdentity.AccountStore.
type Accounts struct {
	mu   sync.RWMutex
	byID map[string]*goIdentity.Account
	now  func() time.Time
}

// NewAccounts returns an empty account store.
func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[string]*goIdentity.Account), now: time.Now}
}

// Create stores a copy of account. Usernames are unique; emails are unique
// when non-empty.
func (s *Accounts) Create(_ context.Context, account *goIdentity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[account.ID]; ok {
		return goIdentity.ErrConflict
	}
	for _, a := range s.byID {
		if a.Username == account.Username {
			return goIdentity.ErrConflict
		}
		if account.Email != "" && a.Email == account.Email {
			return goIdentity.ErrConflict
		}
	}
	s.byID[account.ID] = account.Clone()
	return nil
}

func (s *Accounts) FindByID(_ context.Context, id string) (*goIdentity.Account, error) {
	return s.find(func(a *goIdentity.Account) bool { return a.ID == id })
}

func (s *Accounts) FindByUsername(_ context.Context, username string) (*goIdentity.Account, error) {
	return s.find(func(a *goIdentity.Account) bool { return a.Username == username })
}

func (s *Accounts) FindByEmail(_ context.Context, email string) (*goIdentity.Account, error) {
	if email == "" {
		return nil, goIdentity.ErrNotFound
	}
	return s.find(func(a *goIdentity.Account) bool { return a.Email == email })
}

func (s *Accounts) FindByVerificationToken(_ context.Context, tokenHash string) (*goIdentity.Account, error) {
	if tokenHash == "" {
		return nil, goIdentity.ErrNotFound
	}
	return s.find(func(a *goIdentity.Account) bool { return a.VerificationTokenHash == tokenHash })
}

func (s *Accounts) FindByResetToken(_ context.Context, tokenHash string) (*goIdentity.Account, error) {
	if tokenHash == "" {
		return nil, goIdentity.ErrNotFound
	}
	return s.find(func(a *goIdentity.Account) bool { return a.ResetTokenHash == tokenHash })
}

func (s *Accounts) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	var n int
	err := s.mutate(id, func(a *goIdentity.Account) {
		a.FailedLoginAttempts++
		n = a.FailedLoginAttempts
	})
	return n, err
}

func (s *Accounts) ResetFailedLogins(_ context.Context, id string) error {
	return s.mutate(id, func(a *goIdentity.Account) {
		a.FailedLoginAttempts = 0
		a.LockedAt = nil
	})
}

func (s *Accounts) Lock(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(a *goIdentity.Account) {
		t := at
		a.LockedAt = &t
	})
}

func (s *Accounts) RecordLogin(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(a *goIdentity.Account) {
		t := at
		a.LastLoginAt = &t
	})
}

// Update applies u under the store lock.
func (s *Accounts) Update(_ context.Context, id string, u goIdentity.AccountUpdate) error {
	return s.mutate(id, func(a *goIdentity.Account) {
		if u.DisplayName != nil {
			a.DisplayName = *u.DisplayName
		}
		if u.PasswordHash != nil {
			a.PasswordHash = *u.PasswordHash
		}
		if u.Active != nil {
			a.Active = *u.Active
		}
		if u.Verified != nil {
			a.Verified = *u.Verified
		}
		if u.Verification != nil {
			a.VerificationTokenHash, a.VerificationExpiresAt = applyToken(u.Verification)
		}
		if u.Reset != nil {
			a.ResetTokenHash, a.ResetExpiresAt = applyToken(u.Reset)
		}
		if u.TwoFactor != nil {
			a.TwoFactorSecret = u.TwoFactor.Secret
			a.TwoFactorEnabled = u.TwoFactor.Enabled
			a.BackupCodes = append([]string(nil), u.TwoFactor.BackupCodes...)
		}
		if u.ClearLockout {
			a.FailedLoginAttempts = 0
			a.LockedAt = nil
		}
	})
}

// ConsumeBackupCode removes codeHash if present. Concurrent callers with
// the same code see exactly one true.
func (s *Accounts) ConsumeBackupCode(_ context.Context, id, codeHash string) (bool, error) {
	var found bool
	err := s.mutate(id, func(a *goIdentity.Account) {
		for i, h := range a.BackupCodes {
			if h == codeHash {
				a.BackupCodes = append(a.BackupCodes[:i:i], a.BackupCodes[i+1:]...)
				found = true
				return
			}
		}
	})
	return found, err
}

// Len returns the number of stored accounts.
func (s *Accounts) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Accounts) find(match func(*goIdentity.Account) bool) (*goIdentity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byID {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, goIdentity.ErrNotFound
}

func (s *Accounts) mutate(id string, fn func(*goIdentity.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return goIdentity.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = s.now()
	return nil
}

func applyToken(t *goIdentity.TokenUpdate) (string, *time.Time) {
	if t.Hash == "" {
		return "", nil
	}
	exp := t.ExpiresAt
	return t.Hash, &exp
}
