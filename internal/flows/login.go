package flows

import (
	"context"
	"errors"
	"time"
)

// LoginFailureKind classifies password login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureLookup
	LoginFailureNotFound
	LoginFailureLocked
	LoginFailureInvalidCredentials
	LoginFailureLockedNow
	LoginFailureInactive
	LoginFailureVerify
	LoginFailureStore
)

// LoginAccount is the flow-local view of an account.
type LoginAccount struct {
	AccountID        string
	TenantID         string
	PasswordHash     string
	Active           bool
	FailedAttempts   int
	LockedAt         *time.Time
	TwoFactorEnabled bool
}

// LoginResult reports the outcome of a password check.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Account LoginAccount
	// Attempts is the failed counter after this attempt.
	Attempts int
	// LockRemaining is set for LoginFailureLocked.
	LockRemaining time.Duration
	// MFARequired is set on success when the account has 2FA enabled.
	MFARequired bool
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	Threshold int
	Window    time.Duration
	Now       func() time.Time

	FindAccount     func(ctx context.Context, identifier string) (LoginAccount, error)
	NotFound        error
	VerifyPassword  func(ctx context.Context, plaintext, hash string) (bool, error)
	DummyVerify     func(ctx context.Context, plaintext string)
	IncrementFailed func(ctx context.Context, accountID string) (int, error)
	Lock            func(ctx context.Context, accountID string, at time.Time) error
	ResetFailed     func(ctx context.Context, accountID string) error
	RecordLogin     func(ctx context.Context, accountID string, at time.Time) error
	// AfterVerify runs after a successful password check, e.g. to rehash.
	AfterVerify func(ctx context.Context, account LoginAccount, plaintext string)
}

// RunPasswordLogin resolves the account, enforces lockout and checks the
// password. It never issues tokens.
func RunPasswordLogin(ctx context.Context, identifier, plaintext string, deps LoginDeps) LoginResult {
	now := deps.Now()

	acct, err := deps.FindAccount(ctx, identifier)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			if deps.DummyVerify != nil {
				deps.DummyVerify(ctx, plaintext)
			}
			return LoginResult{Failure: LoginFailureNotFound, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	if acct.LockedAt != nil {
		until := acct.LockedAt.Add(deps.Window)
		if now.Before(until) {
			return LoginResult{
				Failure:       LoginFailureLocked,
				Account:       acct,
				Attempts:      acct.FailedAttempts,
				LockRemaining: until.Sub(now),
			}
		}
		if err := deps.ResetFailed(ctx, acct.AccountID); err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err, Account: acct}
		}
		acct.LockedAt = nil
		acct.FailedAttempts = 0
	}

	ok := false
	if acct.PasswordHash != "" {
		ok, err = deps.VerifyPassword(ctx, plaintext, acct.PasswordHash)
		if err != nil {
			return LoginResult{Failure: LoginFailureVerify, Err: err, Account: acct}
		}
	} else if deps.DummyVerify != nil {
		// Federated-only accounts have no password.
		deps.DummyVerify(ctx, plaintext)
	}

	if !ok {
		attempts, err := deps.IncrementFailed(ctx, acct.AccountID)
		if err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err, Account: acct}
		}
		if attempts >= deps.Threshold {
			if err := deps.Lock(ctx, acct.AccountID, now); err != nil {
				return LoginResult{Failure: LoginFailureStore, Err: err, Account: acct, Attempts: attempts}
			}
			return LoginResult{Failure: LoginFailureLockedNow, Account: acct, Attempts: attempts, LockRemaining: deps.Window}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Account: acct, Attempts: attempts}
	}

	if acct.FailedAttempts > 0 {
		if err := deps.ResetFailed(ctx, acct.AccountID); err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err, Account: acct}
		}
		acct.FailedAttempts = 0
	}

	if !acct.Active {
		return LoginResult{Failure: LoginFailureInactive, Account: acct}
	}

	if deps.AfterVerify != nil {
		deps.AfterVerify(ctx, acct, plaintext)
	}
	if err := deps.RecordLogin(ctx, acct.AccountID, now); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, Account: acct}
	}

	return LoginResult{
		Failure:     LoginFailureNone,
		Account:     acct,
		MFARequired: acct.TwoFactorEnabled,
	}
}
