package goIdentity

import (
	"context"
	"time"
)

// AccountStore persists accounts. Lookups return ErrNotFound on a miss and
// Create returns ErrConflict for a taken username or email.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByVerificationToken(ctx context.Context, tokenHash string) (*Account, error)
	FindByResetToken(ctx context.Context, tokenHash string) (*Account, error)

	// IncrementFailedLogins atomically adds one and returns the new count.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	// ResetFailedLogins zeroes the counter and clears the lock.
	ResetFailedLogins(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, at time.Time) error
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// Update applies every non-nil field of u in one write.
	Update(ctx context.Context, id string, u AccountUpdate) error
	// ConsumeBackupCode removes codeHash from the account's set in one
	// atomic update and reports whether it was present.
	ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error)
}

// AccountUpdate is a sparse update. Nil fields are left untouched.
type AccountUpdate struct {
	DisplayName  *string
	PasswordHash *string
	Active       *bool
	Verified     *bool
	// Verification and Reset replace the token pair; a zero TokenUpdate clears it.
	Verification *TokenUpdate
	Reset        *TokenUpdate
	TwoFactor    *TwoFactorUpdate
	// ClearLockout zeroes the failed counter and clears the lock.
	ClearLockout bool
}

// TokenUpdate sets or, when Hash is empty, clears a single-use token.
type TokenUpdate struct {
	Hash      string
	ExpiresAt time.Time
}

// TwoFactorUpdate replaces the whole 2FA state at once.
type TwoFactorUpdate struct {
	Secret      string
	Enabled     bool
	BackupCodes []string
}

// RoleStore resolves role membership. Role and permission definitions are
// administered elsewhere.
type RoleStore interface {
	Roles(ctx context.Context, accountID string) ([]string, error)
	Permissions(ctx context.Context, accountID string) ([]string, error)
	AssignRole(ctx context.Context, accountID, role string) error
	RemoveRole(ctx context.Context, accountID, role string) error
	AssignDefaultRole(ctx context.Context, accountID string) error
}

// LinkedAccountStore persists federated identities. FindBy* return
// ErrNotFound on a miss and Create returns ErrConflict when
// (provider, subject) is taken.
type LinkedAccountStore interface {
	Create(ctx context.Context, link *LinkedAccount) error
	FindByID(ctx context.Context, id string) (*LinkedAccount, error)
	FindBySubject(ctx context.Context, provider, subject string) (*LinkedAccount, error)
	FindByAccount(ctx context.Context, accountID, provider string) (*LinkedAccount, error)
	UpdateTokens(ctx context.Context, id string, tokens LinkedTokens) error
}

// Notifier delivers verification and reset links. Failures are logged and
// never fail the calling flow.
type Notifier interface {
	SendVerification(ctx context.Context, account Account, token string) error
	SendPasswordReset(ctx context.Context, account Account, token string) error
}
