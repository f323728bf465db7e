package goIdentity

import (
	"time"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/jwt"
)

// Account is the identity record the Engine mutates. Token and backup code
// fields hold hashes, never the values shown to users.
type Account struct {
	ID          string
	TenantID    string
	Username    string
	Email       string
	DisplayName string
	// PasswordHash is empty for accounts created through federated login.
	PasswordHash string
	Active       bool
	Verified     bool

	VerificationTokenHash string
	VerificationExpiresAt *time.Time
	ResetTokenHash        string
	ResetExpiresAt        *time.Time

	FailedLoginAttempts int
	LockedAt            *time.Time

	TwoFactorSecret  string
	TwoFactorEnabled bool
	BackupCodes      []string

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.VerificationExpiresAt = cloneTime(a.VerificationExpiresAt)
	out.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	out.LockedAt = cloneTime(a.LockedAt)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	out.BackupCodes = append([]string(nil), a.BackupCodes...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LinkedAccount ties an Account to an identity at an external provider.
// (Provider, Subject) is unique.
type LinkedAccount struct {
	ID           string
	AccountID    string
	Provider     string
	Subject      string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LinkedTokens are the provider credentials refreshed on every federated login.
type LinkedTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// RegisterRequest is the input to Engine.Register.
type RegisterRequest struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessToken is the result of Engine.Refresh. The refresh token is not rotated.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult is returned by Engine.Login. When MFARequired is set, Tokens
// is nil and the caller must finish with Engine.VerifyTwoFactorLogin.
type LoginResult struct {
	AccountID   string
	MFARequired bool
	Tokens      *TokenPair
}

// TwoFactorSetup carries a not-yet-persisted TOTP secret.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// FederatedStart is returned by Engine.BeginFederatedLogin. The caller
// redirects to AuthorizeURL and keeps State to compare on callback.
type FederatedStart struct {
	Provider     string
	AuthorizeURL string
	State        string
}

// FederatedCallback carries the query parameters of a provider redirect.
type FederatedCallback struct {
	Provider         string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// FederatedLoginResult reports how a federated identity was resolved.
type FederatedLoginResult struct {
	AccountID string
	// Created is set when a new Account was made for this identity.
	Created bool
	// Linked is set when a new LinkedAccount row was written.
	Linked bool
	Tokens *TokenPair
}

// Claims are validated access token claims.
type Claims = jwt.Claims

// AuditEvent is a single audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher.
type AuditSink = audit.Sink
