package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/federation"
)

var (
	// ErrInvalidInput is returned before any state changes when a request
	// is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Register for a taken username or email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountLocked is wrapped by *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeactivated is returned for accounts whose active flag is off.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrAccountUnverifiedLink is returned when a federated login matches an
	// existing account whose email was never verified.
	ErrAccountUnverifiedLink = errors.New("an account with this email exists but is not verified; verify your email first or use password login")
	// ErrPasswordPolicy is returned when a new password violates the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrVerificationTokenInvalid is returned for unknown verification tokens.
	ErrVerificationTokenInvalid = errors.New("invalid verification token")
	// ErrVerificationTokenExpired is returned for expired verification tokens.
	ErrVerificationTokenExpired = errors.New("verification token expired")
	// ErrResetTokenInvalid is returned for unknown reset tokens.
	ErrResetTokenInvalid = errors.New("invalid password reset token")
	// ErrResetTokenExpired is returned for expired reset tokens.
	ErrResetTokenExpired = errors.New("password reset token expired")
	// ErrTwoFactorInvalid is returned when neither a TOTP nor a backup code matched.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorRateLimited is returned once the attempt limiter trips.
	ErrTwoFactorRateLimited = errors.New("too many two-factor attempts")
	// ErrTwoFactorAlreadyEnabled is returned by setup and confirm.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorNotEnabled is returned by flows that need 2FA on.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTokenInvalid covers bad signatures, wrong kinds and expired tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens present in the revocation ledger.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrPermissionDenied is returned by permission guards.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable wraps storage, cache and limiter failures. Callers may retry.
	ErrUnavailable = errors.New("service unavailable")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrFederationFailed is the root of every federated login failure.
	ErrFederationFailed = federation.ErrFederationFailed
	// ErrUnknownProvider is returned for provider names that were never registered.
	ErrUnknownProvider = federation.ErrUnknownProvider
)

// Store errors. AccountStore, RoleStore and LinkedAccountStore
// implementations return these so the Engine can tell a miss from an outage.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing one")
)

// LockedError reports a login refused because the account is locked.
type LockedError struct {
	Remaining time.Duration
	// JustLocked is true when this attempt crossed the threshold.
	JustLocked bool
}

// Minutes is Remaining rounded up to whole minutes.
func (e *LockedError) Minutes() int {
	m := int((e.Remaining + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return fmt.Sprintf("too many failed attempts, account locked for %d minutes", e.Minutes())
	}
	return fmt.Sprintf("account is locked, try again in %d minutes", e.Minutes())
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// Kind groups errors by how a boundary layer should answer them.
type Kind int

const (
	KindNone Kind = iota
	// KindValidation: malformed input, rejected before any mutation.
	KindValidation
	// KindAuthentication: bad credentials, codes, tokens or federation state.
	KindAuthentication
	// KindAuthorization: a safe-to-disclose state refusal (locked, deactivated, ...).
	KindAuthorization
	// KindUnavailable: an upstream collaborator failed; retry is reasonable.
	KindUnavailable
	// KindInternal: everything else.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// ErrorKind classifies err. Token failures are authentication failures.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, federation.ErrExchangeFailed),
		errors.Is(err, federation.ErrProfileFailed):
		return KindUnavailable
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrUnknownProvider):
		return KindValidation
	case errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrAccountDeactivated),
		errors.Is(err, ErrAccountUnverifiedLink),
		errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotEnabled),
		errors.Is(err, ErrTwoFactorRateLimited),
		errors.Is(err, ErrPermissionDenied):
		return KindAuthorization
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTwoFactorInvalid),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrVerificationTokenInvalid),
		errors.Is(err, ErrVerificationTokenExpired),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrResetTokenExpired),
		errors.Is(err, ErrFederationFailed):
		return KindAuthentication
	default:
		return KindInternal
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
