package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/federation"
	"github.com/MrEthical07/goIdentity/internal/audit"
)

type auditAction struct {
	eventType string
	resource  string
	action    string
}

var (
	auditRegister              = auditAction{"account_registered", "account", "register"}
	auditEmailVerified         = auditAction{"email_verified", "account", "verify_email"}
	auditVerificationResent    = auditAction{"verification_resent", "account", "resend_verification"}
	auditLoginSuccess          = auditAction{"login_success", "session", "login"}
	auditLoginFailure          = auditAction{"login_failure", "session", "login"}
	auditAccountLocked         = auditAction{"account_locked", "account", "lock"}
	auditMFARequired           = auditAction{"mfa_required", "session", "login"}
	auditMFASuccess            = auditAction{"mfa_success", "session", "verify_2fa"}
	auditMFAFailure            = auditAction{"mfa_failure", "session", "verify_2fa"}
	auditBackupCodeUsed        = auditAction{"backup_code_used", "two_factor", "consume_backup_code"}
	auditRefreshSuccess        = auditAction{"refresh_success", "session", "refresh"}
	auditRefreshFailure        = auditAction{"refresh_failure", "session", "refresh"}
	auditLogout                = auditAction{"logout", "session", "logout"}
	auditTwoFactorSetup        = auditAction{"totp_setup_requested", "two_factor", "setup"}
	auditTwoFactorEnabled      = auditAction{"totp_enabled", "two_factor", "confirm"}
	auditTwoFactorDisabled     = auditAction{"totp_disabled", "two_factor", "disable"}
	auditBackupCodesRegenerate = auditAction{"backup_codes_generated", "two_factor", "regenerate_backup_codes"}
	auditPasswordResetRequest  = auditAction{"password_reset_request", "account", "forgot_password"}
	auditPasswordResetConfirm  = auditAction{"password_reset_confirm", "account", "reset_password"}
	auditFederatedLogin        = auditAction{"federated_login", "session", "federated_login"}
	auditFederatedLinked       = auditAction{"federated_account_linked", "linked_account", "link"}
	auditRoleAssigned          = auditAction{"role_assigned", "role", "assign"}
	auditRoleRemoved           = auditAction{"role_removed", "role", "remove"}
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountDeactivated AuditErrorCode = "account_deactivated"
	auditErrUnverifiedLink     AuditErrorCode = "account_unverified"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrTwoFactorInvalid   AuditErrorCode = "two_factor_invalid"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTwoFactorState     AuditErrorCode = "two_factor_state"
	auditErrStateMismatch      AuditErrorCode = "state_mismatch"
	auditErrProviderError      AuditErrorCode = "provider_error"
	auditErrFederation         AuditErrorCode = "federation_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	a auditAction,
	success bool,
	actorID string,
	targetID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: a.eventType,
		ActorID:   actorID,
		TargetID:  targetID,
		TenantID:  tenantIDFromContext(ctx),
		Resource:  a.resource,
		Action:    a.action,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDeactivated):
		return auditErrAccountDeactivated
	case errors.Is(err, ErrAccountUnverifiedLink):
		return auditErrUnverifiedLink
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrVerificationTokenExpired),
		errors.Is(err, ErrResetTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrVerificationTokenInvalid),
		errors.Is(err, ErrResetTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTwoFactorInvalid):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorState
	case errors.Is(err, federation.ErrStateMismatch):
		return auditErrStateMismatch
	case errors.Is(err, federation.ErrProviderError):
		return auditErrProviderError
	case errors.Is(err, ErrFederationFailed):
		return auditErrFederation
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
