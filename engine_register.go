package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

// Register creates an unverified account with a 24h verification token
// and returns its id. Default role assignment and notification are best
// effort.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if e == nil || e.directory == nil {
		return "", ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if !usernamePattern.MatchString(username) {
		return "", errInvalidField("username")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", errInvalidField("email")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if err := e.hasher.CheckPolicy(req.Password); err != nil {
		return "", passwordPolicyError(err)
	}

	for _, lookup := range []func() (*Account, error){
		func() (*Account, error) { return e.directory.FindByUsername(ctx, username) },
		func() (*Account, error) { return e.directory.FindByEmail(ctx, email) },
	} {
		_, err := lookup()
		if err == nil {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditRegister, false, "", "", ErrAccountExists, nil)
			return "", ErrAccountExists
		}
		if !errors.Is(err, ErrNotFound) {
			return "", unavailable(err)
		}
	}

	hash, err := e.hasher.Hash(ctx, req.Password)
	if err != nil {
		return "", err
	}
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	now := e.now()
	expires := now.Add(e.config.EmailVerification.TokenTTL)
	acct := &Account{
		ID:                    uuid.NewString(),
		TenantID:              tenantIDFromContext(ctx),
		Username:              username,
		Email:                 email,
		DisplayName:           displayName,
		PasswordHash:          hash,
		Active:                true,
		VerificationTokenHash: internal.HashOpaqueToken(token),
		VerificationExpiresAt: &expires,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := e.directory.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrConflict) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditRegister, false, "", "", ErrAccountExists, nil)
			return "", ErrAccountExists
		}
		return "", unavailable(err)
	}

	if err := e.directory.AssignDefaultRole(ctx, acct.ID); err != nil {
		e.logger.Warn("default role assignment failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
	e.sendVerification(ctx, acct, token)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRegister, true, acct.ID, acct.ID, nil, func() map[string]string {
		return map[string]string{"username": username}
	})
	return acct.ID, nil
}

// VerifyEmail marks the account owning token as verified and clears the token.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}
	if internal.ParseOpaqueToken(token) != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrVerificationTokenInvalid
	}

	acct, err := e.directory.FindByVerificationToken(ctx, internal.HashOpaqueToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEmailVerified, false, "", "", ErrVerificationTokenInvalid, nil)
			return ErrVerificationTokenInvalid
		}
		return unavailable(err)
	}
	if acct.VerificationExpiresAt == nil || !e.now().Before(*acct.VerificationExpiresAt) {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEmailVerified, false, acct.ID, acct.ID, ErrVerificationTokenExpired, nil)
		return ErrVerificationTokenExpired
	}

	verified := true
	if err := e.directory.Update(ctx, acct.ID, AccountUpdate{
		Verified:     &verified,
		Verification: &TokenUpdate{},
	}); err != nil {
		return unavailable(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEmailVerified, true, acct.ID, acct.ID, nil, nil)
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. Unknown and already verified emails succeed silently.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}

	acct, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return unavailable(err)
	}
	if acct.Verified {
		return nil
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := e.directory.Update(ctx, acct.ID, AccountUpdate{
		Verification: &TokenUpdate{
			Hash:      internal.HashOpaqueToken(token),
			ExpiresAt: e.now().Add(e.config.EmailVerification.TokenTTL),
		},
	}); err != nil {
		return unavailable(err)
	}

	e.sendVerification(ctx, acct, token)
	e.emitAudit(ctx, auditVerificationResent, true, acct.ID, acct.ID, nil, nil)
	return nil
}

func (e *Engine) sendVerification(ctx context.Context, acct *Account, token string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendVerification(ctx, *acct, token); err != nil {
		e.logger.Warn("verification notification failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
}

func errInvalidField(field string) error {
	return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, field)
}

func passwordPolicyError(err error) error {
	if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	return err
}
