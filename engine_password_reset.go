package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal"
	"go.uber.org/zap"
)

// ForgotPassword issues a one-hour reset token and hands it to the
// Notifier. The result is nil whether or not the email belongs to an
// account, so callers cannot enumerate registered addresses.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}
	e.metricInc(MetricPasswordResetRequest)

	acct, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, auditPasswordResetRequest, true, "", "", nil, nil)
			return nil
		}
		return unavailable(err)
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := e.directory.Update(ctx, acct.ID, AccountUpdate{
		Reset: &TokenUpdate{
			Hash:      internal.HashOpaqueToken(token),
			ExpiresAt: e.now().Add(e.config.PasswordReset.TokenTTL),
		},
	}); err != nil {
		return unavailable(err)
	}

	if e.notifier != nil {
		if err := e.notifier.SendPasswordReset(ctx, *acct, token); err != nil {
			e.logger.Warn("password reset notification failed", zap.String("account_id", acct.ID), zap.Error(err))
		}
	}
	e.emitAudit(ctx, auditPasswordResetRequest, true, "", acct.ID, nil, nil)
	return nil
}

// ResetPassword sets a new password for the account owning token. The
// token is cleared and any lockout is lifted in the same update.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil || e.directory == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	if internal.ParseOpaqueToken(token) != nil {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}

	acct, err := e.directory.FindByResetToken(ctx, internal.HashOpaqueToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditPasswordResetConfirm, false, "", "", ErrResetTokenInvalid, nil)
			return ErrResetTokenInvalid
		}
		return unavailable(err)
	}
	if acct.ResetExpiresAt == nil || !e.now().Before(*acct.ResetExpiresAt) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordResetConfirm, false, acct.ID, acct.ID, ErrResetTokenExpired, nil)
		return ErrResetTokenExpired
	}
	if err := e.hasher.CheckPolicy(newPassword); err != nil {
		return passwordPolicyError(err)
	}

	hash, err := e.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := e.directory.Update(ctx, acct.ID, AccountUpdate{
		PasswordHash: &hash,
		Reset:        &TokenUpdate{},
		ClearLockout: true,
	}); err != nil {
		return unavailable(err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordResetConfirm, true, acct.ID, acct.ID, nil, nil)
	return nil
}
