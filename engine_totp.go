package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// SetupTwoFactor generates a fresh TOTP secret and its provisioning URI.
// Nothing is persisted until ConfirmTwoFactor succeeds.
func (e *Engine) SetupTwoFactor(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	label := acct.Email
	if label == "" {
		label = acct.Username
	}
	uri, err := e.totp.ProvisioningURI(secret, label, e.config.TOTP.Issuer)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditTwoFactorSetup, true, acct.ID, acct.ID, nil, nil)
	return &TwoFactorSetup{Secret: secret, ProvisioningURI: uri}, nil
}

// ConfirmTwoFactor enables 2FA once code verifies against secret, the value
// SetupTwoFactor returned. It returns the plaintext backup codes, which are
// never shown again.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, accountID, secret, code string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errInvalidField("secret")
	}
	acct, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if !e.totp.VerifyAt(secret, code, e.now()) {
		e.emitAudit(ctx, auditTwoFactorEnabled, false, acct.ID, acct.ID, ErrTwoFactorInvalid, nil)
		return nil, ErrTwoFactorInvalid
	}

	codes, hashes, err := flows.GenerateBackupCodes(acct.ID, e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength, nil)
	if err != nil {
		return nil, err
	}
	err = e.directory.Update(ctx, acct.ID, AccountUpdate{
		TwoFactor: &TwoFactorUpdate{Secret: secret, Enabled: true, BackupCodes: hashes},
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditTwoFactorEnabled, true, acct.ID, acct.ID, nil, nil)
	return codes, nil
}

// DisableTwoFactor turns 2FA off after a valid TOTP code. Backup codes are
// not accepted. Secret and backup codes are cleared.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	acct, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if err := e.verifyCurrentTOTP(ctx, acct, code); err != nil {
		e.emitAudit(ctx, auditTwoFactorDisabled, false, acct.ID, acct.ID, err, nil)
		return err
	}

	if err := e.directory.Update(ctx, acct.ID, AccountUpdate{TwoFactor: &TwoFactorUpdate{}}); err != nil {
		return e.storeError(err)
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditTwoFactorDisabled, true, acct.ID, acct.ID, nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the whole backup code set after a valid
// TOTP code and returns the new plaintext codes.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, code string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	if err := e.verifyCurrentTOTP(ctx, acct, code); err != nil {
		e.emitAudit(ctx, auditBackupCodesRegenerate, false, acct.ID, acct.ID, err, nil)
		return nil, err
	}

	codes, hashes, err := flows.GenerateBackupCodes(acct.ID, e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength, nil)
	if err != nil {
		return nil, err
	}
	err = e.directory.Update(ctx, acct.ID, AccountUpdate{
		TwoFactor: &TwoFactorUpdate{Secret: acct.TwoFactorSecret, Enabled: true, BackupCodes: hashes},
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditBackupCodesRegenerate, true, acct.ID, acct.ID, nil, nil)
	return codes, nil
}

// loadAccount fetches an account by id, mapping a miss to ErrInvalidInput.
func (e *Engine) loadAccount(ctx context.Context, accountID string) (*Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errInvalidField("account id")
	}
	acct, err := e.directory.FindByID(ctx, accountID)
	if err != nil {
		return nil, e.storeError(err)
	}
	return acct, nil
}

func (e *Engine) storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidInput
	}
	return unavailable(err)
}
