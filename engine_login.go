package goIdentity

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"go.uber.org/zap"
)

// Login checks a password for identifier, which may be an email or a
// username. Unknown accounts and wrong passwords both fail with
// ErrInvalidCredentials. A locked account fails with *LockedError. When
// the account has 2FA enabled the result carries only the account id and
// MFARequired.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error) {
	if e == nil || e.directory == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(identifier) == "" || plaintext == "" {
		return nil, ErrInvalidCredentials
	}

	res := flows.RunPasswordLogin(ctx, identifier, plaintext, e.loginFlowDeps())
	if err := e.mapLoginFailure(ctx, res); err != nil {
		return nil, err
	}

	if res.MFARequired {
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditMFARequired, true, res.Account.AccountID, res.Account.AccountID, nil, nil)
		return &LoginResult{AccountID: res.Account.AccountID, MFARequired: true}, nil
	}

	pair, err := e.issuePair(ctx, &Account{ID: res.Account.AccountID, TenantID: res.Account.TenantID})
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, true, res.Account.AccountID, res.Account.AccountID, nil, nil)
	return &LoginResult{AccountID: res.Account.AccountID, Tokens: pair}, nil
}

func (e *Engine) mapLoginFailure(ctx context.Context, res flows.LoginResult) error {
	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		return nil
	case flows.LoginFailureNotFound, flows.LoginFailureInvalidCredentials:
		err = ErrInvalidCredentials
	case flows.LoginFailureLocked:
		e.metricInc(MetricLoginLocked)
		err = &LockedError{Remaining: res.LockRemaining}
	case flows.LoginFailureLockedNow:
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditAccountLocked, true, "", res.Account.AccountID, nil, func() map[string]string {
			return map[string]string{"failed_attempts": strconv.Itoa(res.Attempts)}
		})
		err = &LockedError{Remaining: res.LockRemaining, JustLocked: true}
	case flows.LoginFailureInactive:
		err = ErrAccountDeactivated
	case flows.LoginFailureVerify:
		// Only a cancelled context gets here.
		err = res.Err
	default:
		e.logger.Error("login store failure", zap.String("account_id", res.Account.AccountID), zap.Error(res.Err))
		err = unavailable(res.Err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditLoginFailure, false, "", res.Account.AccountID, err, nil)
	return err
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Threshold: e.config.Lockout.Threshold,
		Window:    e.config.Lockout.Window,
		Now:       e.now,
		FindAccount: func(ctx context.Context, identifier string) (flows.LoginAccount, error) {
			acct, err := e.directory.FindByLogin(ctx, identifier)
			if err != nil {
				return flows.LoginAccount{}, err
			}
			return toFlowLoginAccount(acct), nil
		},
		NotFound:        ErrNotFound,
		VerifyPassword:  e.hasher.Verify,
		DummyVerify:     e.dummyVerify,
		IncrementFailed: e.directory.IncrementFailedLogins,
		Lock:            e.directory.Lock,
		ResetFailed:     e.directory.ResetFailedLogins,
		RecordLogin:     e.directory.RecordLogin,
		AfterVerify:     e.upgradePasswordHash,
	}
}

func toFlowLoginAccount(acct *Account) flows.LoginAccount {
	return flows.LoginAccount{
		AccountID:        acct.ID,
		TenantID:         acct.TenantID,
		PasswordHash:     acct.PasswordHash,
		Active:           acct.Active,
		FailedAttempts:   acct.FailedLoginAttempts,
		LockedAt:         cloneTime(acct.LockedAt),
		TwoFactorEnabled: acct.TwoFactorEnabled,
	}
}

// upgradePasswordHash rehashes with the current parameters after a
// successful check. Failures keep the old hash.
func (e *Engine) upgradePasswordHash(ctx context.Context, acct flows.LoginAccount, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(ctx, plaintext)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("account_id", acct.AccountID), zap.Error(err))
		return
	}
	if err := e.directory.Update(ctx, acct.AccountID, AccountUpdate{PasswordHash: &hash}); err != nil {
		e.logger.Warn("password rehash not persisted", zap.String("account_id", acct.AccountID), zap.Error(err))
	}
}

// VerifyTwoFactorLogin completes a login that returned MFARequired. code
// is tried as a TOTP code first, then as a backup code, which is consumed.
func (e *Engine) VerifyTwoFactorLogin(ctx context.Context, accountID, code string) (*TokenPair, error) {
	if e == nil || e.directory == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" || strings.TrimSpace(code) == "" {
		return nil, ErrTwoFactorInvalid
	}

	acct, err := e.directory.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTwoFactorInvalid
		}
		return nil, unavailable(err)
	}
	if !acct.TwoFactorEnabled || acct.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotEnabled
	}
	if !acct.Active {
		return nil, ErrAccountDeactivated
	}

	res := flows.RunVerifySecondFactor(ctx, acct.ID, acct.TwoFactorSecret, code, e.secondFactorFlowDeps())
	switch res.Failure {
	case flows.SecondFactorFailureNone:
	case flows.SecondFactorFailureRateLimited:
		e.metricInc(MetricMFARateLimited)
		e.emitAudit(ctx, auditMFAFailure, false, acct.ID, acct.ID, ErrTwoFactorRateLimited, nil)
		return nil, ErrTwoFactorRateLimited
	case flows.SecondFactorFailureUnavailable:
		e.emitAudit(ctx, auditMFAFailure, false, acct.ID, acct.ID, ErrUnavailable, nil)
		return nil, unavailable(res.Err)
	default:
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditMFAFailure, false, acct.ID, acct.ID, ErrTwoFactorInvalid, nil)
		return nil, ErrTwoFactorInvalid
	}

	if res.Method == flows.MethodBackupCode {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditBackupCodeUsed, true, acct.ID, acct.ID, nil, nil)
	}

	pair, err := e.issuePair(ctx, acct)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, auditMFASuccess, true, acct.ID, acct.ID, nil, func() map[string]string {
		return map[string]string{"method": res.Method}
	})
	return pair, nil
}

func (e *Engine) secondFactorFlowDeps() flows.SecondFactorDeps {
	deps := flows.SecondFactorDeps{
		VerifyTOTP: func(secret, code string) bool {
			return e.totp.VerifyAt(secret, code, e.now())
		},
		ConsumeBackupCode: e.directory.ConsumeBackupCode,
	}
	if e.limiter != nil {
		deps.CheckLimiter = e.limiter.Check
		deps.RecordFailure = e.limiter.RecordFailure
		deps.ResetLimiter = e.limiter.Reset
		deps.IsRateLimited = func(err error) bool { return errors.Is(err, limiters.ErrRateLimited) }
	}
	return deps
}

// verifyCurrentTOTP checks code against the account's enabled secret.
// Backup codes are not accepted here.
func (e *Engine) verifyCurrentTOTP(ctx context.Context, acct *Account, code string) error {
	if e.limiter != nil {
		if err := e.limiter.Check(ctx, acct.ID); err != nil {
			return e.limiterError(err)
		}
	}
	if e.totp.VerifyAt(acct.TwoFactorSecret, code, e.now()) {
		if e.limiter != nil {
			_ = e.limiter.Reset(ctx, acct.ID)
		}
		return nil
	}
	if e.limiter != nil {
		if err := e.limiter.RecordFailure(ctx, acct.ID); err != nil && !errors.Is(err, limiters.ErrRateLimited) {
			return unavailable(err)
		}
	}
	return ErrTwoFactorInvalid
}

func (e *Engine) limiterError(err error) error {
	if errors.Is(err, limiters.ErrRateLimited) {
		e.metricInc(MetricMFARateLimited)
		return ErrTwoFactorRateLimited
	}
	return unavailable(err)
}
