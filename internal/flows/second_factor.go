package flows

import (
	"context"
)

// SecondFactorFailureKind classifies 2FA login verification failures.
type SecondFactorFailureKind int

const (
	SecondFactorFailureNone SecondFactorFailureKind = iota
	SecondFactorFailureRateLimited
	SecondFactorFailureUnavailable
	SecondFactorFailureInvalid
)

// Second-factor methods reported on success.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

// SecondFactorResult reports which method matched, if any.
type SecondFactorResult struct {
	Failure SecondFactorFailureKind
	Err     error
	Method  string
}

// SecondFactorDeps captures 2FA verification dependencies. Limiter hooks
// are optional.
type SecondFactorDeps struct {
	VerifyTOTP        func(secret, code string) bool
	ConsumeBackupCode func(ctx context.Context, accountID, codeHash string) (bool, error)

	CheckLimiter  func(ctx context.Context, accountID string) error
	RecordFailure func(ctx context.Context, accountID string) error
	ResetLimiter  func(ctx context.Context, accountID string) error
	IsRateLimited func(error) bool
}

// RunVerifySecondFactor tries code as a TOTP code first, then as a backup
// code. A matching backup code is consumed by the store in one atomic
// update, so it can succeed at most once.
func RunVerifySecondFactor(ctx context.Context, accountID, secret, code string, deps SecondFactorDeps) SecondFactorResult {
	if deps.CheckLimiter != nil {
		if err := deps.CheckLimiter(ctx, accountID); err != nil {
			return limiterFailure(err, deps)
		}
	}

	method := ""
	if secret != "" && deps.VerifyTOTP(secret, code) {
		method = MethodTOTP
	} else if canonical := CanonicalizeBackupCode(code); canonical != "" {
		ok, err := deps.ConsumeBackupCode(ctx, accountID, BackupCodeHash(accountID, canonical))
		if err != nil {
			return SecondFactorResult{Failure: SecondFactorFailureUnavailable, Err: err}
		}
		if ok {
			method = MethodBackupCode
		}
	}

	if method == "" {
		if deps.RecordFailure != nil {
			if err := deps.RecordFailure(ctx, accountID); err != nil {
				return limiterFailure(err, deps)
			}
		}
		return SecondFactorResult{Failure: SecondFactorFailureInvalid}
	}

	if deps.ResetLimiter != nil {
		_ = deps.ResetLimiter(ctx, accountID)
	}
	return SecondFactorResult{Method: method}
}

func limiterFailure(err error, deps SecondFactorDeps) SecondFactorResult {
	if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
		return SecondFactorResult{Failure: SecondFactorFailureRateLimited, Err: err}
	}
	return SecondFactorResult{Failure: SecondFactorFailureUnavailable, Err: err}
}
