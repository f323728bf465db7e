package goIdentity

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"go.uber.org/zap"
)

// Refresh mints a new access token from a refresh token, with roles and
// permissions reloaded from the store. The refresh token is not rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	if e == nil || e.signer == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.refreshFlowDeps())
	var err error
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditRefreshSuccess, true, res.AccountID, res.AccountID, nil, nil)
		return &AccessToken{Token: res.AccessToken, ExpiresAt: res.AccessClaims.Expiry()}, nil
	case flows.RefreshFailureInvalid, flows.RefreshFailureAccountMissing:
		err = ErrTokenInvalid
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricTokenRevoked)
		err = ErrTokenRevoked
	case flows.RefreshFailureAccountInactive:
		err = ErrAccountDeactivated
	case flows.RefreshFailureIssueAccess:
		err = res.Err
	default:
		e.logger.Error("refresh dependency failure", zap.String("account_id", res.AccountID), zap.Error(res.Err))
		err = unavailable(res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditRefreshFailure, false, res.AccountID, res.AccountID, err, nil)
	return nil, err
}

func (e *Engine) refreshFlowDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		ValidateRefresh: e.signer.ValidateRefresh,
		IsRevoked:       e.ledger.IsRevoked,
		LoadAccount: func(ctx context.Context, accountID string) (flows.RefreshAccount, error) {
			acct, err := e.directory.FindByID(ctx, accountID)
			if err != nil {
				return flows.RefreshAccount{}, err
			}
			return flows.RefreshAccount{AccountID: acct.ID, TenantID: acct.TenantID, Active: acct.Active}, nil
		},
		NotFound:        ErrNotFound,
		LoadRoles:       e.directory.Roles,
		LoadPermissions: e.directory.Permissions,
		IssueAccess:     e.signer.IssueAccess,
	}
}

// Logout revokes the access token and, if given, the refresh token. Each
// token that still validates is added to the ledger until its own expiry;
// tokens that do not validate are skipped. Only a ledger failure is an
// error.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || e.signer == nil || e.ledger == nil {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, accessToken, refreshToken, flows.LogoutDeps{
		ValidateAccess:  e.signer.ValidateAccess,
		ValidateRefresh: e.signer.ValidateRefresh,
		Revoke:          e.ledger.Add,
	})
	if res.Err != nil {
		err := unavailable(res.Err)
		e.emitAudit(ctx, auditLogout, false, res.AccountID, res.AccountID, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	for range res.Revoked {
		e.metricInc(MetricTokensRevoked)
	}
	e.emitAudit(ctx, auditLogout, true, res.AccountID, res.AccountID, nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(len(res.Revoked))}
	})
	return nil
}

// ValidateAccessToken verifies the signature and expiry of an access token
// and checks the revocation ledger. Role and permission claims are the
// snapshot taken at issuance.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	if e == nil || e.signer == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.signer.ValidateAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	revoked, err := e.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	if revoked {
		e.metricInc(MetricTokenRevoked)
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// HasPermission reports whether claims carry perm.
func HasPermission(claims *Claims, perm string) bool {
	if claims == nil {
		return false
	}
	for _, p := range claims.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
