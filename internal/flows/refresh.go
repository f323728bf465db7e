package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalid
	RefreshFailureRevocationCheck
	RefreshFailureRevoked
	RefreshFailureAccountLookup
	RefreshFailureAccountMissing
	RefreshFailureAccountInactive
	RefreshFailureClaims
	RefreshFailureIssueAccess
)

// RefreshAccount is the account state refresh needs.
type RefreshAccount struct {
	AccountID string
	TenantID  string
	Active    bool
}

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	AccountID    string
	TenantID     string
	RefreshJTI   string
	AccessToken  string
	AccessClaims *jwt.Claims
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ValidateRefresh func(string) (*jwt.Claims, error)
	IsRevoked       func(ctx context.Context, jti string) (bool, error)
	LoadAccount     func(ctx context.Context, accountID string) (RefreshAccount, error)
	NotFound        error
	LoadRoles       func(ctx context.Context, accountID string) ([]string, error)
	LoadPermissions func(ctx context.Context, accountID string) ([]string, error)
	IssueAccess     func(accountID, tenantID string, roles, permissions []string) (string, *jwt.Claims, error)
}

// RunRefresh validates a refresh token and issues a new access token with
// live roles and permissions. The refresh token itself is not rotated.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.ValidateRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInvalid, Err: err}
	}
	res := RefreshResult{
		AccountID:  claims.AccountID(),
		TenantID:   claims.TenantID,
		RefreshJTI: claims.ID,
	}

	revoked, err := deps.IsRevoked(ctx, claims.ID)
	if err != nil {
		res.Failure, res.Err = RefreshFailureRevocationCheck, err
		return res
	}
	if revoked {
		res.Failure = RefreshFailureRevoked
		return res
	}

	acct, err := deps.LoadAccount(ctx, claims.AccountID())
	if err != nil {
		res.Failure, res.Err = RefreshFailureAccountLookup, err
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			res.Failure = RefreshFailureAccountMissing
		}
		return res
	}
	if !acct.Active {
		res.Failure = RefreshFailureAccountInactive
		return res
	}

	roles, err := deps.LoadRoles(ctx, acct.AccountID)
	if err != nil {
		res.Failure, res.Err = RefreshFailureClaims, err
		return res
	}
	perms, err := deps.LoadPermissions(ctx, acct.AccountID)
	if err != nil {
		res.Failure, res.Err = RefreshFailureClaims, err
		return res
	}

	tenantID := acct.TenantID
	if tenantID == "" {
		tenantID = claims.TenantID
	}
	access, accessClaims, err := deps.IssueAccess(acct.AccountID, tenantID, roles, perms)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssueAccess, err
		return res
	}

	res.AccessToken = access
	res.AccessClaims = accessClaims
	return res
}
