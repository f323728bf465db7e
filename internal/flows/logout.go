package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ValidateAccess  func(string) (*jwt.Claims, error)
	ValidateRefresh func(string) (*jwt.Claims, error)
	Revoke          func(ctx context.Context, jti string, expiresAt time.Time) error
}

// LogoutResult lists what was revoked. Err is set only when the ledger
// write failed; tokens that do not validate are skipped silently.
type LogoutResult struct {
	AccountID string
	TenantID  string
	Revoked   []string
	Err       error
}

// RunLogout revokes every supplied token that still validates, each with
// its own expiry. An empty refresh token is ignored.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	revoke := func(claims *jwt.Claims) {
		if res.Err != nil {
			return
		}
		if res.AccountID == "" {
			res.AccountID = claims.AccountID()
			res.TenantID = claims.TenantID
		}
		if err := deps.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
			res.Err = err
			return
		}
		res.Revoked = append(res.Revoked, claims.ID)
	}

	if accessToken != "" {
		if claims, err := deps.ValidateAccess(accessToken); err == nil {
			revoke(claims)
		}
	}
	if refreshToken != "" {
		if claims, err := deps.ValidateRefresh(refreshToken); err == nil {
			revoke(claims)
		}
	}
	return res
}
