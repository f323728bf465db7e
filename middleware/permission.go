package middleware

import (
	"net/http"
	"slices"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// RequirePermission answers 403 unless the guarded claims carry perm.
// It must be mounted behind Guard; without claims it answers 401.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return requireClaims(func(claims *goIdentity.Claims) bool {
		return goIdentity.HasPermission(claims, perm)
	})
}

// RequireRole answers 403 unless the guarded claims carry role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return requireClaims(func(claims *goIdentity.Claims) bool {
		return slices.Contains(claims.Roles, role)
	})
}

func requireClaims(allow func(*goIdentity.Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allow(claims) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
