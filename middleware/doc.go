// Package middleware adapts Engine access-token validation to net/http.
//
// [Guard] reads the bearer token, calls Engine.ValidateAccessToken and stores
// the claims and tenant on the request context. [RequirePermission] and
// [RequireRole] sit behind Guard and only read those claims. Credential
// decisions stay in the Engine; this package only maps them to status codes.
package middleware
