// Package internal contains helpers that are private to goIdentity.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cache: read-through permission cache
//   - flows: pure-function flow orchestrators for login, 2FA, refresh, logout
//   - limiters: Redis-backed second-factor attempt limiter
//
// This package itself only generates and hashes opaque tokens for email
// verification and password reset links.
package internal
