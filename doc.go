// Package goIdentity is a multi-tenant credential and session lifecycle
// engine: registration, email verification, password login with lockout,
// TOTP second factor with single-use backup codes, stateless JWT sessions
// with a revocation ledger, password reset and federated OAuth2 login with
// account linking.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder],
// [Config], [Directory], the storage interfaces ([AccountStore],
// [RoleStore], [LinkedAccountStore], [Notifier]) and value types. Flow
// orchestration, permission caching, attempt limiting and audit dispatch
// live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Serve HTTP or serialize requests. The middleware package is a thin
//     guard, not a router.
//   - Administer roles or permissions beyond assignment, which exists so the
//     permission cache can be invalidated.
//   - Import any sub-package that re-imports goIdentity (no import cycles).
package goIdentity
