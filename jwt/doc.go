// Package jwt signs and validates session tokens.
//
// Two token kinds exist. Access tokens are short-lived and carry a snapshot
// of the account's role and permission names. Refresh tokens are long-lived
// and carry only the subject. Each kind is signed with its own HS256 secret,
// so holding one secret never lets a caller forge the other kind. Every token
// gets a fresh UUID jti that the revocation ledger keys on.
package jwt
