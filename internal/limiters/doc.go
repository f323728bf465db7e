// Package limiters provides the Redis-backed attempt limiter guarding
// second-factor verification.
//
// The limiter only counts. Flow functions decide what a limit means for
// the caller. A nil *SecondFactorLimiter is valid and never limits.
package limiters
