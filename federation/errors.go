package federation

import (
	"errors"
	"fmt"
)

// ErrFederationFailed is the root of every handshake failure. Callers that
// do not care about the sub-kind match on it alone.
var ErrFederationFailed = errors.New("federation failed")

var (
	// ErrStateMismatch is returned when the callback state does not match the
	// state issued by Begin. No network call is made.
	ErrStateMismatch = fmt.Errorf("%w: Invalid state token - CSRF protection triggered", ErrFederationFailed)
	// ErrProviderError is returned when the provider redirected back with an error parameter.
	ErrProviderError = fmt.Errorf("%w: provider returned an error", ErrFederationFailed)
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = fmt.Errorf("%w: missing authorization code", ErrFederationFailed)
	// ErrMissingVerifier is returned when a PKCE provider callback has no verifier.
	ErrMissingVerifier = fmt.Errorf("%w: missing PKCE verifier", ErrFederationFailed)
	// ErrExchangeFailed wraps token endpoint failures, including timeouts.
	ErrExchangeFailed = fmt.Errorf("%w: token exchange failed", ErrFederationFailed)
	// ErrProfileFailed wraps profile endpoint failures, including timeouts.
	ErrProfileFailed = fmt.Errorf("%w: profile fetch failed", ErrFederationFailed)
	// ErrEmailMissing is returned when a provider that must supply an email did not.
	ErrEmailMissing = fmt.Errorf("%w: provider did not supply an email address", ErrFederationFailed)
)

// ErrUnknownProvider is returned when no client is registered under a name.
var ErrUnknownProvider = errors.New("federation: unknown provider")
