// Package federation drives the OAuth2 authorization-code handshake with
// external identity providers and normalizes the profiles they return.
//
// Begin issues a fresh CSRF state and, for PKCE providers, a fresh
// verifier on every call. Complete rejects a mismatched state before any
// network traffic, then exchanges the code and fetches the profile under
// an explicit timeout.
package federation

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds each provider round trip.
	DefaultTimeout = 10 * time.Second
	stateBytes     = 32
	tracerName     = "github.com/MrEthical07/goIdentity/federation"
)

// Start is what the caller needs to redirect the user to the provider and
// later validate the callback.
type Start struct {
	Provider     string
	AuthorizeURL string
	State        string
	// Verifier is empty for providers without PKCE.
	Verifier string
}

// Callback carries the provider redirect parameters plus the values saved
// at Begin.
type Callback struct {
	Code          string
	ReturnedState string
	ExpectedState string
	Verifier      string
	// Error and ErrorDescription mirror the error and error_description
	// query parameters.
	Error            string
	ErrorDescription string
}

// Client talks to one provider. It is safe for concurrent use.
type Client struct {
	provider   Provider
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for exchange and profile calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each provider round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTracer sets the tracer used for exchange and profile spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithUserAgent overrides the User-Agent sent to profile endpoints.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient validates p and returns a Client.
func NewClient(p Provider, opts ...Option) (*Client, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		provider:   p,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		tracer:     otel.Tracer(tracerName),
		userAgent:  "goIdentity",
		oauth: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       append([]string(nil), p.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   p.AuthURL,
				TokenURL:  p.TokenURL,
				AuthStyle: p.AuthStyle,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return c.provider.Name }

// RequiresEmail reports whether the provider must supply an email.
func (c *Client) RequiresEmail() bool { return c.provider.RequireEmail }

// Username derives a local username for a profile.
func (c *Client) Username(p Profile) string { return c.provider.username(p) }

// Begin returns a new authorization URL with a fresh state and, for PKCE
// providers, a fresh verifier.
func (c *Client) Begin() (Start, error) {
	state, err := randomState()
	if err != nil {
		return Start{}, err
	}

	start := Start{Provider: c.provider.Name, State: state}
	var opts []oauth2.AuthCodeOption
	if c.provider.UsePKCE {
		start.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(start.Verifier))
	}
	start.AuthorizeURL = c.oauth.AuthCodeURL(state, opts...)
	return start, nil
}

// Complete validates the callback, exchanges the code and fetches the
// profile. State is checked before any network call.
func (c *Client) Complete(ctx context.Context, cb Callback) (*Tokens, *Profile, error) {
	if cb.ExpectedState == "" || subtle.ConstantTimeCompare([]byte(cb.ReturnedState), []byte(cb.ExpectedState)) != 1 {
		return nil, nil, ErrStateMismatch
	}
	if cb.Error != "" {
		msg := cb.Error
		if cb.ErrorDescription != "" {
			msg += ": " + cb.ErrorDescription
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrProviderError, msg)
	}
	if strings.TrimSpace(cb.Code) == "" {
		return nil, nil, ErrMissingCode
	}
	if c.provider.UsePKCE && cb.Verifier == "" {
		return nil, nil, ErrMissingVerifier
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tokens, err := c.exchange(ctx, cb)
	if err != nil {
		return nil, nil, err
	}

	profile, err := c.profile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	if c.provider.RequireEmail && profile.Email == "" {
		return nil, nil, fmt.Errorf("%w: %s did not provide an email address. Please make sure your email is public or verified with the provider", ErrEmailMissing, c.provider.Name)
	}
	return tokens, profile, nil
}

func (c *Client) exchange(ctx context.Context, cb Callback) (*Tokens, error) {
	ctx, span := c.tracer.Start(ctx, "federation.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("federation.provider", c.provider.Name)))
	defer span.End()

	var opts []oauth2.AuthCodeOption
	if c.provider.UsePKCE {
		opts = append(opts, oauth2.VerifierOption(cb.Verifier))
	}

	tok, err := c.oauth.Exchange(ctx, cb.Code, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		span.SetStatus(codes.Error, "empty access token")
		return nil, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}

	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

func (c *Client) profile(ctx context.Context, accessToken string) (*Profile, error) {
	ctx, span := c.tracer.Start(ctx, "federation.profile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("federation.provider", c.provider.Name)))
	defer span.End()

	p, err := c.fetchProfile(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrProfileFailed, c.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	return p, nil
}

func randomState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("federation: read state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
