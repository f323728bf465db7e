package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretBytes = 32

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	// KindAccess marks short-lived tokens presented on each request.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens used only to mint access tokens.
	KindRefresh Kind = "refresh"
)

// ErrInvalid is returned for any token that fails validation: bad
// signature, malformed structure, wrong kind, wrong issuer or audience, or
// an expiry in the past.
var ErrInvalid = errors.New("invalid token")

// Config holds signing secrets and token lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Claims is the payload of both token kinds. Roles and Permissions are
// only populated on access tokens.
type Claims struct {
	Kind        Kind     `json:"typ"`
	TenantID    string   `json:"tid,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// Expiry returns the token's natural expiry.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Manager issues and validates tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.AccessSecret) < minSecretBytes || len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("signing secrets must be at least %d bytes", minSecretBytes)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess signs an access token carrying the role and permission snapshot.
func (m *Manager) IssueAccess(accountID, tenantID string, roles, permissions []string) (string, *Claims, error) {
	claims := m.newClaims(KindAccess, accountID, tenantID, m.config.AccessTTL)
	claims.Roles = append([]string(nil), roles...)
	claims.Permissions = append([]string(nil), permissions...)
	return m.sign(claims, m.config.AccessSecret)
}

// IssueRefresh signs a refresh token for accountID.
func (m *Manager) IssueRefresh(accountID, tenantID string) (string, *Claims, error) {
	return m.sign(m.newClaims(KindRefresh, accountID, tenantID, m.config.RefreshTTL), m.config.RefreshSecret)
}

// ValidateAccess verifies an access token against the access secret.
func (m *Manager) ValidateAccess(token string) (*Claims, error) {
	return m.parse(token, KindAccess, m.config.AccessSecret)
}

// ValidateRefresh verifies a refresh token against the refresh secret.
func (m *Manager) ValidateRefresh(token string) (*Claims, error) {
	return m.parse(token, KindRefresh, m.config.RefreshSecret)
}

func (m *Manager) newClaims(kind Kind, accountID, tenantID string, ttl time.Duration) *Claims {
	now := m.config.Now()
	claims := &Claims{
		Kind:     kind,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return claims
}

func (m *Manager) sign(claims *Claims, secret []byte) (string, *Claims, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("jwt: sign %s token: %w", claims.Kind, err)
	}
	return signed, claims, nil
}

func (m *Manager) parse(tokenStr string, kind Kind, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid || claims.Kind != kind || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}

	return claims, nil
}
