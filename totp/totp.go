// Package totp implements RFC 6238 time-based one-time passwords for
// second-factor login.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config controls code generation. Zero values fall back to the standard
// 30-second period, 6 digits, one step of skew and SHA1.
type Config struct {
	Issuer    string
	Algorithm string
	Digits    int
	Period    uint
	Skew      uint
}

// Engine generates secrets and verifies codes. It holds no mutable state.
type Engine struct {
	issuer string
	opts   totp.ValidateOpts
	now    func() time.Time
}

// New returns an Engine for cfg.
func New(cfg Config) (*Engine, error) {
	algo, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	opts := totp.ValidateOpts{
		Period:    cfg.Period,
		Skew:      cfg.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: algo,
	}
	switch cfg.Digits {
	case 0, 6:
	case 8:
		opts.Digits = otp.DigitsEight
	default:
		return nil, fmt.Errorf("totp: unsupported digit count %d", cfg.Digits)
	}
	if opts.Period == 0 {
		opts.Period = 30
	}
	if cfg.Skew == 0 {
		opts.Skew = 1
	}
	if opts.Skew > 2 {
		return nil, errors.New("totp: skew must be <= 2")
	}

	return &Engine{issuer: cfg.Issuer, opts: opts, now: time.Now}, nil
}

// GenerateSecret returns a fresh base32 secret without padding.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("totp: read secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI renders the otpauth:// URI authenticator apps scan.
// An empty issuer falls back to the configured one.
func (e *Engine) ProvisioningURI(secret, account, issuer string) (string, error) {
	if issuer == "" {
		issuer = e.issuer
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      e.opts.Period,
		Secret:      raw,
		Digits:      e.opts.Digits,
		Algorithm:   e.opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("totp: build uri: %w", err)
	}
	return key.URL(), nil
}

// Verify checks code against secret at the current time.
func (e *Engine) Verify(secret, code string) bool {
	return e.VerifyAt(secret, code, e.now())
}

// VerifyAt checks code against secret at t. Malformed secrets and codes
// are reported as false.
func (e *Engine) VerifyAt(secret, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != e.opts.Digits.Length() || !isDigits(code) {
		return false
	}
	if _, err := decodeSecret(secret); err != nil {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, t, e.opts)
	return err == nil && ok
}

// Code returns the code for secret at t.
func (e *Engine) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, e.opts)
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	raw, err := b32.DecodeString(secret)
	if err != nil || len(raw) == 0 {
		return nil, errors.New("totp: malformed secret")
	}
	return raw, nil
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("totp: unsupported algorithm %q", name)
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
