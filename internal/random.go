package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const opaqueTokenSize = 32

// ErrMalformedToken is returned by ParseOpaqueToken.
var ErrMalformedToken = errors.New("malformed opaque token")

// NewOpaqueToken returns a random base64url token for email verification
// and password reset links.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ParseOpaqueToken checks that token has the shape NewOpaqueToken produces.
func ParseOpaqueToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != opaqueTokenSize {
		return ErrMalformedToken
	}
	return nil
}

// HashOpaqueToken is the form stores keep. Only the holder of the link
// knows the plaintext.
func HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
