package goIdentity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/federation"
)

func TestLockedErrorMinutesRoundUp(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      int
	}{
		{0, 1},
		{time.Second, 1},
		{time.Minute, 1},
		{time.Minute + time.Second, 2},
		{29*time.Minute + 59*time.Second, 30},
		{30 * time.Minute, 30},
	}
	for _, tc := range cases {
		e := &LockedError{Remaining: tc.remaining}
		if got := e.Minutes(); got != tc.want {
			t.Fatalf("Minutes(%v) = %d, want %d", tc.remaining, got, tc.want)
		}
	}
}

func TestLockedErrorWrapsSentinel(t *testing.T) {
	var err error = fmt.Errorf("login: %w", &LockedError{Remaining: 90 * time.Second})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected errors.Is(err, ErrAccountLocked)")
	}
	var locked *LockedError
	if !errors.As(err, &locked) || locked.Minutes() != 2 {
		t.Fatalf("expected LockedError with 2 minutes, got %v", err)
	}
	if msg := locked.Error(); msg != "account is locked, try again in 2 minutes" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{errInvalidField("email"), KindValidation},
		{ErrAccountExists, KindValidation},
		{ErrInvalidCredentials, KindAuthentication},
		{ErrTokenRevoked, KindAuthentication},
		{federation.ErrStateMismatch, KindAuthentication},
		{&LockedError{}, KindAuthorization},
		{ErrAccountUnverifiedLink, KindAuthorization},
		{ErrTwoFactorRateLimited, KindAuthorization},
		{unavailable(errors.New("dial tcp: refused")), KindUnavailable},
		{federation.ErrExchangeFailed, KindUnavailable},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
