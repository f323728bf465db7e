package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fakeProvider struct {
	server       *httptest.Server
	hits         atomic.Int64
	lastVerifier atomic.Value
	profile      map[string]any
	emails       []providerEmail
	delay        time.Duration
}

func newFakeProvider(t *testing.T, profile map[string]any) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{profile: profile}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		if fp.delay > 0 {
			time.Sleep(fp.delay)
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		fp.lastVerifier.Store(r.Form.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-at","refresh_token":"provider-rt","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer provider-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.profile)
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.emails)
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) provider(name string, pkce bool) Provider {
	return Provider{
		Name:         name,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/callback",
		AuthURL:      fp.server.URL + "/authorize",
		TokenURL:     fp.server.URL + "/token",
		UserInfoURL:  fp.server.URL + "/userinfo",
		Scopes:       []string{"openid", "email"},
		AuthStyle:    oauth2.AuthStyleInParams,
		UsePKCE:      pkce,
		RequireEmail: true,
	}
}

func newTestClient(t *testing.T, p Provider, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(p, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestBeginIssuesFreshStateAndPKCE(t *testing.T) {
	fp := newFakeProvider(t, nil)
	c := newTestClient(t, fp.provider("google", true))

	a, err := c.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	b, err := c.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if a.State == b.State || a.Verifier == b.Verifier {
		t.Fatal("expected fresh state and verifier per call")
	}
	if a.Verifier == "" {
		t.Fatal("expected PKCE verifier")
	}

	u, err := url.Parse(a.AuthorizeURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("state") != a.State || q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("unexpected authorize query: %v", q)
	}
	if q.Get("code_challenge") == a.Verifier {
		t.Fatal("challenge must not equal the verifier")
	}
	if fp.hits.Load() != 0 {
		t.Fatal("Begin must not contact the provider")
	}
}

func TestBeginWithoutPKCE(t *testing.T) {
	fp := newFakeProvider(t, nil)
	c := newTestClient(t, fp.provider("github", false))

	start, err := c.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if start.Verifier != "" {
		t.Fatal("expected no verifier for non-PKCE provider")
	}
	u, _ := url.Parse(start.AuthorizeURL)
	if u.Query().Get("code_challenge") != "" {
		t.Fatal("unexpected code_challenge for non-PKCE provider")
	}
}

func TestCompleteStateMismatchMakesNoNetworkCall(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"sub": "1", "email": "a@x.com"})
	c := newTestClient(t, fp.provider("google", true))

	for _, cb := range []Callback{
		{Code: "good-code", ReturnedState: "attacker", ExpectedState: "issued", Verifier: "v"},
		{Code: "good-code", ReturnedState: "", ExpectedState: "", Verifier: "v"},
	} {
		_, _, err := c.Complete(context.Background(), cb)
		if !errors.Is(err, ErrStateMismatch) || !errors.Is(err, ErrFederationFailed) {
			t.Fatalf("expected ErrStateMismatch, got %v", err)
		}
	}
	if fp.hits.Load() != 0 {
		t.Fatalf("expected zero provider calls, got %d", fp.hits.Load())
	}
}

func TestCompleteRejectsProviderErrorAndMissingCode(t *testing.T) {
	fp := newFakeProvider(t, nil)
	c := newTestClient(t, fp.provider("google", true))

	_, _, err := c.Complete(context.Background(), Callback{
		ReturnedState: "s", ExpectedState: "s", Error: "access_denied", ErrorDescription: "user cancelled",
	})
	if !errors.Is(err, ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}

	_, _, err = c.Complete(context.Background(), Callback{ReturnedState: "s", ExpectedState: "s", Verifier: "v"})
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("expected ErrMissingCode, got %v", err)
	}

	_, _, err = c.Complete(context.Background(), Callback{Code: "good-code", ReturnedState: "s", ExpectedState: "s"})
	if !errors.Is(err, ErrMissingVerifier) {
		t.Fatalf("expected ErrMissingVerifier, got %v", err)
	}
	if fp.hits.Load() != 0 {
		t.Fatalf("expected zero provider calls, got %d", fp.hits.Load())
	}
}

func TestCompleteExchangesWithVerifierAndFetchesProfile(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{
		"sub":            "1098765432101",
		"email":          "a@x.com",
		"email_verified": true,
		"name":           "Alice",
		"picture":        "https://img.example.com/a.png",
	})
	c := newTestClient(t, fp.provider("google", true))

	start, err := c.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	tokens, profile, err := c.Complete(context.Background(), Callback{
		Code:          "good-code",
		ReturnedState: start.State,
		ExpectedState: start.State,
		Verifier:      start.Verifier,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got, _ := fp.lastVerifier.Load().(string); got != start.Verifier {
		t.Fatalf("verifier not sent to token endpoint: %q", got)
	}
	if tokens.AccessToken != "provider-at" || tokens.RefreshToken != "provider-rt" || tokens.Expiry.IsZero() {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if profile.Subject != "1098765432101" || profile.Email != "a@x.com" || !profile.EmailVerified || profile.Name != "Alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if c.Username(*profile) != "google_10987654" {
		t.Fatalf("unexpected derived username %q", c.Username(*profile))
	}
}

func TestCompleteFallsBackToEmailsEndpoint(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"id": 583231, "login": "octocat", "name": "The Octocat"})
	fp.emails = []providerEmail{
		{Email: "old@x.com", Verified: false},
		{Email: "octo@x.com", Primary: true, Verified: true},
	}
	p := fp.provider("github", false)
	p.EmailsURL = fp.server.URL + "/emails"
	p.UsernameFromProfile = GitHub("", "", "").UsernameFromProfile
	c := newTestClient(t, p)

	_, profile, err := c.Complete(context.Background(), Callback{Code: "good-code", ReturnedState: "s", ExpectedState: "s"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if profile.Subject != "583231" || profile.Email != "octo@x.com" || profile.Login != "octocat" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if c.Username(*profile) != "octocat" {
		t.Fatalf("unexpected username %q", c.Username(*profile))
	}
}

func TestCompleteFailsWithoutEmail(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"id": 42, "login": "ghost"})
	p := fp.provider("github", false)
	p.EmailsURL = fp.server.URL + "/emails"
	c := newTestClient(t, p)

	_, _, err := c.Complete(context.Background(), Callback{Code: "good-code", ReturnedState: "s", ExpectedState: "s"})
	if !errors.Is(err, ErrEmailMissing) {
		t.Fatalf("expected ErrEmailMissing, got %v", err)
	}
}

func TestCompleteExchangeFailure(t *testing.T) {
	fp := newFakeProvider(t, nil)
	c := newTestClient(t, fp.provider("github", false))

	_, _, err := c.Complete(context.Background(), Callback{Code: "bad-code", ReturnedState: "s", ExpectedState: "s"})
	if !errors.Is(err, ErrExchangeFailed) || !errors.Is(err, ErrFederationFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
}

func TestCompleteTimesOut(t *testing.T) {
	fp := newFakeProvider(t, nil)
	fp.delay = 200 * time.Millisecond
	c := newTestClient(t, fp.provider("github", false), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, _, err := c.Complete(context.Background(), Callback{Code: "good-code", ReturnedState: "s", ExpectedState: "s"})
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected timeout to surface as ErrExchangeFailed, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("Complete did not honor timeout: %s", time.Since(start))
	}
}

func TestNewClientValidatesProvider(t *testing.T) {
	if _, err := NewClient(Provider{}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := NewClient(Google("id", "secret", "https://app/cb")); err != nil {
		t.Fatalf("google preset should validate: %v", err)
	}
	if _, err := NewClient(GitHub("id", "secret", "https://app/cb")); err != nil {
		t.Fatalf("github preset should validate: %v", err)
	}
}
