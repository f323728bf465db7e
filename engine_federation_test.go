package goIdentity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/federation"
)

type fakeProvider struct {
	srv   *httptest.Server
	calls atomic.Int32

	mu       sync.Mutex
	profiles map[string]map[string]any
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{profiles: make(map[string]map[string]any)}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-" + r.Form.Get("code"),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fp.calls.Add(1)
		code := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer at-")
		fp.mu.Lock()
		profile, ok := fp.profiles[code]
		fp.mu.Unlock()
		if !ok {
			http.Error(w, "unknown token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

// expect makes code redeem to the given GitHub-style profile.
func (fp *fakeProvider) expect(code string, id int, login, email string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.profiles[code] = map[string]any{"id": id, "login": login, "email": email, "name": login}
}

func (fp *fakeProvider) provider() federation.Provider {
	p := federation.GitHub("client-id", "client-secret", "https://app.example.com/callback")
	p.AuthURL = fp.srv.URL + "/authorize"
	p.TokenURL = fp.srv.URL + "/token"
	p.UserInfoURL = fp.srv.URL + "/user"
	p.EmailsURL = ""
	return p
}

func newFederatedEnv(t *testing.T) (*testEnv, *fakeProvider) {
	t.Helper()
	fp := newFakeProvider(t)
	env := newTestEnv(t, func(b *goIdentity.Builder) {
		b.WithProvider(fp.provider()).WithHTTPClient(fp.srv.Client())
	})
	return env, fp
}

func federatedLogin(t *testing.T, env *testEnv, code string) (*goIdentity.FederatedLoginResult, error) {
	t.Helper()
	ctx := context.Background()
	start, err := env.engine.BeginFederatedLogin(ctx, "github")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !strings.Contains(start.AuthorizeURL, "state="+start.State) {
		t.Fatalf("authorize url lacks state: %s", start.AuthorizeURL)
	}
	return env.engine.CompleteFederatedLogin(ctx, goIdentity.FederatedCallback{
		Provider: "github",
		Code:     code,
		State:    start.State,
	})
}

func TestFederatedLoginCreatesAccount(t *testing.T) {
	env, fp := newFederatedEnv(t)
	ctx := context.Background()
	fp.expect("c1", 1001, "octo", "Octo@Example.com")

	res, err := federatedLogin(t, env, "c1")
	if err != nil {
		t.Fatalf("federated login: %v", err)
	}
	if !res.Created || !res.Linked || res.Tokens == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	acct, err := env.accounts.FindByID(ctx, res.AccountID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if acct.Username != "octo" || acct.Email != "octo@example.com" || !acct.Verified || acct.PasswordHash != "" {
		t.Fatalf("unexpected federated account %+v", acct)
	}
	link, err := env.links.FindBySubject(ctx, "github", "1001")
	if err != nil || link.AccountID != acct.ID || link.AccessToken != "at-c1" {
		t.Fatalf("unexpected link %+v, %v", link, err)
	}

	fp.expect("c2", 1001, "octo", "octo@example.com")
	again, err := federatedLogin(t, env, "c2")
	if err != nil {
		t.Fatalf("second federated login: %v", err)
	}
	if again.Created || again.Linked || again.AccountID != res.AccountID {
		t.Fatalf("returning identity should reuse the link, got %+v", again)
	}
	link, _ = env.links.FindBySubject(ctx, "github", "1001")
	if link.AccessToken != "at-c2" {
		t.Fatalf("provider tokens not refreshed: %+v", link)
	}

	// Federated accounts have no password to log in with.
	if _, err := env.engine.Login(ctx, "octo", ""); !errors.Is(err, goIdentity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "octo", "anything at all"); !errors.Is(err, goIdentity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestFederatedLoginLinksVerifiedAccount(t *testing.T) {
	env, fp := newFederatedEnv(t)
	alice := env.registerVerified(t, "alice", "alice@example.com", "correct horse")
	fp.expect("c1", 2002, "alice-gh", "alice@example.com")

	res, err := federatedLogin(t, env, "c1")
	if err != nil {
		t.Fatalf("federated login: %v", err)
	}
	if res.Created || !res.Linked || res.AccountID != alice {
		t.Fatalf("expected link to existing account, got %+v", res)
	}
	if env.accounts.Len() != 1 {
		t.Fatalf("no new account should be created, have %d", env.accounts.Len())
	}
}

func TestFederatedLoginRefusesUnverifiedAccount(t *testing.T) {
	env, fp := newFederatedEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, goIdentity.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "battery staple"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	fp.expect("c1", 3003, "bob-gh", "bob@example.com")

	_, err := federatedLogin(t, env, "c1")
	if !errors.Is(err, goIdentity.ErrAccountUnverifiedLink) {
		t.Fatalf("expected ErrAccountUnverifiedLink, got %v", err)
	}
	if _, err := env.links.FindBySubject(ctx, "github", "3003"); !errors.Is(err, goIdentity.ErrNotFound) {
		t.Fatalf("no link should be written, got %v", err)
	}
}

func TestFederatedLoginUsernameCollision(t *testing.T) {
	env, fp := newFederatedEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "octo", "someone@example.com", "correct horse")
	fp.expect("c1", 4004, "octo", "octo@example.com")

	res, err := federatedLogin(t, env, "c1")
	if err != nil {
		t.Fatalf("federated login: %v", err)
	}
	acct, _ := env.accounts.FindByID(ctx, res.AccountID)
	if acct == nil || !strings.HasPrefix(acct.Username, "octo_") {
		t.Fatalf("expected suffixed username, got %+v", acct)
	}
}

func TestFederatedStateIsCheckedBeforeProviderCalls(t *testing.T) {
	env, fp := newFederatedEnv(t)
	ctx := context.Background()
	fp.expect("c1", 5005, "eve", "eve@example.com")

	_, err := env.engine.CompleteFederatedLogin(ctx, goIdentity.FederatedCallback{Provider: "github", Code: "c1", State: "forged"})
	if !errors.Is(err, federation.ErrStateMismatch) || !errors.Is(err, goIdentity.ErrFederationFailed) {
		t.Fatalf("expected state mismatch, got %v", err)
	}
	if fp.calls.Load() != 0 {
		t.Fatalf("provider was contacted %d times despite bad state", fp.calls.Load())
	}

	start, err := env.engine.BeginFederatedLogin(ctx, "github")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	cb := goIdentity.FederatedCallback{Provider: "github", Code: "c1", State: start.State}
	if _, err := env.engine.CompleteFederatedLogin(ctx, cb); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := env.engine.CompleteFederatedLogin(ctx, cb); !errors.Is(err, federation.ErrStateMismatch) {
		t.Fatalf("replayed state: expected ErrStateMismatch, got %v", err)
	}

	if _, err := env.engine.BeginFederatedLogin(ctx, "myspace"); !errors.Is(err, goIdentity.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestFederatedProviderError(t *testing.T) {
	env, fp := newFederatedEnv(t)
	ctx := context.Background()

	start, err := env.engine.BeginFederatedLogin(ctx, "github")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = env.engine.CompleteFederatedLogin(ctx, goIdentity.FederatedCallback{
		Provider:         "github",
		State:            start.State,
		Error:            "access_denied",
		ErrorDescription: "user cancelled",
	})
	if !errors.Is(err, federation.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if fp.calls.Load() != 0 {
		t.Fatalf("provider error must not trigger an exchange")
	}
}
