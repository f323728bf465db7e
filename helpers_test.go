package goIdentity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/MrEthical07/goIdentity/totp"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentToken struct {
	accountID string
	token     string
}

type captureNotifier struct {
	mu            sync.Mutex
	verifications []sentToken
	resets        []sentToken
}

func (n *captureNotifier) SendVerification(_ context.Context, a goIdentity.Account, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, sentToken{a.ID, token})
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, a goIdentity.Account, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentToken{a.ID, token})
	return nil
}

func (n *captureNotifier) lastVerification(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifications) == 0 {
		t.Fatalf("no verification token sent")
	}
	return n.verifications[len(n.verifications)-1].token
}

func (n *captureNotifier) resetCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resets)
}

func (n *captureNotifier) lastReset(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		t.Fatalf("no reset token sent")
	}
	return n.resets[len(n.resets)-1].token
}

type testEnv struct {
	engine   *goIdentity.Engine
	clock    *testClock
	notifier *captureNotifier
	accounts *memory.Accounts
	roles    *memory.Roles
	links    *memory.Links
}

func testConfig() goIdentity.Config {
	cfg := goIdentity.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("0123456789abcdef0123456789abcdef-access")
	cfg.JWT.RefreshSecret = []byte("0123456789abcdef0123456789abcdef-refresh")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, configure ...func(*goIdentity.Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    newTestClock(),
		notifier: &captureNotifier{},
		accounts: memory.NewAccounts(),
		roles:    memory.NewRoles("user"),
		links:    memory.NewLinks(),
	}
	env.roles.Define("user", "profile:read")
	env.roles.Define("admin", "profile:read", "users:write")

	b := goIdentity.New().
		WithConfig(testConfig()).
		WithAccountStore(env.accounts).
		WithRoleStore(env.roles).
		WithLinkedAccountStore(env.links).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// registerVerified registers an account and confirms its email.
func (env *testEnv) registerVerified(t *testing.T, username, email, password string) string {
	t.Helper()
	ctx := context.Background()
	id, err := env.engine.Register(ctx, goIdentity.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if err := env.engine.VerifyEmail(ctx, env.notifier.lastVerification(t)); err != nil {
		t.Fatalf("verify %s: %v", username, err)
	}
	return id
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	cfg := goIdentity.DefaultConfig().TOTP
	te, err := totp.New(totp.Config{
		Issuer:    cfg.Issuer,
		Algorithm: cfg.Algorithm,
		Digits:    cfg.Digits,
		Period:    cfg.Period,
		Skew:      cfg.Skew,
	})
	if err != nil {
		t.Fatalf("totp engine: %v", err)
	}
	code, err := te.Code(secret, at)
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}
