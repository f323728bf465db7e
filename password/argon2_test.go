package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1
	return cfg
}

func newTestHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, fastConfig())
	ctx := context.Background()

	encoded, err := h.Hash(ctx, "pw12345678")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := h.Verify(ctx, "pw12345678", encoded)
	if err != nil || !ok {
		t.Fatalf("expected verification success, got ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify(ctx, "pw12345679", encoded)
	if err != nil || ok {
		t.Fatalf("expected verification failure, got ok=%v err=%v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	a, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for identical input")
	}
}

func TestVerifyMalformedHashIsFalse(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,m=1,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		ok, err := h.Verify(context.Background(), "pw12345678", encoded)
		if err != nil || ok {
			t.Fatalf("Verify(%q) = %v, %v; want false, nil", encoded, ok, err)
		}
	}
}

func TestHashRejectsPolicyViolations(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	if _, err := h.Hash(context.Background(), "short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := h.Hash(context.Background(), strings.Repeat("x", 1025)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newTestHasher(t, fastConfig())
	encoded, err := weak.Hash(context.Background(), "test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strongCfg := fastConfig()
	strongCfg.Time = 2
	strong := newTestHasher(t, strongCfg)

	upgrade, err := strong.NeedsUpgrade(encoded)
	if err != nil || !upgrade {
		t.Fatalf("expected upgrade for weaker hash, got %v err=%v", upgrade, err)
	}

	upgrade, err = weak.NeedsUpgrade(encoded)
	if err != nil || upgrade {
		t.Fatalf("expected no upgrade for same config, got %v err=%v", upgrade, err)
	}

	if _, err := weak.NeedsUpgrade("garbage"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"min length":  func(c *Config) { c.MinLength = 0 },
		"concurrency": func(c *Config) { c.MaxConcurrent = -1 },
	}
	for name, mutate := range cases {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config error", name)
		}
	}
}

func TestHashHonorsContextWhenSaturated(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	h := newTestHasher(t, cfg)

	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := h.Hash(ctx, "pw12345678"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentVerify(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 2
	h := newTestHasher(t, cfg)

	encoded, err := h.Hash(context.Background(), "pw12345678")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Verify(context.Background(), "pw12345678", encoded)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- errors.New("verify returned false")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent verify: %v", err)
	}
}
