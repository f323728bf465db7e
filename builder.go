package goIdentity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goIdentity/federation"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/revocation"
	"github.com/MrEthical07/goIdentity/totp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts    AccountStore
	roles       RoleStore
	links       LinkedAccountStore
	revocations revocation.Store
	states      federation.StateStore
	providers   []federation.Provider
	httpClient  *http.Client
	tracer      trace.Tracer

	logger    *zap.Logger
	auditSink AuditSink
	notifier  Notifier
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis revocation store, the Redis federation state
// store and the second-factor attempt limiter, unless explicit stores are set.
//
// Without a Redis client there is no second-factor attempt limiter: TOTP and
// backup-code guesses against an account are bounded only by the caller.
// SecurityReport warns about this configuration.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the required account storage.
func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

// WithRoleStore sets the required role storage.
func (b *Builder) WithRoleStore(s RoleStore) *Builder {
	b.roles = s
	return b
}

// WithLinkedAccountStore sets linked-account storage. Required when any
// provider is registered.
func (b *Builder) WithLinkedAccountStore(s LinkedAccountStore) *Builder {
	b.links = s
	return b
}

// WithRevocationStore overrides the revocation ledger's storage.
func (b *Builder) WithRevocationStore(s revocation.Store) *Builder {
	b.revocations = s
	return b
}

// WithStateStore overrides where pending federated logins are kept.
func (b *Builder) WithStateStore(s federation.StateStore) *Builder {
	b.states = s
	return b
}

// WithProvider registers an OAuth2 provider under p.Name.
func (b *Builder) WithProvider(p federation.Provider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

// WithHTTPClient sets the client used for provider calls.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithTracer sets the tracer for provider call spans.
func (b *Builder) WithTracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

// WithLogger sets the logger for recovered side-effect failures.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithNotifier sets the verification and reset link sender.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithClock overrides time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.roles == nil {
		return nil, errors.New("role store required")
	}
	if len(b.providers) > 0 && b.links == nil {
		return nil, errors.New("linked account store required when providers are registered")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		logger:    logger,
		now:       now,
		directory: NewDirectory(b.accounts, b.roles, cfg.PermissionCache.TTL, cfg.PermissionCache.MaxEntries),
		links:     b.links,
		notifier:  b.notifier,
		metrics:   NewMetrics(cfg.Metrics),
		providers: make(map[string]*federation.Client, len(b.providers)),
	}

	// -------- HASHER / SIGNER / TOTP --------
	ph, err := password.NewArgon2(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MinLength:     cfg.Password.MinLength,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.signer = jm

	te, err := totp.New(totp.Config{
		Issuer:    cfg.TOTP.Issuer,
		Algorithm: cfg.TOTP.Algorithm,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Skew:      cfg.TOTP.Skew,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = te

	// -------- REVOCATION --------
	store := b.revocations
	engine.revocationBackend = "custom"
	if store == nil {
		if b.redis != nil {
			store = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisKey)
			engine.revocationBackend = "redis"
		} else {
			store = revocation.NewMemoryStore()
			engine.revocationBackend = "memory"
		}
	}
	engine.ledger = revocation.NewLedger(store, revocation.WithClock(now), revocation.WithGrace(cfg.JWT.Leeway))
	engine.sweeper = revocation.NewSweeper(engine.ledger, cfg.Revocation.SweepInterval, logger)

	// -------- REDIS-BACKED HELPERS --------
	if b.redis != nil {
		engine.limiter = limiters.NewSecondFactorLimiter(b.redis, limiters.SecondFactorConfig{
			MaxAttempts: cfg.TOTP.MaxAttempts,
			Cooldown:    cfg.TOTP.Cooldown,
		})
	}

	// -------- FEDERATION --------
	states := b.states
	if states == nil {
		if b.redis != nil {
			states = federation.NewRedisStateStore(b.redis, "")
		} else {
			states = federation.NewMemoryStateStore()
		}
	}
	engine.states = states

	for _, p := range b.providers {
		if _, dup := engine.providers[p.Name]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.Name)
		}
		opts := []federation.Option{
			federation.WithTimeout(cfg.Federation.Timeout),
			federation.WithUserAgent(cfg.Federation.UserAgent),
		}
		if b.httpClient != nil {
			opts = append(opts, federation.WithHTTPClient(b.httpClient))
		}
		if b.tracer != nil {
			opts = append(opts, federation.WithTracer(b.tracer))
		}
		client, err := federation.NewClient(p, opts...)
		if err != nil {
			return nil, err
		}
		engine.providers[p.Name] = client
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)

	b.built = true

	return engine, nil
}
