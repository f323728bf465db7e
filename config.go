package goIdentity

import (
	"bytes"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/password"
)

// Config holds every tunable of the Engine. Start from DefaultConfig and
// override what you need; Builder.Build calls Validate.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	TOTP              TOTPConfig
	Federation        FederationConfig
	PermissionCache   PermissionCacheConfig
	Revocation        RevocationConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token signer. Access and refresh secrets must
// both be at least 32 bytes and must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures Argon2id hashing.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	// MaxConcurrent bounds in-flight hashes. 0 means unbounded.
	MaxConcurrent  int64
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls brute-force lockout. Threshold consecutive
// failures lock the account for Window.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
EMAIL VERIFICATION / PASSWORD RESET
====================================
*/

// EmailVerificationConfig controls verification links.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// PasswordResetConfig controls reset links.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the second factor. MaxAttempts and Cooldown apply
// only when the Builder has a Redis client for the attempt limiter.
type TOTPConfig struct {
	Issuer           string
	Algorithm        string
	Digits           int
	Period           uint
	Skew             uint
	BackupCodeCount  int
	BackupCodeLength int
	MaxAttempts      int
	Cooldown         time.Duration
}

/*
====================================
FEDERATION CONFIG
====================================
*/

// FederationConfig controls OAuth2 login.
type FederationConfig struct {
	// Timeout bounds each call to a provider.
	Timeout time.Duration
	// StateTTL is how long a begun login may wait for its callback.
	StateTTL  time.Duration
	UserAgent string
}

/*
====================================
CACHE / REVOCATION
====================================
*/

// PermissionCacheConfig sizes the read-through permission cache.
type PermissionCacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// RevocationConfig controls the ledger and the embedded sweeper.
type RevocationConfig struct {
	SweepInterval time.Duration
	RedisKey      string
}

/*
====================================
AUDIT / METRICS
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Signing secrets are left
// empty and must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "goidentity",
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MinLength:      pw.MinLength,
			MaxConcurrent:  pw.MaxConcurrent,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    30 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:           "goIdentity",
			Algorithm:        "SHA1",
			Digits:           6,
			Period:           30,
			Skew:             1,
			BackupCodeCount:  10,
			BackupCodeLength: 8,
			MaxAttempts:      5,
			Cooldown:         5 * time.Minute,
		},
		Federation: FederationConfig{
			Timeout:   10 * time.Second,
			StateTTL:  10 * time.Minute,
			UserAgent: "goIdentity",
		},
		PermissionCache: PermissionCacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
		Revocation: RevocationConfig{
			SweepInterval: time.Hour,
			RedisKey:      "rvk",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT secrets must be at least 32 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be > AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within 0..2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Tokens
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be <= 2")
	}
	if c.TOTP.BackupCodeCount < 1 || c.TOTP.BackupCodeCount > 50 {
		return errors.New("TOTP BackupCodeCount must be within 1..50")
	}
	if c.TOTP.BackupCodeLength < 8 || c.TOTP.BackupCodeLength > 32 {
		return errors.New("TOTP BackupCodeLength must be within 8..32")
	}
	if c.TOTP.MaxAttempts < 1 {
		return errors.New("TOTP MaxAttempts must be >= 1")
	}
	if c.TOTP.Cooldown <= 0 {
		return errors.New("TOTP Cooldown must be > 0")
	}

	// Federation
	if c.Federation.Timeout <= 0 {
		return errors.New("Federation Timeout must be > 0")
	}
	if c.Federation.StateTTL <= 0 {
		return errors.New("Federation StateTTL must be > 0")
	}

	// Cache / revocation
	if c.PermissionCache.TTL <= 0 {
		return errors.New("PermissionCache TTL must be > 0")
	}
	if c.PermissionCache.MaxEntries <= 0 {
		return errors.New("PermissionCache MaxEntries must be > 0")
	}
	if c.Revocation.SweepInterval <= 0 {
		return errors.New("Revocation SweepInterval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
