package security

import (
	"fmt"
	"time"
)

// Floors below which BuildReport emits a warning. The Argon2 floor follows
// the OWASP minimum of 19 MiB with t=2.
const (
	minArgon2MemoryKB   = 19 * 1024
	minArgon2Time       = 2
	maxAccessTTL        = time.Hour
	minBackupCodeCount  = 8
	maxLockoutThreshold = 10
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

type Report struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Argon2                 PasswordReport
	LockoutThreshold       int
	LockoutWindow          time.Duration
	TwoFactorLimiterActive bool
	BackupCodeCount        int
	FederationProviders    []string
	RevocationBackend      string
	AuditEnabled           bool
	Warnings               []string
}

type ReportInput struct {
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Password            PasswordReport
	LockoutThreshold    int
	LockoutWindow       time.Duration
	LimiterActive       bool
	BackupCodeCount     int
	FederationProviders []string
	RevocationBackend   string
	AuditEnabled        bool
}

// BuildReport copies input into a Report and lists the weak settings.
func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:       "HS256",
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		Argon2:                 input.Password,
		LockoutThreshold:       input.LockoutThreshold,
		LockoutWindow:          input.LockoutWindow,
		TwoFactorLimiterActive: input.LimiterActive,
		BackupCodeCount:        input.BackupCodeCount,
		FederationProviders:    append([]string(nil), input.FederationProviders...),
		RevocationBackend:      input.RevocationBackend,
		AuditEnabled:           input.AuditEnabled,
	}

	if input.Password.Memory < minArgon2MemoryKB {
		r.Warnings = append(r.Warnings, fmt.Sprintf("argon2 memory %d KiB is below %d KiB", input.Password.Memory, minArgon2MemoryKB))
	}
	if input.Password.Time < minArgon2Time {
		r.Warnings = append(r.Warnings, fmt.Sprintf("argon2 time cost %d is below %d", input.Password.Time, minArgon2Time))
	}
	if input.AccessTTL > maxAccessTTL {
		r.Warnings = append(r.Warnings, fmt.Sprintf("access token TTL %s exceeds %s", input.AccessTTL, maxAccessTTL))
	}
	if input.LockoutThreshold > maxLockoutThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf("lockout threshold %d exceeds %d", input.LockoutThreshold, maxLockoutThreshold))
	}
	if input.BackupCodeCount < minBackupCodeCount {
		r.Warnings = append(r.Warnings, fmt.Sprintf("only %d backup codes per set", input.BackupCodeCount))
	}
	if !input.LimiterActive {
		r.Warnings = append(r.Warnings, "second-factor attempts are not rate limited (no redis client)")
	}
	if input.RevocationBackend == "memory" {
		r.Warnings = append(r.Warnings, "revocation ledger is process-local")
	}
	return r
}
