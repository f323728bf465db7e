package goIdentity

import "github.com/MrEthical07/goIdentity/internal/security"

// SecurityReport summarizes the engine's effective security settings and
// lists weak ones in Warnings.
type SecurityReport = security.Report

// SecurityReport returns a snapshot of the engine's security posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		LockoutThreshold:    cfg.Lockout.Threshold,
		LockoutWindow:       cfg.Lockout.Window,
		LimiterActive:       e.limiter != nil,
		BackupCodeCount:     cfg.TOTP.BackupCodeCount,
		FederationProviders: e.Providers(),
		RevocationBackend:   e.revocationBackend,
		AuditEnabled:        cfg.Audit.Enabled,
	})
}
