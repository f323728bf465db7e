package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful password logins that issued tokens."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Rejected password logins."},
	{ID: goIdentity.MetricLoginLocked, Name: "goidentity_login_locked_total", Help: "Logins refused because the account is locked."},
	{ID: goIdentity.MetricAccountLocked, Name: "goidentity_account_locked_total", Help: "Accounts locked after repeated login failures."},
	{ID: goIdentity.MetricMFARequired, Name: "goidentity_mfa_required_total", Help: "Password logins that stopped at the second factor."},
	{ID: goIdentity.MetricMFASuccess, Name: "goidentity_mfa_success_total", Help: "Successful second-factor verifications."},
	{ID: goIdentity.MetricMFAFailure, Name: "goidentity_mfa_failure_total", Help: "Failed second-factor verifications."},
	{ID: goIdentity.MetricMFARateLimited, Name: "goidentity_mfa_rate_limited_total", Help: "Second-factor attempts refused by the limiter."},
	{ID: goIdentity.MetricBackupCodeUsed, Name: "goidentity_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: goIdentity.MetricBackupCodeRegenerated, Name: "goidentity_backup_code_regenerated_total", Help: "Backup code sets replaced."},
	{ID: goIdentity.MetricTwoFactorEnabled, Name: "goidentity_two_factor_enabled_total", Help: "Two-factor confirmations."},
	{ID: goIdentity.MetricTwoFactorDisabled, Name: "goidentity_two_factor_disabled_total", Help: "Two-factor removals."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Access tokens minted from refresh tokens."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goIdentity.MetricTokenRevoked, Name: "goidentity_token_revoked_total", Help: "Tokens refused by the revocation ledger."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Logout calls."},
	{ID: goIdentity.MetricTokensRevoked, Name: "goidentity_tokens_revoked_total", Help: "Token identifiers added to the revocation ledger."},
	{ID: goIdentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Accounts registered."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registrations refused for a taken username or email."},
	{ID: goIdentity.MetricEmailVerificationSuccess, Name: "goidentity_email_verification_success_total", Help: "Verified emails."},
	{ID: goIdentity.MetricEmailVerificationFailure, Name: "goidentity_email_verification_failure_total", Help: "Rejected email verification tokens."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "goidentity_password_reset_success_total", Help: "Completed password resets."},
	{ID: goIdentity.MetricPasswordResetFailure, Name: "goidentity_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: goIdentity.MetricFederatedLoginSuccess, Name: "goidentity_federated_login_success_total", Help: "Federated logins that issued tokens."},
	{ID: goIdentity.MetricFederatedLoginFailure, Name: "goidentity_federated_login_failure_total", Help: "Failed federated logins."},
	{ID: goIdentity.MetricFederatedAccountCreated, Name: "goidentity_federated_account_created_total", Help: "Accounts created by federated login."},
	{ID: goIdentity.MetricFederatedAccountLinked, Name: "goidentity_federated_account_linked_total", Help: "Linked identities written."},
	{ID: goIdentity.MetricRoleChanged, Name: "goidentity_role_changed_total", Help: "Role assignments and removals."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rendered safe for metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
