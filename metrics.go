package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram exposed by goIdentity.
//
// MetricID values are fixed at compile time; exporters map them to names.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful password logins that issued tokens.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricLoginLocked counts logins refused because the account is locked.
	MetricLoginLocked
	// MetricAccountLocked counts accounts locked after crossing the failure threshold.
	MetricAccountLocked
	// MetricMFARequired counts password logins that stopped at the second factor.
	MetricMFARequired
	// MetricMFASuccess counts successful second-factor verifications.
	MetricMFASuccess
	// MetricMFAFailure counts failed second-factor verifications.
	MetricMFAFailure
	// MetricMFARateLimited counts second-factor attempts refused by the limiter.
	MetricMFARateLimited
	// MetricBackupCodeUsed counts backup codes consumed.
	MetricBackupCodeUsed
	// MetricBackupCodeRegenerated counts backup code set replacements.
	MetricBackupCodeRegenerated
	// MetricTwoFactorEnabled counts 2FA confirmations.
	MetricTwoFactorEnabled
	// MetricTwoFactorDisabled counts 2FA removals.
	MetricTwoFactorDisabled
	// MetricRefreshSuccess counts access tokens minted from refresh tokens.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricTokenRevoked counts tokens refused because they are in the revocation ledger.
	MetricTokenRevoked
	// MetricLogout counts logout calls.
	MetricLogout
	// MetricTokensRevoked counts jti values added to the ledger.
	MetricTokensRevoked
	// MetricRegisterSuccess counts accounts registered.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations refused for a taken username or email.
	MetricRegisterDuplicate
	// MetricEmailVerificationSuccess counts verified emails.
	MetricEmailVerificationSuccess
	// MetricEmailVerificationFailure counts rejected verification tokens.
	MetricEmailVerificationFailure
	// MetricPasswordResetRequest counts forgot-password requests.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected password resets.
	MetricPasswordResetFailure
	// MetricFederatedLoginSuccess counts federated logins that issued tokens.
	MetricFederatedLoginSuccess
	// MetricFederatedLoginFailure counts failed federated logins.
	MetricFederatedLoginFailure
	// MetricFederatedAccountCreated counts accounts created by federated login.
	MetricFederatedAccountCreated
	// MetricFederatedAccountLinked counts linked identities written.
	MetricFederatedAccountLinked
	// MetricRoleChanged counts role assignments and removals.
	MetricRoleChanged
	// MetricValidateLatency is the access token validation latency histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines the fixed set of lock-free counters used by goIdentity APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// A nil or disabled Metrics records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
//
// MetricsSnapshot values are owned by the caller and never alias live counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
//
// NewMetrics does not mutate shared global state and can be used concurrently.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the validation latency histogram records.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Safe for concurrent use; unknown ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricValidateLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
