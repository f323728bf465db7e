package goIdentity

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/federation"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/revocation"
	"github.com/MrEthical07/goIdentity/totp"
	"go.uber.org/zap"
)

// Engine runs the credential and session lifecycle flows. Build one with
// [Builder]; it is safe for concurrent use.
type Engine struct {
	config    Config
	logger    *zap.Logger
	now       func() time.Time
	directory *Directory
	links     LinkedAccountStore
	notifier  Notifier
	hasher    *password.Argon2
	signer    *jwt.Manager
	ledger    *revocation.Ledger
	sweeper   *revocation.Sweeper
	totp      *totp.Engine
	limiter   *limiters.SecondFactorLimiter
	providers map[string]*federation.Client
	states    federation.StateStore
	audit     *audit.Dispatcher
	metrics   *Metrics

	revocationBackend string

	dummyOnce sync.Once
	dummyHash string
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Directory exposes the identity store facade the Engine uses.
func (e *Engine) Directory() *Directory {
	if e == nil {
		return nil
	}
	return e.directory
}

// Ledger exposes the revocation ledger.
func (e *Engine) Ledger() *revocation.Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

// StartSweeper prunes expired revocation entries every
// Config.Revocation.SweepInterval until ctx ends. Run it at most once per
// process, or use cmd/identity-sweeper instead.
func (e *Engine) StartSweeper(ctx context.Context) {
	if e == nil || e.sweeper == nil {
		return
	}
	go func() {
		_ = e.sweeper.Run(ctx)
	}()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// issuePair loads live roles and permissions and signs a new token pair.
func (e *Engine) issuePair(ctx context.Context, acct *Account) (*TokenPair, error) {
	roles, err := e.directory.Roles(ctx, acct.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	perms, err := e.directory.Permissions(ctx, acct.ID)
	if err != nil {
		return nil, unavailable(err)
	}

	access, accessClaims, err := e.signer.IssueAccess(acct.ID, acct.TenantID, roles, perms)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := e.signer.IssueRefresh(acct.ID, acct.TenantID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessClaims.Expiry(),
		RefreshExpiresAt: refreshClaims.Expiry(),
	}, nil
}

// dummyVerify spends the same hashing work as a real check so unknown
// accounts and password-less accounts answer in comparable time.
func (e *Engine) dummyVerify(ctx context.Context, plaintext string) {
	e.dummyOnce.Do(func() {
		h, err := e.hasher.Hash(context.Background(), "goidentity-dummy-password")
		if err != nil {
			e.logger.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		e.dummyHash = h
	})
	if e.dummyHash == "" {
		return
	}
	_, _ = e.hasher.Verify(ctx, plaintext, e.dummyHash)
}
