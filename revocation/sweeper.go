package revocation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when NewSweeper receives a non-positive interval.
const DefaultSweepInterval = time.Hour

// Sweeper periodically prunes expired ledger entries. A failed sweep is
// logged and retried on the next tick.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper returns a Sweeper for ledger. A nil logger discards output.
func NewSweeper(ledger *Ledger, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{ledger: ledger, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil
// after cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("revocation sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("revocation sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep bounded by the sweep interval.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	start := time.Now()
	n, err := s.ledger.SweepExpired(sweepCtx)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return 0
		}
		s.logger.Error("revocation sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("revocation sweep removed expired entries",
			zap.Int64("removed", n),
			zap.Duration("took", time.Since(start)))
	}
	return n
}
