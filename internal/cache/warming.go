package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RefreshFunc performs one refresh cycle. force bypasses the TTL.
// SourceCache.Refresh satisfies it; the service wires the risk engine in so
// every cycle is also scored and recorded.
type RefreshFunc func(ctx context.Context, force bool) error

// Refresher drives periodic refreshes from a clock ticker.
type Refresher struct {
	refresh RefreshFunc
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewRefresher creates a Refresher. Nil clock and logger use the real clock and a no-op logger.
func NewRefresher(fn RefreshFunc, clock clockwork.Clock, logger *zap.Logger) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{refresh: fn, clock: clock, logger: logger}
}

// Run performs an initial refresh that may adopt a warm stored snapshot, then
// forces one refresh per interval until ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTTL
	}
	r.cycle(ctx, false, "initial refresh failed")

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			r.cycle(ctx, true, "periodic refresh failed")
		}
	}
}

func (r *Refresher) cycle(ctx context.Context, force bool, failMsg string) {
	start := r.clock.Now()
	if err := r.refresh(ctx, force); err != nil {
		if ctx.Err() == nil {
			r.logger.Warn(failMsg, zap.Error(err))
		}
		return
	}
	r.logger.Debug("refresh cycle complete",
		zap.Bool("forced", force),
		zap.Duration("duration", r.clock.Since(start)))
}
