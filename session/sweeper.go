package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when a [Sweeper] is built with a
// non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs [Backend.Sweep] on a fixed interval. Lazy eviction already
// keeps lookups correct; the sweeper only bounds memory held by sessions
// nobody touches again.
type Sweeper struct {
	backend  Backend
	interval time.Duration
	logger   *zap.Logger
	onSweep  func(removed int, err error)
}

// NewSweeper returns a sweeper for backend. A nil logger disables logging.
func NewSweeper(backend Backend, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		backend:  backend,
		interval: interval,
		logger:   logger,
	}
}

// OnSweep registers a callback invoked after every pass. It must be set
// before Run is called.
func (s *Sweeper) OnSweep(fn func(removed int, err error)) {
	s.onSweep = fn
}

// Run blocks, sweeping once per interval, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and returns the number of removed
// sessions.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	removed, err := s.backend.Sweep(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", zap.Error(err))
	} else if removed > 0 {
		s.logger.Debug("session sweep", zap.Int("removed", removed))
	}
	if s.onSweep != nil {
		s.onSweep(removed, err)
	}
	return removed
}
