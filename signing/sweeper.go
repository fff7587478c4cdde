package signing

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often a Sweeper expires overdue requests.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically runs Engine.ExpireDue in the background.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSweeper returns a stopped sweeper. A non-positive interval uses
// DefaultSweepInterval.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Start runs one sweep immediately and then one per interval until ctx is
// done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.engine.ExpireDue(ctx); err != nil && ctx.Err() == nil {
		s.engine.logger.Warn("expiry sweep failed", "error", err)
	}
}
