/*
sweeper.go - Expired session purge scheduler

PURPOSE:
  Periodically deletes sessions past their expiry. CurrentUser already
  rejects and deletes an expired session when it is presented; the sweeper
  removes the ones nobody presents again.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Stop waits for the running sweep to finish

USAGE:
  sweeper := NewSweeper(store, time.Hour, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredSessionPurger deletes every session expired at now and reports how
// many were removed.
type ExpiredSessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper purges expired sessions on a ticker.
type Sweeper struct {
	purger   ExpiredSessionPurger
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(purger ExpiredSessionPurger, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{purger: purger, interval: interval, now: time.Now, logger: logger}
}

// Start begins sweeping. A non-positive interval disables the sweeper.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 {
		s.logger.Info("session sweeper disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the sweeper. Safe to call when it never started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("session sweeper stopped")
}

func (s *Sweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.Sweep(context.Background())
	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-stop:
			return
		}
	}
}

// Sweep runs one purge and returns the number of sessions removed.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.purger.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("count", n))
	}
	return n
}
