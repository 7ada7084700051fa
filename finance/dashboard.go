package finance

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// DASHBOARD - Reloads with generation tagging
// =============================================================================

// Dashboard recomputes the statement whenever a dependency changes (month,
// rates, enterprise set). Every refresh takes a generation number; a load
// that completes after a newer refresh was issued is discarded with
// ErrStaleLoad instead of overwriting the newer result.
type Dashboard struct {
	loader *Loader
	clock  generic.Clock
	logger *zap.Logger

	generation atomic.Uint64

	mu        sync.RWMutex
	latest    Statement
	latestGen uint64

	// Hooks, all optional.
	OnComputed func()
	OnStale    func()
}

func NewDashboard(loader *Loader, clock generic.Clock, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{loader: loader, clock: clock, logger: logger}
}

// Refresh loads and computes the statement of month over scope.
func (d *Dashboard) Refresh(ctx context.Context, scope []generic.EnterpriseID, month generic.Month) (Statement, Input, error) {
	gen := d.generation.Add(1)

	in, err := d.loader.Load(ctx, scope, month, ReferenceDate(month, d.clock.Now()))
	if err != nil {
		return Statement{}, Input{}, err
	}

	if current := d.generation.Load(); current != gen {
		d.logger.Debug("discarding stale statement load",
			zap.Uint64("generation", gen), zap.Uint64("latest", current))
		if d.OnStale != nil {
			d.OnStale()
		}
		return Statement{}, Input{}, generic.ErrStaleLoad
	}

	st := ComputeStatement(in)
	if d.OnComputed != nil {
		d.OnComputed()
	}

	d.mu.Lock()
	if gen > d.latestGen {
		d.latest, d.latestGen = st, gen
	}
	d.mu.Unlock()
	return st, in, nil
}

// Latest returns the most recent statement applied and its generation.
func (d *Dashboard) Latest() (Statement, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest, d.latestGen
}
