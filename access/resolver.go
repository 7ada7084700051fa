package access

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// RESOLVER - Loads and caches permission snapshots
// =============================================================================

// Cache stores permission snapshots by user. Implementations must treat a
// miss and an expired entry the same way.
//
// Every Invalidate moves the user's epoch forward. Set is a no-op unless the
// epoch still equals the one read before the snapshot was loaded, so a load
// that overlaps a save never re-caches the grants the save replaced.
type Cache interface {
	Get(ctx context.Context, userID generic.UserID) (Snapshot, bool, error)
	Epoch(ctx context.Context, userID generic.UserID) (int64, error)
	Set(ctx context.Context, snap Snapshot, epoch int64) error
	Invalidate(ctx context.Context, userID generic.UserID) error
}

// Resolver builds evaluators from the record store. Snapshots are cached;
// the enterprise list is always read fresh so new enterprises show up for
// all-read-only users immediately.
type Resolver struct {
	store   generic.Store
	catalog Catalog
	cache   Cache
	logger  *zap.Logger
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(store generic.Store, catalog Catalog, cache Cache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, catalog: catalog, cache: cache, logger: logger}
}

func (r *Resolver) Catalog() Catalog { return r.catalog }

// Load reads a user's profile and grants from the store, bypassing the cache.
// The reads share one transaction so a concurrent save is seen whole or not
// at all.
func (r *Resolver) Load(ctx context.Context, userID generic.UserID) (Snapshot, error) {
	var (
		profile *generic.Profile
		snap    Snapshot
	)
	err := r.store.WithTx(ctx, func(tx generic.Store) (err error) {
		if profile, err = tx.GetProfile(ctx, userID); err != nil {
			return generic.Persist("get profile", err)
		}
		if snap.Grants.App, err = tx.GetAppPermissions(ctx, userID); err != nil {
			return generic.Persist("get app permissions", err)
		}
		if snap.Grants.Enterprises, err = tx.ListEnterpriseAccess(ctx, userID); err != nil {
			return generic.Persist("list enterprise access", err)
		}
		if snap.Grants.Modules, err = tx.ListModulePermissions(ctx, userID); err != nil {
			return generic.Persist("list module permissions", err)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if profile == nil {
		return Snapshot{}, fmt.Errorf("%w: user %s", generic.ErrNotFound, userID)
	}
	snap.Profile = *profile
	return snap, nil
}

// Snapshot returns the cached snapshot of userID, loading it on a miss.
// Cache failures degrade to a store read.
func (r *Resolver) Snapshot(ctx context.Context, userID generic.UserID) (Snapshot, error) {
	var epoch int64
	cached := r.cache != nil
	if cached {
		snap, ok, err := r.cache.Get(ctx, userID)
		if err != nil {
			r.logger.Warn("permission cache read failed", zap.String("user_id", string(userID)), zap.Error(err))
		} else if ok {
			return snap, nil
		}
		// The epoch is read before the load; Set compares against it.
		if epoch, err = r.cache.Epoch(ctx, userID); err != nil {
			r.logger.Warn("permission cache epoch read failed", zap.String("user_id", string(userID)), zap.Error(err))
			cached = false
		}
	}

	snap, err := r.Load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if cached {
		if err := r.cache.Set(ctx, snap, epoch); err != nil {
			r.logger.Warn("permission cache write failed", zap.String("user_id", string(userID)), zap.Error(err))
		}
	}
	return snap, nil
}

// Evaluator returns an evaluator for userID over the current enterprises.
func (r *Resolver) Evaluator(ctx context.Context, userID generic.UserID) (*Evaluator, error) {
	snap, err := r.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	enterprises, err := r.store.ListEnterprises(ctx)
	if err != nil {
		return nil, generic.Persist("list enterprises", err)
	}
	return NewEvaluator(snap, enterprises, r.catalog), nil
}

// Invalidate drops the cached snapshot of userID.
func (r *Resolver) Invalidate(ctx context.Context, userID generic.UserID) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, userID)
}
