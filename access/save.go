package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// SAVE PLAN - What a save writes, computed without touching the store
// =============================================================================

// SavePlan is the full replacement of one user's grant rows.
type SavePlan struct {
	UserID  generic.UserID
	App     generic.AppPermissions
	Scope   Scope
	Access  []generic.EnterpriseAccess
	Modules []generic.ModulePermission
}

// Grants returns the plan as the grants a reload would observe.
func (p SavePlan) Grants() Grants {
	app := p.App
	g := Grants{App: &app, Modules: append([]generic.ModulePermission(nil), p.Modules...)}
	for _, a := range p.Access {
		g.Enterprises = append(g.Enterprises, a.EnterpriseID)
	}
	return g
}

// PlanSave recomputes the rows to persist for userID:
//
//  1. The app-permission row is always written (a nil App means all off).
//  2. Membership: with the entreprises page, exactly the chosen set; with
//     dashboard only, no rows (the derived all-enterprises read-only scope
//     covers it, including enterprises added later); otherwise none.
//  3. Module rows: only with an explicit scope, only for member enterprises,
//     only for modules in the enterprise's catalog, and never all-false.
//
// Membership naming an enterprise that does not exist is rejected.
func PlanSave(userID generic.UserID, g Grants, enterprises []generic.Enterprise, catalog Catalog, newID func() string) (SavePlan, error) {
	byID := make(map[generic.EnterpriseID]generic.Enterprise, len(enterprises))
	for _, e := range enterprises {
		byID[e.ID] = e
	}
	for _, id := range g.Enterprises {
		if _, ok := byID[id]; !ok {
			return SavePlan{}, fmt.Errorf("%w: %s", generic.ErrUnknownEnterprise, id)
		}
	}

	plan := SavePlan{UserID: userID}
	if g.App != nil {
		plan.App = *g.App
	}
	plan.Scope = DeriveScope(&plan.App, g.Enterprises)
	if plan.Scope.Kind != ScopeExplicit {
		return plan, nil
	}

	for _, id := range plan.Scope.Members() {
		plan.Access = append(plan.Access, generic.EnterpriseAccess{UserID: userID, EnterpriseID: id})
	}
	for _, row := range g.Modules {
		ent, ok := byID[row.EnterpriseID]
		if !ok || !plan.Scope.Includes(row.EnterpriseID) || !catalog.Offers(ent.Slug, row.Module) || !row.CRUD.Any() {
			continue
		}
		plan.Modules = append(plan.Modules, generic.ModulePermission{
			ID:           newID(),
			UserID:       userID,
			EnterpriseID: row.EnterpriseID,
			Module:       row.Module,
			CRUD:         row.CRUD,
		})
	}
	sortModules(plan.Modules)
	sort.Slice(plan.Access, func(i, j int) bool { return plan.Access[i].EnterpriseID < plan.Access[j].EnterpriseID })
	return plan, nil
}

// =============================================================================
// SAVER - Transactional replace-all persistence
// =============================================================================

// Invalidator drops cached permission snapshots of a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID generic.UserID) error
}

type Saver struct {
	store      generic.Store
	catalog    Catalog
	invalidate Invalidator
	logger     *zap.Logger
	newID      func() string
}

func NewSaver(store generic.Store, catalog Catalog, invalidate Invalidator, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{
		store:      store,
		catalog:    catalog,
		invalidate: invalidate,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// Save replaces every grant row of userID with the plan derived from g.
// The three replacements run in one transaction; the first failing step
// aborts the rest and rolls back. Cached snapshots are invalidated after
// the commit.
func (s *Saver) Save(ctx context.Context, userID generic.UserID, g Grants) (SavePlan, error) {
	enterprises, err := s.store.ListEnterprises(ctx)
	if err != nil {
		return SavePlan{}, generic.Persist("list enterprises", err)
	}
	plan, err := PlanSave(userID, g, enterprises, s.catalog, s.newID)
	if err != nil {
		return SavePlan{}, err
	}

	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.UpsertAppPermissions(ctx, userID, plan.App); err != nil {
			return generic.Persist("upsert app permissions", err)
		}
		if err := tx.DeleteEnterpriseAccess(ctx, userID); err != nil {
			return generic.Persist("delete enterprise access", err)
		}
		if len(plan.Access) > 0 {
			if err := tx.InsertEnterpriseAccess(ctx, plan.Access); err != nil {
				return generic.Persist("insert enterprise access", err)
			}
		}
		if err := tx.DeleteModulePermissions(ctx, userID); err != nil {
			return generic.Persist("delete module permissions", err)
		}
		if len(plan.Modules) > 0 {
			if err := tx.InsertModulePermissions(ctx, plan.Modules); err != nil {
				return generic.Persist("insert module permissions", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("permission save failed", zap.String("user_id", string(userID)), zap.Error(err))
		return SavePlan{}, err
	}

	if s.invalidate != nil {
		if err := s.invalidate.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("permission cache invalidation failed", zap.String("user_id", string(userID)), zap.Error(err))
		}
	}

	s.logger.Info("permissions saved",
		zap.String("user_id", string(userID)),
		zap.Bool("dashboard", plan.App.Dashboard),
		zap.Bool("entreprises", plan.App.Enterprises),
		zap.Bool("personal", plan.App.Personal),
		zap.Bool("users", plan.App.Users),
		zap.String("scope", string(plan.Scope.Kind)),
		zap.Int("enterprise_access", len(plan.Access)),
		zap.Int("module_permissions", len(plan.Modules)))
	return plan, nil
}
