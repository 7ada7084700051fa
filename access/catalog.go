/*
Package access implements the dashboard's two-layer authorization model.

PURPOSE:
  Layer 1 is page access: four booleans per user (dashboard, entreprises,
  personal, users). Layer 2 is per-enterprise, per-module CRUD grants plus
  enterprise membership. The admin role short-circuits both layers.

KEY CONCEPTS:
  - Catalog: Static slug -> modules mapping. Grants outside it mean nothing.
  - Scope: Which enterprises a user sees (none, an explicit set, or every
    enterprise read-only for dashboard-only users)
  - Evaluator: Pure read side (CanAccessPage, CanAccessEnterprise, Can)
  - Draft / Editor: Write side state machine with explicit commit
  - Saver: Replace-all transactional persistence of a user's grants

FAIL CLOSED:
  Missing rows deny. A user with no app-permission row sees no page; a
  module without a row denies every action.

SEE ALSO:
  - evaluator.go: Permission queries
  - editor.go: Editing grants
  - save.go: Persisting grants
*/
package access

import "github.com/warp/enterprise-dashboard/generic"

// =============================================================================
// MODULE CATALOG
// =============================================================================

// Catalog maps an enterprise slug to the ordered modules it offers.
type Catalog struct {
	bySlug   map[string][]generic.ModuleID
	fallback []generic.ModuleID
}

// NewCatalog builds a catalog; slugs absent from bySlug offer fallback.
func NewCatalog(bySlug map[string][]generic.ModuleID, fallback []generic.ModuleID) Catalog {
	return Catalog{bySlug: bySlug, fallback: fallback}
}

// DefaultCatalog is the production module catalog.
func DefaultCatalog() Catalog {
	return NewCatalog(map[string][]generic.ModuleID{
		"deep-closer": generic.AllModules,
		"ompleo":      generic.AllModules,
		"dubai": {
			generic.ModuleDashboard,
			generic.ModuleClients,
			generic.ModuleExpensesProfessional,
		},
	}, generic.AllModules)
}

// Modules returns the modules offered by slug, in catalog order.
func (c Catalog) Modules(slug string) []generic.ModuleID {
	if mods, ok := c.bySlug[slug]; ok {
		return mods
	}
	return c.fallback
}

// Offers reports whether slug's catalog includes module.
func (c Catalog) Offers(slug string, module generic.ModuleID) bool {
	for _, m := range c.Modules(slug) {
		if m == module {
			return true
		}
	}
	return false
}

// Entry is one enterprise with its offered modules.
type Entry struct {
	Enterprise generic.Enterprise `json:"enterprise"`
	Modules    []generic.ModuleID `json:"modules"`
}

// For lists the catalog of every enterprise, in the order given.
func (c Catalog) For(enterprises []generic.Enterprise) []Entry {
	out := make([]Entry, 0, len(enterprises))
	for _, e := range enterprises {
		out = append(out, Entry{Enterprise: e, Modules: c.Modules(e.Slug)})
	}
	return out
}
