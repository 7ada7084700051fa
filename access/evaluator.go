package access

import (
	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// GRANTS - The three persisted grant collections of one user
// =============================================================================

// Grants is a user's app permissions (nil when no row exists), enterprise
// membership and module permission rows.
type Grants struct {
	App         *generic.AppPermissions    `json:"app"`
	Enterprises []generic.EnterpriseID     `json:"enterprises"`
	Modules     []generic.ModulePermission `json:"modules"`
}

// Snapshot is everything the evaluator needs about one user.
type Snapshot struct {
	Profile generic.Profile `json:"profile"`
	Grants  Grants          `json:"grants"`
}

type grantKey struct {
	enterprise generic.EnterpriseID
	module     generic.ModuleID
}

// =============================================================================
// EVALUATOR - Pure permission queries
// =============================================================================

// Evaluator answers permission queries for one user. It never mutates state
// and never touches the store.
type Evaluator struct {
	role    generic.Role
	app     generic.AppPermissions
	scope   Scope
	grants  map[grantKey]generic.CRUD
	all     []generic.Enterprise
	byID    map[generic.EnterpriseID]generic.Enterprise
	catalog Catalog
}

// NewEvaluator builds an evaluator over the user's snapshot and the current
// set of enterprises.
func NewEvaluator(snap Snapshot, enterprises []generic.Enterprise, catalog Catalog) *Evaluator {
	ev := &Evaluator{
		role:    snap.Profile.Role,
		scope:   DeriveScope(snap.Grants.App, snap.Grants.Enterprises),
		grants:  make(map[grantKey]generic.CRUD, len(snap.Grants.Modules)),
		all:     enterprises,
		byID:    make(map[generic.EnterpriseID]generic.Enterprise, len(enterprises)),
		catalog: catalog,
	}
	if snap.Grants.App != nil {
		ev.app = *snap.Grants.App
	}
	for _, e := range enterprises {
		ev.byID[e.ID] = e
	}
	for _, row := range snap.Grants.Modules {
		ev.grants[grantKey{row.EnterpriseID, row.Module}] = row.CRUD
	}
	return ev
}

func (ev *Evaluator) IsAdmin() bool { return ev.role == generic.RoleAdmin }

func (ev *Evaluator) Role() generic.Role { return ev.role }

// Scope returns the derived enterprise scope. Admins are reported as
// explicit members of every enterprise.
func (ev *Evaluator) Scope() Scope {
	if ev.IsAdmin() {
		return Explicit(ev.AccessibleEnterprises()...)
	}
	return ev.scope
}

// CanAccessPage checks the page-level grant. Unknown pages are denied.
func (ev *Evaluator) CanAccessPage(page generic.Page) bool {
	if ev.IsAdmin() {
		return true
	}
	return ev.app.Allows(page)
}

// CanAccessEnterprise checks enterprise membership.
func (ev *Evaluator) CanAccessEnterprise(id generic.EnterpriseID) bool {
	if ev.IsAdmin() {
		return true
	}
	if _, ok := ev.byID[id]; !ok {
		return false
	}
	return ev.scope.Includes(id)
}

// Can checks a module action within one enterprise. Every catalog module is
// enterprise-scoped, so an empty enterprise id is denied for non-admins;
// use CanInAny for "in at least one enterprise". Rows for an enterprise the
// user is no longer a member of grant nothing.
func (ev *Evaluator) Can(module generic.ModuleID, action generic.Action, enterpriseID generic.EnterpriseID) bool {
	if ev.IsAdmin() {
		return true
	}
	if enterpriseID == "" || !validAction(action) {
		return false
	}
	ent, ok := ev.byID[enterpriseID]
	if !ok || !ev.scope.Includes(enterpriseID) || !ev.catalog.Offers(ent.Slug, module) {
		return false
	}
	if ev.scope.ReadOnly() {
		return action == generic.ActionRead
	}
	crud, ok := ev.grants[grantKey{enterpriseID, module}]
	return ok && crud.Allows(action)
}

// CanInAny reports whether Can holds in at least one enterprise.
func (ev *Evaluator) CanInAny(module generic.ModuleID, action generic.Action) bool {
	if ev.IsAdmin() {
		return true
	}
	for _, e := range ev.all {
		if ev.Can(module, action, e.ID) {
			return true
		}
	}
	return false
}

// Permissions returns the effective CRUD of module in an enterprise.
func (ev *Evaluator) Permissions(module generic.ModuleID, enterpriseID generic.EnterpriseID) generic.CRUD {
	var out generic.CRUD
	for _, a := range generic.Actions {
		out.Set(a, ev.Can(module, a, enterpriseID))
	}
	return out
}

// AccessibleEnterprises lists the enterprises the user sees, in store order.
func (ev *Evaluator) AccessibleEnterprises() []generic.EnterpriseID {
	if ev.IsAdmin() {
		return AllReadOnly().Resolve(ev.all)
	}
	return ev.scope.Resolve(ev.all)
}

// Pages lists the pages the user can open.
func (ev *Evaluator) Pages() []generic.Page {
	var out []generic.Page
	for _, p := range generic.Pages {
		if ev.CanAccessPage(p) {
			out = append(out, p)
		}
	}
	return out
}

func validAction(a generic.Action) bool {
	for _, known := range generic.Actions {
		if a == known {
			return true
		}
	}
	return false
}
