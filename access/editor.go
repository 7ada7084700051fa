package access

import (
	"context"
	"sort"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// DRAFT - Uncommitted grant edits for one user
// =============================================================================

// Draft is the mutable side of the permission editor. Transitions only touch
// the draft; nothing reaches the store until the editor commits.
type Draft struct {
	App      generic.AppPermissions
	members  map[generic.EnterpriseID]bool
	modules  map[grantKey]generic.CRUD
	expanded map[generic.EnterpriseID]bool
}

func NewDraft() *Draft {
	return &Draft{
		members:  make(map[generic.EnterpriseID]bool),
		modules:  make(map[grantKey]generic.CRUD),
		expanded: make(map[generic.EnterpriseID]bool),
	}
}

// DraftOf starts a draft from committed grants.
func DraftOf(g Grants) *Draft {
	d := NewDraft()
	if g.App != nil {
		d.App = *g.App
	}
	for _, id := range g.Enterprises {
		d.members[id] = true
	}
	for _, row := range g.Modules {
		d.modules[grantKey{row.EnterpriseID, row.Module}] = row.CRUD
	}
	return d
}

// ToggleApp flips exactly one page flag. Nothing cascades: turning the
// entreprises page off leaves module rows in the draft; the save step decides
// what is persisted.
func (d *Draft) ToggleApp(page generic.Page) error {
	if !d.App.Toggle(page) {
		return generic.NewValidationError("page", "unknown")
	}
	return nil
}

func (d *Draft) IsMember(id generic.EnterpriseID) bool { return d.members[id] }

// ToggleEnterprise checks or unchecks membership. Checking seeds full CRUD
// for every module of the enterprise's catalog and expands its panel.
// Unchecking removes membership only.
func (d *Draft) ToggleEnterprise(e generic.Enterprise, catalog Catalog) {
	if d.members[e.ID] {
		delete(d.members, e.ID)
		return
	}
	d.members[e.ID] = true
	for _, m := range catalog.Modules(e.Slug) {
		d.modules[grantKey{e.ID, m}] = generic.FullCRUD
	}
	d.expanded[e.ID] = true
}

func (d *Draft) Expanded(id generic.EnterpriseID) bool { return d.expanded[id] }

// CRUD returns the draft flags of one (enterprise, module) cell row.
func (d *Draft) CRUD(id generic.EnterpriseID, module generic.ModuleID) generic.CRUD {
	return d.modules[grantKey{id, module}]
}

// ToggleCell flips one action of one module.
func (d *Draft) ToggleCell(id generic.EnterpriseID, module generic.ModuleID, action generic.Action) error {
	key := grantKey{id, module}
	crud := d.modules[key]
	if !crud.Set(action, !crud.Allows(action)) {
		return generic.NewValidationError("action", "unknown")
	}
	d.modules[key] = crud
	return nil
}

// ToggleAll sets all four actions to the negation of "all four are set":
// a partially checked row becomes fully checked, a full row becomes empty.
func (d *Draft) ToggleAll(id generic.EnterpriseID, module generic.ModuleID) {
	key := grantKey{id, module}
	if d.modules[key].All() {
		d.modules[key] = generic.CRUD{}
	} else {
		d.modules[key] = generic.FullCRUD
	}
}

// Grants materializes the draft. Rows are sorted by enterprise then module;
// all-false rows are included, the save plan drops them.
func (d *Draft) Grants(userID generic.UserID) Grants {
	app := d.App
	g := Grants{App: &app}
	for id, ok := range d.members {
		if ok {
			g.Enterprises = append(g.Enterprises, id)
		}
	}
	sort.Slice(g.Enterprises, func(i, j int) bool { return g.Enterprises[i] < g.Enterprises[j] })

	for key, crud := range d.modules {
		g.Modules = append(g.Modules, generic.ModulePermission{
			UserID:       userID,
			EnterpriseID: key.enterprise,
			Module:       key.module,
			CRUD:         crud,
		})
	}
	sortModules(g.Modules)
	return g
}

func sortModules(rows []generic.ModulePermission) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EnterpriseID != rows[j].EnterpriseID {
			return rows[i].EnterpriseID < rows[j].EnterpriseID
		}
		return rows[i].Module < rows[j].Module
	})
}

// =============================================================================
// EDITOR - Draft vs committed, with explicit commit
// =============================================================================

// Editor edits one user's grants. Committed mirrors what the store holds;
// Draft collects edits until Commit persists them or Reset discards them.
type Editor struct {
	userID    generic.UserID
	saver     *Saver
	committed Grants
	draft     *Draft
}

// NewUserEditor starts an editor for a user being created: nothing is
// committed yet.
func NewUserEditor(userID generic.UserID, saver *Saver) *Editor {
	return &Editor{userID: userID, saver: saver, draft: NewDraft()}
}

// EditUser starts an editor over a user's current grants.
func EditUser(ctx context.Context, userID generic.UserID, resolver *Resolver, saver *Saver) (*Editor, error) {
	snap, err := resolver.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Editor{userID: userID, saver: saver, committed: snap.Grants, draft: DraftOf(snap.Grants)}, nil
}

func (e *Editor) UserID() generic.UserID { return e.userID }
func (e *Editor) Draft() *Draft          { return e.draft }
func (e *Editor) Committed() Grants      { return e.committed }

// Dirty reports whether the draft differs from the committed grants.
func (e *Editor) Dirty() bool {
	return !sameGrants(e.draft.Grants(e.userID), DraftOf(e.committed).Grants(e.userID))
}

// Reset discards the draft and starts over from the committed grants.
func (e *Editor) Reset() {
	e.draft = DraftOf(e.committed)
}

// Commit persists the draft. On success the persisted grants become the
// committed value and a fresh draft starts from them; on failure the draft is
// kept so the user can retry.
func (e *Editor) Commit(ctx context.Context) (SavePlan, error) {
	plan, err := e.saver.Save(ctx, e.userID, e.draft.Grants(e.userID))
	if err != nil {
		return SavePlan{}, err
	}
	expanded := e.draft.expanded
	e.committed = plan.Grants()
	e.draft = DraftOf(e.committed)
	e.draft.expanded = expanded
	return plan, nil
}

func sameGrants(a, b Grants) bool {
	if (a.App == nil) != (b.App == nil) || (a.App != nil && *a.App != *b.App) {
		return false
	}
	if len(a.Enterprises) != len(b.Enterprises) || len(a.Modules) != len(b.Modules) {
		return false
	}
	for i := range a.Enterprises {
		if a.Enterprises[i] != b.Enterprises[i] {
			return false
		}
	}
	for i := range a.Modules {
		x, y := a.Modules[i], b.Modules[i]
		if x.EnterpriseID != y.EnterpriseID || x.Module != y.Module || x.CRUD != y.CRUD {
			return false
		}
	}
	return true
}
