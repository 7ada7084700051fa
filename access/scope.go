package access

import (
	"sort"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// SCOPE - Which enterprises a user sees
// =============================================================================

type ScopeKind string

const (
	// ScopeNone sees no enterprise.
	ScopeNone ScopeKind = "none"
	// ScopeExplicit sees exactly the enterprises in its membership set.
	ScopeExplicit ScopeKind = "explicit"
	// ScopeAllReadOnly sees every enterprise, including ones created later,
	// with read access to every catalog module and nothing else.
	ScopeAllReadOnly ScopeKind = "all_read_only"
)

// Scope is derived from page grants and membership, never stored.
type Scope struct {
	Kind    ScopeKind
	members map[generic.EnterpriseID]bool
}

func NoScope() Scope     { return Scope{Kind: ScopeNone} }
func AllReadOnly() Scope { return Scope{Kind: ScopeAllReadOnly} }

func Explicit(ids ...generic.EnterpriseID) Scope {
	s := Scope{Kind: ScopeExplicit, members: make(map[generic.EnterpriseID]bool, len(ids))}
	for _, id := range ids {
		s.members[id] = true
	}
	return s
}

// DeriveScope applies the membership rule: with the entreprises page the
// membership set applies as is; otherwise dashboard access alone means every
// enterprise read-only; otherwise nothing.
func DeriveScope(app *generic.AppPermissions, membership []generic.EnterpriseID) Scope {
	switch {
	case app == nil:
		return NoScope()
	case app.Enterprises:
		return Explicit(membership...)
	case app.Dashboard:
		return AllReadOnly()
	default:
		return NoScope()
	}
}

// Includes reports whether id is in scope. ScopeAllReadOnly includes any id.
func (s Scope) Includes(id generic.EnterpriseID) bool {
	switch s.Kind {
	case ScopeAllReadOnly:
		return true
	case ScopeExplicit:
		return s.members[id]
	}
	return false
}

// ReadOnly reports whether the scope forbids every write.
func (s Scope) ReadOnly() bool { return s.Kind == ScopeAllReadOnly }

// Members returns the explicit membership set, sorted. Empty for other kinds.
func (s Scope) Members() []generic.EnterpriseID {
	out := make([]generic.EnterpriseID, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve lists the enterprises of all that are in scope, in order.
func (s Scope) Resolve(all []generic.Enterprise) []generic.EnterpriseID {
	var out []generic.EnterpriseID
	for _, e := range all {
		if s.Includes(e.ID) {
			out = append(out, e.ID)
		}
	}
	return out
}
