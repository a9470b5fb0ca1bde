// Package roles decides which team management actions a member may attempt.
//
// These checks gate affordances only. The backend enforces the same rules and
// remains the authority; a true result here never authorizes anything.
package roles

import (
	"sort"
	"strings"
)

// Role is a member's permission tier within a project.
type Role string

const (
	None        Role = ""
	Owner       Role = "owner"
	Admin       Role = "admin"
	Contributor Role = "contributor"
	Guest       Role = "guest"
	// Member is the pre-migration role. It is valid existing state but never assignable.
	Member Role = "member"
)

// DefaultInviteRole is preselected when inviting a new member.
const DefaultInviteRole = Contributor

// Parse normalizes s and reports whether it names a known role.
func Parse(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Owner, Admin, Contributor, Guest, Member:
		return r, true
	}
	return None, false
}

// ParseActor resolves the acting user's role. Anything unknown, including
// the legacy role, is treated as unset.
func ParseActor(s string) Role {
	r, ok := Parse(s)
	if !ok || r == Member {
		return None
	}
	return r
}

// String returns the role's display label.
func (r Role) String() string {
	if r == None {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// CanChangeRole reports whether actor may change target's role.
func CanChangeRole(actor, target Role, targetUserID, actorUserID string) bool {
	if actor == None {
		return false
	}
	if targetUserID == actorUserID && (actor == Owner || actor == Admin) {
		return false
	}
	switch actor {
	case Owner:
		return target != Owner
	case Admin:
		return target != Owner && target != Admin
	default:
		return false
	}
}

// CanRemove reports whether actor may remove target from the project.
func CanRemove(actor, target Role, targetUserID, actorUserID string) bool {
	switch actor {
	case Owner:
		return target != Owner && targetUserID != actorUserID
	case Admin:
		return target != Owner && target != Admin && targetUserID != actorUserID
	default:
		return false
	}
}

// CanManageMembers reports whether actor may invite members at all.
func CanManageMembers(actor Role) bool {
	return actor == Owner || actor == Admin
}

// AssignableRoles lists the roles actor may hand out, in display order.
// Only an owner may create admins; nobody may assign owner or the legacy role.
func AssignableRoles(actor Role) []Role {
	switch actor {
	case Owner:
		return []Role{Admin, Contributor, Guest}
	case Admin:
		return []Role{Contributor, Guest}
	default:
		return nil
	}
}

// CanAssign reports whether role is among AssignableRoles(actor).
func CanAssign(actor, role Role) bool {
	for _, r := range AssignableRoles(actor) {
		if r == role {
			return true
		}
	}
	return false
}

// SelectedOption is the option shown as selected for a member holding current.
// The legacy role is shown as contributor, so any selection normalizes it.
func SelectedOption(current Role) Role {
	if current == Member {
		return Contributor
	}
	return current
}

// Rank orders roles for display: owner, then admin, then everyone else.
func Rank(r Role) int {
	switch r {
	case Owner:
		return 0
	case Admin:
		return 1
	default:
		return 2
	}
}

// SortByRank orders items by the rank of their role, then by name without
// regard to case.
func SortByRank[T any](items []T, role func(T) Role, name func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := Rank(role(items[i])), Rank(role(items[j]))
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(name(items[i])) < strings.ToLower(name(items[j]))
	})
}
