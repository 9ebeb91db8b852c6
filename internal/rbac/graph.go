package rbac

import (
	"sort"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// Graph maps a role to the roles it directly implies. Values are built once and
// never mutated; callers only read through Implied and ExpandRoles.
type Graph struct {
	edges map[string][]string
}

// NewGraph copies the provided adjacency lists into an immutable Graph.
func NewGraph(edges map[string][]string) Graph {
	copied := make(map[string][]string, len(edges))
	for role, implied := range edges {
		copied[role] = append([]string(nil), implied...)
	}
	return Graph{edges: copied}
}

// Implied returns a copy of the roles directly implied by role.
func (g Graph) Implied(role string) []string {
	return append([]string(nil), g.edges[role]...)
}

var (
	GlobalImplications = NewGraph(map[string][]string{
		string(enums.GlobalRoleAdmin):    {string(enums.GlobalRoleMember), string(enums.GlobalRoleMerchant)},
		string(enums.GlobalRoleMerchant): {string(enums.GlobalRoleMember)},
		string(enums.GlobalRoleMember):   {},
	})
	TenantImplications = NewGraph(map[string][]string{
		string(enums.OrgRoleOwner):      {string(enums.OrgRoleAdmin), string(enums.OrgRoleStaff), string(enums.OrgRoleAccountant)},
		string(enums.OrgRoleAdmin):      {string(enums.OrgRoleStaff), string(enums.OrgRoleAccountant)},
		string(enums.OrgRoleStaff):      {},
		string(enums.OrgRoleAccountant): {},
	})
)

// RoleSet is an unordered set of role slugs.
type RoleSet map[string]struct{}

func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role != "" {
			set[role] = struct{}{}
		}
	}
	return set
}

func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether any role of other is in s.
func (s RoleSet) Intersects(other RoleSet) bool {
	for role := range other {
		if s.Has(role) {
			return true
		}
	}
	return false
}

// Contains reports whether every role of other is in s. An empty other is always contained.
func (s RoleSet) Contains(other RoleSet) bool {
	for role := range other {
		if !s.Has(role) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// ExpandRoles computes the transitive closure of roles over graph. The walk only
// ever adds roles, so cycles terminate once no new role is discovered.
func ExpandRoles(roles []string, graph Graph) RoleSet {
	expanded := NewRoleSet(roles...)
	queue := make([]string, 0, len(expanded))
	for role := range expanded {
		queue = append(queue, role)
	}
	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]
		for _, implied := range graph.edges[role] {
			if expanded.Has(implied) {
				continue
			}
			expanded[implied] = struct{}{}
			queue = append(queue, implied)
		}
	}
	return expanded
}
