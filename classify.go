package membership

import "regexp"

// Reserved built-in group names.
const (
	// RegisteredUsers is the default group every account belongs to. Exempt
	// from the owner invariant and from the display-title side effect.
	RegisteredUsers = "registered-users"

	// Administrators membership is what makes a uid an administrator; Join
	// consults it when deciding whether the joiner becomes an owner.
	Administrators = "administrators"
)

// defaultEphemeralGroups are synthetic names with no persisted membership.
var defaultEphemeralGroups = []string{"guests", "spiders"}

var privilegeGroupRE = regexp.MustCompile(`^cid:\d+:privileges:[\w:]+$`)

// IsPrivilegeGroup reports whether name is a synthetic per-category group
// encoding a single permission grant. Privilege groups are hidden from
// generic listings, never become a display title, and are destroyed
// automatically when their last member leaves.
func IsPrivilegeGroup(name string) bool {
	return privilegeGroupRE.MatchString(name)
}

// IsEphemeralGroup reports whether name is one of the fixed synthetic groups
// (guests and the like) that have no backing membership data. Running store
// membership tests against such a name would return meaningless data, so
// every operation that iterates "all groups" filters them first.
func (s *service) IsEphemeralGroup(name string) bool {
	for _, g := range s.ephemeral {
		if g == name {
			return true
		}
	}
	return false
}

// RemoveEphemeralGroups filters ephemeral names out of a group-name list.
// The input slice is not modified.
func (s *service) RemoveEphemeralGroups(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !s.IsEphemeralGroup(n) {
			out = append(out, n)
		}
	}
	return out
}
