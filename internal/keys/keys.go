// Package keys centralizes construction of persistent-store keys so the rest
// of the module deals in structured (group, aspect) tuples rather than string
// concatenation at every call site.
package keys

import "strconv"

// Aspect names one of the per-group auxiliary sets.
type Aspect string

const (
	Members Aspect = "members"
	Owners  Aspect = "owners"
	Pending Aspect = "pending"
	Invited Aspect = "invited"
)

// Catalogue indices. GroupsByCreateTime doubles as the existence index: a
// group exists iff its name is a member of it.
const (
	GroupsByCreateTime   = "groups:createtime"
	VisibleByCreateTime  = "groups:visible:createtime"
	VisibleByMemberCount = "groups:visible:memberCount"
	VisibleByName        = "groups:visible:name"
)

// Group returns the object-record key for a group.
func Group(name string) string { return "group:" + name }

// GroupAspect returns the key of one per-group set.
func GroupAspect(name string, a Aspect) string { return "group:" + name + ":" + string(a) }

// User returns the object-record key for a user.
func User(uid int64) string { return "user:" + strconv.FormatInt(uid, 10) }
