package membership

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/forumkit/membership/bus"
	"github.com/forumkit/membership/cache"
	"github.com/forumkit/membership/store"
)

// Service is the group membership and privilege cache subsystem. Query
// operations return booleans, never an error for "not found"; mutation
// operations are idempotent ("already in desired state" is success) so
// callers can retry safely.
type Service interface {
	// Mutations.

	// Join adds uid to group, auto-creating the group as hidden if it does
	// not exist. Administrators become owners of every group they join. The
	// first non-reserved group a user joins becomes their display title.
	Join(ctx context.Context, group string, uid int64) error

	// Leave removes uid from group's member and owner sets. A privilege
	// group emptied by the departure is destroyed outright.
	Leave(ctx context.Context, group string, uid int64) error

	// LeaveAllGroups leaves every group uid belongs to and clears any
	// pending or invited entries, fanning out one operation pair per group.
	LeaveAllGroups(ctx context.Context, uid int64) error

	// Kick removes uid on behalf of an owner. When isOwner is set the group
	// must retain at least one other owner or the kick fails with
	// ErrNeedsOwner and nothing changes.
	Kick(ctx context.Context, uid int64, group string, isOwner bool) error

	// RequestMembership records uid in the group's pending set. Fails with
	// ErrAlreadyRequested on a duplicate request, ErrNoSuchGroup if the
	// group is absent; succeeds silently if uid is already a member.
	RequestMembership(ctx context.Context, group string, uid int64) error

	// Invite records uid in the group's invited set. Re-inviting an already
	// invited or already joined uid is a no-op success.
	Invite(ctx context.Context, group string, uid int64) error

	// AcceptMembership clears uid from the pending and invited sets and
	// joins. It deliberately does not verify the caller owns the group;
	// that authorization belongs to the calling layer.
	AcceptMembership(ctx context.Context, group string, uid int64) error

	// RejectMembership clears uid from the pending and invited sets.
	// Clearing absent entries is a no-op.
	RejectMembership(ctx context.Context, group string, uid int64) error

	// Group lifecycle.

	Create(ctx context.Context, opts CreateOptions) error
	Destroy(ctx context.Context, group string) error
	Exists(ctx context.Context, group string) (bool, error)
	IsHidden(ctx context.Context, group string) (bool, error)

	// Membership queries (cache-accelerated).

	IsMember(ctx context.Context, uid int64, group string) (bool, error)
	IsMembers(ctx context.Context, uids []int64, group string) ([]bool, error)
	IsMemberOfGroups(ctx context.Context, uid int64, groups []string) ([]bool, error)
	IsMemberOfGroupList(ctx context.Context, uid int64, groupListKey string) (bool, error)
	IsMemberOfGroupsList(ctx context.Context, uid int64, groupListKeys []string) ([]bool, error)
	IsMembersOfGroupList(ctx context.Context, uids []int64, groupListKey string) ([]bool, error)

	// Pending/invited state (store-direct, not cached).

	IsPending(ctx context.Context, uid int64, group string) (bool, error)
	IsInvited(ctx context.Context, uid int64, group string) (bool, error)
	Pending(ctx context.Context, group string) ([]int64, error)
	Invited(ctx context.Context, group string) ([]int64, error)

	// Member listings.

	// Members returns a page of member uids, most recent join first.
	Members(ctx context.Context, group string, start, stop int64) ([]int64, error)
	MembersOfGroups(ctx context.Context, groups []string) ([][]int64, error)
	MemberCount(ctx context.Context, group string) (int64, error)
	Owners(ctx context.Context, group string) ([]int64, error)
	OwnerCount(ctx context.Context, group string) (int64, error)

	// Classifier.

	IsEphemeralGroup(name string) bool
	RemoveEphemeralGroups(names []string) []string

	// ResetCache broadcasts a full invalidation to every process and clears
	// the local cache. Administrative; use after bulk external data changes.
	ResetCache(ctx context.Context) error

	Close(ctx context.Context) error
}

// CreateOptions describes a group to create.
type CreateOptions struct {
	Name        string
	Description string
	Hidden      bool
	// OwnerUID, when positive, is seeded as the group's first member and
	// owner. Zero leaves the group empty.
	OwnerUID int64
}

// Options tune the subsystem. Only Store is required; others have sensible
// defaults.
type Options struct {
	// Required.
	Store store.Store

	Cache  cache.Cache // nil => bounded expirable LRU (40000 entries, 1h TTL)
	Bus    bus.Bus     // nil => in-process loopback bus
	Events EventSink   // nil => NopSink
	Logger Logger      // nil => NopLogger
	Clock  clock.Clock // nil => wall clock; inject a mock in tests

	// EphemeralGroups overrides the synthetic group names filtered out of
	// real-group listings. nil => guests, spiders. An empty non-nil slice
	// disables filtering.
	EphemeralGroups []string
}

func New(opts Options) (Service, error) {
	return newService(opts)
}
