package membership

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/forumkit/membership/bus/local"
	"github.com/forumkit/membership/internal/keys"
	"github.com/forumkit/membership/store"
	"github.com/forumkit/membership/store/mem"
)

// countingStore counts membership-test round-trips so tests can assert the
// cache (or a short-circuit) absorbed a lookup.
type countingStore struct {
	store.Store
	lookups atomic.Int64
}

func (c *countingStore) IsSortedSetMember(ctx context.Context, key, member string) (bool, error) {
	c.lookups.Add(1)
	return c.Store.IsSortedSetMember(ctx, key, member)
}

func (c *countingStore) IsSortedSetMembers(ctx context.Context, key string, members []string) ([]bool, error) {
	c.lookups.Add(1)
	return c.Store.IsSortedSetMembers(ctx, key, members)
}

func (c *countingStore) IsMemberOfSortedSets(ctx context.Context, keyList []string, member string) ([]bool, error) {
	c.lookups.Add(1)
	return c.Store.IsMemberOfSortedSets(ctx, keyList, member)
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureSink) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T, optsOpt func(*Options)) Service {
	t.Helper()
	opts := Options{Store: mem.New()}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

// ==============================
// Join / Leave
// ==============================

// Implicit join of a nonexistent group must auto-provision it hidden.
func TestJoinCreatesHiddenGroup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Join(ctx, "g1", 42); err != nil {
		t.Fatalf("Join: %v", err)
	}

	exists, err := svc.Exists(ctx, "g1")
	if err != nil || !exists {
		t.Fatalf("Exists after join: ok=%v err=%v", exists, err)
	}
	hidden, err := svc.IsHidden(ctx, "g1")
	if err != nil || !hidden {
		t.Fatalf("auto-created group should be hidden: hidden=%v err=%v", hidden, err)
	}
	count, err := svc.MemberCount(ctx, "g1")
	if err != nil || count != 1 {
		t.Fatalf("MemberCount: got %d err=%v", count, err)
	}
	isMember, err := svc.IsMember(ctx, 42, "g1")
	if err != nil || !isMember {
		t.Fatalf("IsMember after join: %v err=%v", isMember, err)
	}
}

// Calling join twice must increment the member count exactly once.
func TestJoinIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	for i := 0; i < 2; i++ {
		if err := svc.Join(ctx, "g1", 42); err != nil {
			t.Fatalf("Join #%d: %v", i+1, err)
		}
	}
	count, err := svc.MemberCount(ctx, "g1")
	if err != nil || count != 1 {
		t.Fatalf("MemberCount after double join: got %d err=%v", count, err)
	}
}

func TestJoinValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Join(ctx, "", 42); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("empty group: got %v", err)
	}
	if err := svc.Join(ctx, "g1", 0); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("uid 0: got %v", err)
	}
	if exists, _ := svc.Exists(ctx, "g1"); exists {
		t.Fatalf("failed validation must not create the group")
	}
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Join(ctx, "g1", 42); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := svc.Leave(ctx, "g1", 42); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	isMember, err := svc.IsMember(ctx, 42, "g1")
	if err != nil || isMember {
		t.Fatalf("IsMember after leave: %v err=%v", isMember, err)
	}
	count, err := svc.MemberCount(ctx, "g1")
	if err != nil || count != 0 {
		t.Fatalf("MemberCount after leave: got %d err=%v", count, err)
	}

	// leaving again, or leaving a group that never existed, is a no-op
	if err := svc.Leave(ctx, "g1", 42); err != nil {
		t.Fatalf("second Leave: %v", err)
	}
	if err := svc.Leave(ctx, "never-existed", 42); err != nil {
		t.Fatalf("Leave of absent group: %v", err)
	}
}

// Administrators become owners of every group they join.
func TestJoinAdminBecomesOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Join(ctx, Administrators, 1); err != nil {
		t.Fatalf("Join administrators: %v", err)
	}
	if err := svc.Join(ctx, "team", 1); err != nil {
		t.Fatalf("Join team: %v", err)
	}
	if err := svc.Join(ctx, "team", 2); err != nil {
		t.Fatalf("Join team (non-admin): %v", err)
	}

	owners, err := svc.Owners(ctx, "team")
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if len(owners) != 1 || owners[0] != 1 {
		t.Fatalf("expected admin uid 1 as sole owner, got %v", owners)
	}
}

// Privilege groups are destroyed outright when their last member leaves.
func TestPrivilegeGroupAutoDestroy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	const priv = "cid:3:privileges:topics:read"

	if err := svc.Join(ctx, priv, 9); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if exists, _ := svc.Exists(ctx, priv); !exists {
		t.Fatalf("privilege group should exist while populated")
	}

	if err := svc.Leave(ctx, priv, 9); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	exists, err := svc.Exists(ctx, priv)
	if err != nil || exists {
		t.Fatalf("privilege group should be destroyed when emptied: exists=%v err=%v", exists, err)
	}
	isMember, err := svc.IsMember(ctx, 9, priv)
	if err != nil || isMember {
		t.Fatalf("IsMember after destroy: %v err=%v", isMember, err)
	}
}

func TestLeaveAllGroups(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	for _, g := range []string{"a", "b", "c"} {
		if err := svc.Join(ctx, g, 5); err != nil {
			t.Fatalf("Join %s: %v", g, err)
		}
	}
	if err := svc.Create(ctx, CreateOptions{Name: "d", OwnerUID: 1}); err != nil {
		t.Fatalf("Create d: %v", err)
	}
	if err := svc.RequestMembership(ctx, "d", 5); err != nil {
		t.Fatalf("RequestMembership: %v", err)
	}

	if err := svc.LeaveAllGroups(ctx, 5); err != nil {
		t.Fatalf("LeaveAllGroups: %v", err)
	}
	for _, g := range []string{"a", "b", "c"} {
		if isMember, _ := svc.IsMember(ctx, 5, g); isMember {
			t.Fatalf("still member of %s after LeaveAllGroups", g)
		}
	}
	if pending, _ := svc.IsPending(ctx, 5, "d"); pending {
		t.Fatalf("pending entry for d should be cleared")
	}
}

// ==============================
// Kick / owner invariant
// ==============================

func TestKickNeedsOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Create(ctx, CreateOptions{Name: "g1", OwnerUID: 7}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := svc.Kick(ctx, 7, "g1", true)
	if !errors.Is(err, ErrNeedsOwner) {
		t.Fatalf("expected ErrNeedsOwner, got %v", err)
	}
	// failed kick must leave membership unchanged
	if isMember, _ := svc.IsMember(ctx, 7, "g1"); !isMember {
		t.Fatalf("membership changed by failed kick")
	}

	// with a second owner the kick goes through
	if err := svc.Join(ctx, Administrators, 8); err != nil {
		t.Fatalf("Join administrators: %v", err)
	}
	if err := svc.Join(ctx, "g1", 8); err != nil {
		t.Fatalf("Join g1: %v", err)
	}
	if err := svc.Kick(ctx, 7, "g1", true); err != nil {
		t.Fatalf("Kick with two owners: %v", err)
	}
	if isMember, _ := svc.IsMember(ctx, 7, "g1"); isMember {
		t.Fatalf("uid 7 should be out after kick")
	}
}

func TestKickNonOwnerDelegatesToLeave(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Join(ctx, "g1", 3); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := svc.Kick(ctx, 3, "g1", false); err != nil {
		t.Fatalf("Kick: %v", err)
	}
	if isMember, _ := svc.IsMember(ctx, 3, "g1"); isMember {
		t.Fatalf("uid 3 should be out after kick")
	}
}

// ==============================
// Request / invite / accept / reject
// ==============================

func TestRequestAcceptFlow(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	svc := newTestService(t, func(o *Options) { o.Events = sink })

	if err := svc.Create(ctx, CreateOptions{Name: "g1", OwnerUID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.RequestMembership(ctx, "g1", 7); err != nil {
		t.Fatalf("RequestMembership: %v", err)
	}
	if pending, _ := svc.IsPending(ctx, 7, "g1"); !pending {
		t.Fatalf("uid 7 should be pending")
	}
	if err := svc.RequestMembership(ctx, "g1", 7); !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("duplicate request: got %v", err)
	}

	if err := svc.AcceptMembership(ctx, "g1", 7); err != nil {
		t.Fatalf("AcceptMembership: %v", err)
	}
	if pending, _ := svc.IsPending(ctx, 7, "g1"); pending {
		t.Fatalf("pending entry should be cleared by accept")
	}
	if invited, _ := svc.IsInvited(ctx, 7, "g1"); invited {
		t.Fatalf("invited entry should be cleared by accept")
	}
	if isMember, _ := svc.IsMember(ctx, 7, "g1"); !isMember {
		t.Fatalf("uid 7 should be a member after accept")
	}

	if got := sink.byType(EventRequest); len(got) != 1 || got[0].UID != 7 {
		t.Fatalf("expected one request event for uid 7, got %v", got)
	}
}

func TestInviteFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Create(ctx, CreateOptions{Name: "g1", OwnerUID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Invite(ctx, "g1", 7); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	// re-inviting is a no-op, not an error
	if err := svc.Invite(ctx, "g1", 7); err != nil {
		t.Fatalf("second Invite: %v", err)
	}
	if invited, _ := svc.IsInvited(ctx, 7, "g1"); !invited {
		t.Fatalf("uid 7 should be invited")
	}

	if err := svc.RejectMembership(ctx, "g1", 7); err != nil {
		t.Fatalf("RejectMembership: %v", err)
	}
	if invited, _ := svc.IsInvited(ctx, 7, "g1"); invited {
		t.Fatalf("invited entry should be cleared by reject")
	}

	// inviting an existing member short-circuits to success
	if err := svc.Invite(ctx, "g1", 1); err != nil {
		t.Fatalf("Invite of member: %v", err)
	}
	if invited, _ := svc.IsInvited(ctx, 1, "g1"); invited {
		t.Fatalf("member must not be re-recorded as invited")
	}

	if err := svc.Invite(ctx, "nope", 7); !errors.Is(err, ErrNoSuchGroup) {
		t.Fatalf("invite to absent group: got %v", err)
	}
	if err := svc.RequestMembership(ctx, "g1", 0); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("request with uid 0: got %v", err)
	}
}

// ==============================
// Display group title side effect
// ==============================

func TestGroupTitleSetOnFirstJoin(t *testing.T) {
	ctx := context.Background()
	st := mem.New()
	svc := newTestService(t, func(o *Options) { o.Store = st })

	// reserved and privilege groups never become the badge
	if err := svc.Join(ctx, RegisteredUsers, 42); err != nil {
		t.Fatalf("Join registered-users: %v", err)
	}
	if err := svc.Join(ctx, "cid:1:privileges:read", 42); err != nil {
		t.Fatalf("Join privilege group: %v", err)
	}
	if _, ok, _ := st.ObjectField(ctx, keys.User(42), "groupTitle"); ok {
		t.Fatalf("title must not be set by reserved/privilege joins")
	}

	if err := svc.Join(ctx, "helpers", 42); err != nil {
		t.Fatalf("Join helpers: %v", err)
	}
	title, ok, _ := st.ObjectField(ctx, keys.User(42), "groupTitle")
	if !ok || title != "helpers" {
		t.Fatalf("expected title \"helpers\", got %q ok=%v", title, ok)
	}

	// the second group joined does not overwrite the badge
	if err := svc.Join(ctx, "editors", 42); err != nil {
		t.Fatalf("Join editors: %v", err)
	}
	title, _, _ = st.ObjectField(ctx, keys.User(42), "groupTitle")
	if title != "helpers" {
		t.Fatalf("title overwritten, got %q", title)
	}

	// an explicitly blank title counts as set
	if err := st.SetObjectField(ctx, keys.User(50), "groupTitle", ""); err != nil {
		t.Fatalf("seed blank title: %v", err)
	}
	if err := svc.Join(ctx, "helpers", 50); err != nil {
		t.Fatalf("Join helpers (uid 50): %v", err)
	}
	title, _, _ = st.ObjectField(ctx, keys.User(50), "groupTitle")
	if title != "" {
		t.Fatalf("blank title must survive, got %q", title)
	}
}

// ==============================
// Cross-process invalidation
// ==============================

// Two services sharing one store and one bus but holding separate caches
// stand in for two server processes.
func TestInvalidationAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	st := mem.New()
	shared := local.New()

	s1 := newTestService(t, func(o *Options) { o.Store = st; o.Bus = shared })
	s2 := newTestService(t, func(o *Options) { o.Store = st; o.Bus = shared })

	if err := s1.Join(ctx, "team", 7); err != nil {
		t.Fatalf("Join: %v", err)
	}
	// warm s2's cache
	if isMember, _ := s2.IsMember(ctx, 7, "team"); !isMember {
		t.Fatalf("s2 should see the join through the store")
	}

	// the leave on s1 must reach s2's cache through the bus
	if err := s1.Leave(ctx, "team", 7); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if isMember, _ := s2.IsMember(ctx, 7, "team"); isMember {
		t.Fatalf("s2 served a stale verdict after cross-process leave")
	}
}

func TestResetCacheAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	st := mem.New()
	shared := local.New()

	counted := &countingStore{Store: st}
	s1 := newTestService(t, func(o *Options) { o.Store = st; o.Bus = shared })
	s2 := newTestService(t, func(o *Options) { o.Store = counted; o.Bus = shared })

	if err := s1.Join(ctx, "team", 7); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if isMember, _ := s2.IsMember(ctx, 7, "team"); !isMember {
		t.Fatalf("warmup: s2 should see the join")
	}

	// mutate the store behind the caches' backs, then broadcast a reset
	if err := st.SortedSetRemove(ctx, keys.GroupAspect("team", keys.Members), "7"); err != nil {
		t.Fatalf("direct store mutation: %v", err)
	}
	if isMember, _ := s2.IsMember(ctx, 7, "team"); !isMember {
		t.Fatalf("s2 should still serve the cached verdict before the reset")
	}

	before := counted.lookups.Load()
	if err := s1.ResetCache(ctx); err != nil {
		t.Fatalf("ResetCache: %v", err)
	}
	isMember, err := s2.IsMember(ctx, 7, "team")
	if err != nil || isMember {
		t.Fatalf("s2 should re-check the store after reset: isMember=%v err=%v", isMember, err)
	}
	if counted.lookups.Load() != before+1 {
		t.Fatalf("reset must force a store re-check, lookups %d -> %d", before, counted.lookups.Load())
	}
}

// ==============================
// Event sink boundary
// ==============================

func TestEventsEmittedOnTransitions(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	svc := newTestService(t, func(o *Options) { o.Events = sink })

	const priv = "cid:1:privileges:read"
	if err := svc.Join(ctx, priv, 3); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := svc.Leave(ctx, priv, 3); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	if got := sink.byType(EventJoin); len(got) != 1 || got[0] != (Event{EventJoin, priv, 3}) {
		t.Fatalf("join events: %v", got)
	}
	if got := sink.byType(EventLeave); len(got) != 1 {
		t.Fatalf("leave events: %v", got)
	}
	if got := sink.byType(EventDestroy); len(got) != 1 || got[0].Group != priv {
		t.Fatalf("destroy events: %v", got)
	}
}

// ==============================
// Lifecycle
// ==============================

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Create(ctx, CreateOptions{Name: ""}); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("empty name: got %v", err)
	}
	if err := svc.Create(ctx, CreateOptions{Name: "guests"}); !errors.Is(err, ErrGroupExists) {
		t.Fatalf("ephemeral name: got %v", err)
	}
	if err := svc.Create(ctx, CreateOptions{Name: "g1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Create(ctx, CreateOptions{Name: "g1"}); !errors.Is(err, ErrGroupExists) {
		t.Fatalf("duplicate name: got %v", err)
	}
}

func TestCreateWithOwnerSeedsMembership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Create(ctx, CreateOptions{Name: "g1", Description: "d", OwnerUID: 7}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if isMember, _ := svc.IsMember(ctx, 7, "g1"); !isMember {
		t.Fatalf("owner should be a member")
	}
	if n, _ := svc.OwnerCount(ctx, "g1"); n != 1 {
		t.Fatalf("OwnerCount: got %d", n)
	}
	if n, _ := svc.MemberCount(ctx, "g1"); n != 1 {
		t.Fatalf("MemberCount: got %d", n)
	}
	if hidden, _ := svc.IsHidden(ctx, "g1"); hidden {
		t.Fatalf("explicitly created group defaults to visible")
	}
}

func TestVisibleIndexTracksMemberCount(t *testing.T) {
	ctx := context.Background()
	st := mem.New()
	svc := newTestService(t, func(o *Options) { o.Store = st })

	if err := svc.Create(ctx, CreateOptions{Name: "small", OwnerUID: 1}); err != nil {
		t.Fatalf("Create small: %v", err)
	}
	if err := svc.Create(ctx, CreateOptions{Name: "big", OwnerUID: 2}); err != nil {
		t.Fatalf("Create big: %v", err)
	}
	for _, uid := range []int64{3, 4, 5} {
		if err := svc.Join(ctx, "big", uid); err != nil {
			t.Fatalf("Join big: %v", err)
		}
	}

	names, err := st.SortedSetRevRange(ctx, keys.VisibleByMemberCount, 0, 0)
	if err != nil || len(names) != 1 || names[0] != "big" {
		t.Fatalf("largest visible group: got %v err=%v", names, err)
	}

	// emptied visible groups stay listed with a refreshed score
	if err := svc.Leave(ctx, "small", 1); err != nil {
		t.Fatalf("Leave small: %v", err)
	}
	all, err := st.SortedSetRange(ctx, keys.VisibleByMemberCount, 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	found := false
	for _, n := range all {
		if n == "small" {
			found = true
		}
	}
	if !found {
		t.Fatalf("empty visible group should stay in the index, got %v", all)
	}
}

func TestDestroyRemovesEverything(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	if err := svc.Create(ctx, CreateOptions{Name: "g1", OwnerUID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.RequestMembership(ctx, "g1", 7); err != nil {
		t.Fatalf("RequestMembership: %v", err)
	}
	if err := svc.Destroy(ctx, "g1"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if exists, _ := svc.Exists(ctx, "g1"); exists {
		t.Fatalf("group should be gone")
	}
	if pending, _ := svc.Pending(ctx, "g1"); len(pending) != 0 {
		t.Fatalf("pending set should be gone, got %v", pending)
	}
	if n, _ := svc.MemberCount(ctx, "g1"); n != 0 {
		t.Fatalf("member count should read 0, got %d", n)
	}
}
