package membership

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/forumkit/membership/internal/keys"
)

func (s *service) Join(ctx context.Context, group string, uid int64) error {
	if group == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidData)
	}
	if uid <= 0 {
		return ErrNotLoggedIn
	}

	isMember, err := s.IsMember(ctx, uid, group)
	if err != nil {
		return err
	}
	if isMember {
		return nil // already in desired state
	}

	exists, err := s.Exists(ctx, group)
	if err != nil {
		return err
	}
	if !exists {
		err := s.Create(ctx, CreateOptions{Name: group, Hidden: true})
		if err != nil && !errors.Is(err, ErrGroupExists) {
			s.log.Error("could not auto-create hidden group", Fields{"group": group, "err": err})
			return err
		}
		// a concurrent joiner winning the create race counts as success
	}

	var isAdmin, isHidden bool
	{
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			isAdmin, err = s.IsMember(gctx, uid, Administrators)
			return err
		})
		g.Go(func() error {
			var err error
			isHidden, err = s.IsHidden(gctx, group)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}

	now := s.clock.Now().UnixMilli()
	member := uidStr(uid)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.SortedSetAdd(gctx, keys.GroupAspect(group, keys.Members), float64(now), member)
	})
	g.Go(func() error {
		_, err := s.store.IncrObjectField(gctx, keys.Group(group), "memberCount")
		return err
	})
	if isAdmin {
		g.Go(func() error {
			return s.store.SetAdd(gctx, keys.GroupAspect(group, keys.Owners), member)
		})
	}
	if !isHidden {
		g.Go(func() error {
			_, err := s.store.SortedSetIncrBy(gctx, keys.VisibleByMemberCount, 1, group)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.clearCache(ctx, uid, group)
	if err := s.maybeSetDisplayGroupTitle(ctx, group, uid); err != nil {
		return err
	}
	s.events.Emit(Event{Type: EventJoin, Group: group, UID: uid})
	return nil
}

// maybeSetDisplayGroupTitle makes the first joined group the user's display
// badge. It triggers only when the title field is absent entirely (an empty
// string counts as deliberately cleared) and never for the default
// registered-users group or a privilege group.
func (s *service) maybeSetDisplayGroupTitle(ctx context.Context, group string, uid int64) error {
	if group == RegisteredUsers || IsPrivilegeGroup(group) {
		return nil
	}
	_, ok, err := s.store.ObjectField(ctx, keys.User(uid), "groupTitle")
	if err != nil || ok {
		return err
	}
	return s.store.SetObjectField(ctx, keys.User(uid), "groupTitle", group)
}

func (s *service) Leave(ctx context.Context, group string, uid int64) error {
	if group == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidData)
	}
	if uid <= 0 {
		return ErrNotLoggedIn
	}

	isMember, err := s.IsMember(ctx, uid, group)
	if err != nil {
		return err
	}
	if !isMember {
		return nil
	}
	exists, err := s.Exists(ctx, group)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	member := uidStr(uid)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.SortedSetRemove(gctx, keys.GroupAspect(group, keys.Members), member)
	})
	g.Go(func() error {
		return s.store.SetRemove(gctx, keys.GroupAspect(group, keys.Owners), member)
	})
	g.Go(func() error {
		_, err := s.store.DecrObjectField(gctx, keys.Group(group), "memberCount")
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.clearCache(ctx, uid, group)

	fields, err := s.store.ObjectFields(ctx, keys.Group(group), []string{"hidden", "memberCount"})
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		// group record gone (concurrent destroy); nothing left to maintain
		return nil
	}
	count, _ := strconv.ParseInt(fields["memberCount"], 10, 64)

	switch {
	case IsPrivilegeGroup(group) && count <= 0:
		if err := s.Destroy(ctx, group); err != nil {
			return err
		}
	case fields["hidden"] != "1":
		// refresh the visible index score; an empty visible group stays
		// listed, it is still a real, joinable group
		if err := s.store.SortedSetAdd(ctx, keys.VisibleByMemberCount, float64(count), group); err != nil {
			return err
		}
	}

	s.events.Emit(Event{Type: EventLeave, Group: group, UID: uid})
	return nil
}

// LeaveAllGroups fans out one leave plus one pending/invited sweep per
// existing group. Both are attempted unconditionally per group; clearing an
// absent pending or invited entry is a no-op. Fan-out width is unbounded;
// group counts are small relative to user counts.
func (s *service) LeaveAllGroups(ctx context.Context, uid int64) error {
	if uid <= 0 {
		return ErrNotLoggedIn
	}
	groups, err := s.store.SortedSetRange(ctx, keys.GroupsByCreateTime, 0, -1)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range groups {
		name := name
		g.Go(func() error {
			isMember, err := s.IsMember(gctx, uid, name)
			if err != nil {
				return err
			}
			if isMember {
				return s.Leave(gctx, name, uid)
			}
			return nil
		})
		g.Go(func() error {
			return s.RejectMembership(gctx, name, uid)
		})
	}
	return g.Wait()
}

func (s *service) RequestMembership(ctx context.Context, group string, uid int64) error {
	return s.inviteOrRequestMembership(ctx, group, uid, false)
}

func (s *service) Invite(ctx context.Context, group string, uid int64) error {
	return s.inviteOrRequestMembership(ctx, group, uid, true)
}

func (s *service) inviteOrRequestMembership(ctx context.Context, group string, uid int64, isInvite bool) error {
	if uid <= 0 {
		return ErrNotLoggedIn
	}
	if group == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidData)
	}

	var exists, isMember, isPending, isInvited bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exists, err = s.Exists(gctx, group)
		return err
	})
	g.Go(func() error {
		var err error
		isMember, err = s.IsMember(gctx, uid, group)
		return err
	})
	g.Go(func() error {
		var err error
		isPending, err = s.IsPending(gctx, uid, group)
		return err
	})
	g.Go(func() error {
		var err error
		isInvited, err = s.IsInvited(gctx, uid, group)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	switch {
	case !exists:
		return fmt.Errorf("%w: %q", ErrNoSuchGroup, group)
	case isMember:
		return nil // membership supersedes both auxiliary states
	case isInvite && isInvited:
		return nil // re-invite is a no-op
	case !isInvite && isPending:
		return fmt.Errorf("%w: %q", ErrAlreadyRequested, group)
	}

	aspect, evt := keys.Pending, EventRequest
	if isInvite {
		aspect, evt = keys.Invited, EventInvite
	}
	if err := s.store.SetAdd(ctx, keys.GroupAspect(group, aspect), uidStr(uid)); err != nil {
		return err
	}
	s.events.Emit(Event{Type: evt, Group: group, UID: uid})
	return nil
}

// AcceptMembership deliberately does not verify that the caller has
// ownership rights; that check belongs to the calling layer.
func (s *service) AcceptMembership(ctx context.Context, group string, uid int64) error {
	if uid <= 0 {
		return ErrNotLoggedIn
	}
	if err := s.RejectMembership(ctx, group, uid); err != nil {
		return err
	}
	return s.Join(ctx, group, uid)
}

func (s *service) RejectMembership(ctx context.Context, group string, uid int64) error {
	if uid <= 0 {
		return ErrNotLoggedIn
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.SetRemove(gctx, keys.GroupAspect(group, keys.Pending), uidStr(uid))
	})
	g.Go(func() error {
		return s.store.SetRemove(gctx, keys.GroupAspect(group, keys.Invited), uidStr(uid))
	})
	return g.Wait()
}

// Kick removes uid on an owner's behalf. The owner-count check and the leave
// are not atomic; two concurrent kicks may both pass the check, which is the
// same accepted race the rest of the engine tolerates for idempotent ops.
func (s *service) Kick(ctx context.Context, uid int64, group string, isOwner bool) error {
	if isOwner {
		n, err := s.store.SetCount(ctx, keys.GroupAspect(group, keys.Owners))
		if err != nil {
			return err
		}
		if n <= 1 {
			return fmt.Errorf("%w: %q", ErrNeedsOwner, group)
		}
	}
	return s.Leave(ctx, group, uid)
}
