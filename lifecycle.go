package membership

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/forumkit/membership/internal/keys"
)

// Create registers a new group. Visible groups are indexed by name, member
// count, and creation time in three parallel sort structures; hidden groups
// appear only in the master createtime index.
func (s *service) Create(ctx context.Context, opts CreateOptions) error {
	if opts.Name == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidData)
	}
	if s.IsEphemeralGroup(opts.Name) {
		return fmt.Errorf("%w: %q", ErrGroupExists, opts.Name)
	}
	exists, err := s.store.IsSortedSetMember(ctx, keys.GroupsByCreateTime, opts.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrGroupExists, opts.Name)
	}

	now := s.clock.Now().UnixMilli()
	var memberCount int64
	if opts.OwnerUID > 0 {
		memberCount = 1
	}
	hidden := "0"
	if opts.Hidden {
		hidden = "1"
	}

	record := map[string]string{
		"name":        opts.Name,
		"description": opts.Description,
		"memberCount": strconv.FormatInt(memberCount, 10),
		"hidden":      hidden,
		"createtime":  strconv.FormatInt(now, 10),
	}
	if err := s.store.SetObject(ctx, keys.Group(opts.Name), record); err != nil {
		return err
	}
	if err := s.store.SortedSetAdd(ctx, keys.GroupsByCreateTime, float64(now), opts.Name); err != nil {
		return err
	}

	if opts.OwnerUID > 0 {
		owner := uidStr(opts.OwnerUID)
		if err := s.store.SortedSetAdd(ctx, keys.GroupAspect(opts.Name, keys.Members), float64(now), owner); err != nil {
			return err
		}
		if err := s.store.SetAdd(ctx, keys.GroupAspect(opts.Name, keys.Owners), owner); err != nil {
			return err
		}
		s.clearCache(ctx, opts.OwnerUID, opts.Name)
	}

	if !opts.Hidden {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.store.SortedSetAdd(gctx, keys.VisibleByCreateTime, float64(now), opts.Name)
		})
		g.Go(func() error {
			return s.store.SortedSetAdd(gctx, keys.VisibleByMemberCount, float64(memberCount), opts.Name)
		})
		g.Go(func() error {
			return s.store.SortedSetAdd(gctx, keys.VisibleByName, 0, opts.Name)
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy deletes a group outright: the record, its four aspect sets, and
// every index entry. Cached member verdicts of other uids age out within one
// TTL; the only path that destroys a populated-then-emptied privilege group
// has already invalidated the final leaver.
func (s *service) Destroy(ctx context.Context, group string) error {
	if group == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidData)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.Delete(gctx,
			keys.Group(group),
			keys.GroupAspect(group, keys.Members),
			keys.GroupAspect(group, keys.Owners),
			keys.GroupAspect(group, keys.Pending),
			keys.GroupAspect(group, keys.Invited),
		)
	})
	g.Go(func() error { return s.store.SortedSetRemove(gctx, keys.GroupsByCreateTime, group) })
	g.Go(func() error { return s.store.SortedSetRemove(gctx, keys.VisibleByCreateTime, group) })
	g.Go(func() error { return s.store.SortedSetRemove(gctx, keys.VisibleByMemberCount, group) })
	g.Go(func() error { return s.store.SortedSetRemove(gctx, keys.VisibleByName, group) })
	if err := g.Wait(); err != nil {
		return err
	}
	s.events.Emit(Event{Type: EventDestroy, Group: group})
	return nil
}

// Exists reports whether a group is known. Ephemeral names report true:
// they are real from a caller's perspective even though no membership data
// backs them.
func (s *service) Exists(ctx context.Context, group string) (bool, error) {
	if s.IsEphemeralGroup(group) {
		return true, nil
	}
	return s.store.IsSortedSetMember(ctx, keys.GroupsByCreateTime, group)
}

func (s *service) IsHidden(ctx context.Context, group string) (bool, error) {
	v, _, err := s.store.ObjectField(ctx, keys.Group(group), "hidden")
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *service) MemberCount(ctx context.Context, group string) (int64, error) {
	v, ok, err := s.store.ObjectField(ctx, keys.Group(group), "memberCount")
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("membership: bad memberCount for %q: %w", group, err)
	}
	return n, nil
}
