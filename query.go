package membership

import (
	"context"

	"github.com/forumkit/membership/internal/keys"
)

// IsMember answers a single membership test. Guest or malformed uids (<= 0)
// resolve to false without a store round-trip. A cache miss is resolved from
// the store and the verdict cached; between the miss and the fill another
// logical operation may fill the same key with the same value, which is
// harmless (last writer wins).
func (s *service) IsMember(ctx context.Context, uid int64, group string) (bool, error) {
	if uid <= 0 || group == "" {
		return false, nil
	}
	if v, ok := s.cache.Get(uid, group); ok {
		return v, nil
	}
	isMember, err := s.store.IsSortedSetMember(ctx, keys.GroupAspect(group, keys.Members), uidStr(uid))
	if err != nil {
		return false, err
	}
	s.cache.Set(uid, group, isMember)
	return isMember, nil
}

// IsMembers answers one test per uid against a single group, aligned
// index-for-index with the input. Cached uids are answered locally; the
// uncached remainder goes to the store in one batched call and back-fills
// the cache.
func (s *service) IsMembers(ctx context.Context, uids []int64, group string) ([]bool, error) {
	results := make([]bool, len(uids))
	if group == "" || len(uids) == 0 {
		return results, nil
	}

	resolved := make(map[int64]bool, len(uids))
	queued := make(map[int64]struct{})
	var members []string
	var order []int64
	for _, uid := range uids {
		if uid <= 0 {
			continue // never a member; results entry stays false
		}
		if _, ok := resolved[uid]; ok {
			continue
		}
		if _, ok := queued[uid]; ok {
			continue
		}
		if v, hit := s.cache.Get(uid, group); hit {
			resolved[uid] = v
			continue
		}
		queued[uid] = struct{}{}
		members = append(members, uidStr(uid))
		order = append(order, uid)
	}

	if len(order) > 0 {
		hits, err := s.store.IsSortedSetMembers(ctx, keys.GroupAspect(group, keys.Members), members)
		if err != nil {
			return nil, err
		}
		for i, uid := range order {
			resolved[uid] = hits[i]
			s.cache.Set(uid, group, hits[i])
		}
	}

	for i, uid := range uids {
		results[i] = resolved[uid]
	}
	return results, nil
}

// IsMemberOfGroups is the transpose of IsMembers: one uid against many
// groups, same partition-and-merge strategy keyed on group name.
func (s *service) IsMemberOfGroups(ctx context.Context, uid int64, groups []string) ([]bool, error) {
	results := make([]bool, len(groups))
	if uid <= 0 || len(groups) == 0 {
		return results, nil
	}

	resolved := make(map[string]bool, len(groups))
	queued := make(map[string]struct{})
	var setKeys []string
	var order []string
	for _, g := range groups {
		if _, ok := resolved[g]; ok {
			continue
		}
		if _, ok := queued[g]; ok {
			continue
		}
		if v, hit := s.cache.Get(uid, g); hit {
			resolved[g] = v
			continue
		}
		queued[g] = struct{}{}
		setKeys = append(setKeys, keys.GroupAspect(g, keys.Members))
		order = append(order, g)
	}

	if len(order) > 0 {
		hits, err := s.store.IsMemberOfSortedSets(ctx, setKeys, uidStr(uid))
		if err != nil {
			return nil, err
		}
		for i, g := range order {
			resolved[g] = hits[i]
			s.cache.Set(uid, g, hits[i])
		}
	}

	for i, g := range groups {
		results[i] = resolved[g]
	}
	return results, nil
}

// IsMemberOfGroupList resolves the member groups of one list key and reports
// whether uid belongs to any real (non-ephemeral) group among them. An empty
// resolved set means "no one is a member", independent of uid.
func (s *service) IsMemberOfGroupList(ctx context.Context, uid int64, groupListKey string) (bool, error) {
	names, err := s.store.SortedSetRange(ctx, keys.GroupAspect(groupListKey, keys.Members), 0, -1)
	if err != nil {
		return false, err
	}
	names = s.RemoveEphemeralGroups(names)
	if len(names) == 0 {
		return false, nil
	}
	hits, err := s.IsMemberOfGroups(ctx, uid, names)
	if err != nil {
		return false, err
	}
	for _, h := range hits {
		if h {
			return true, nil
		}
	}
	return false, nil
}

// IsMemberOfGroupsList answers IsMemberOfGroupList for many list keys in one
// pass. Membership is computed once per distinct group name even when the
// name appears under several list keys.
func (s *service) IsMemberOfGroupsList(ctx context.Context, uid int64, groupListKeys []string) ([]bool, error) {
	setKeys := make([]string, len(groupListKeys))
	for i, k := range groupListKeys {
		setKeys[i] = keys.GroupAspect(k, keys.Members)
	}
	members, err := s.store.SortedSetsMembers(ctx, setKeys)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var unique []string
	for _, names := range members {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			unique = append(unique, n)
		}
	}
	unique = s.RemoveEphemeralGroups(unique)

	hits, err := s.IsMemberOfGroups(ctx, uid, unique)
	if err != nil {
		return nil, err
	}
	isMember := make(map[string]bool, len(unique))
	for i, n := range unique {
		isMember[n] = hits[i]
	}

	results := make([]bool, len(groupListKeys))
	for i, names := range members {
		for _, n := range names {
			if isMember[n] { // ephemeral names are absent from the map
				results[i] = true
				break
			}
		}
	}
	return results, nil
}

// IsMembersOfGroupList resolves the groups under one list key once, strips
// ephemeral names, and accumulates a boolean OR per uid across the remaining
// groups.
func (s *service) IsMembersOfGroupList(ctx context.Context, uids []int64, groupListKey string) ([]bool, error) {
	results := make([]bool, len(uids))
	names, err := s.store.SortedSetRange(ctx, keys.GroupAspect(groupListKey, keys.Members), 0, -1)
	if err != nil {
		return nil, err
	}
	names = s.RemoveEphemeralGroups(names)
	if len(names) == 0 {
		return results, nil
	}
	for _, name := range names {
		hits, err := s.IsMembers(ctx, uids, name)
		if err != nil {
			return nil, err
		}
		for i, h := range hits {
			if h {
				results[i] = true
			}
		}
	}
	return results, nil
}

func (s *service) IsPending(ctx context.Context, uid int64, group string) (bool, error) {
	if uid <= 0 {
		return false, nil
	}
	return s.store.IsSetMember(ctx, keys.GroupAspect(group, keys.Pending), uidStr(uid))
}

func (s *service) IsInvited(ctx context.Context, uid int64, group string) (bool, error) {
	if uid <= 0 {
		return false, nil
	}
	return s.store.IsSetMember(ctx, keys.GroupAspect(group, keys.Invited), uidStr(uid))
}

func (s *service) Pending(ctx context.Context, group string) ([]int64, error) {
	if group == "" {
		return nil, nil
	}
	members, err := s.store.SetMembers(ctx, keys.GroupAspect(group, keys.Pending))
	if err != nil {
		return nil, err
	}
	return uidsFromMembers(members), nil
}

func (s *service) Invited(ctx context.Context, group string) ([]int64, error) {
	if group == "" {
		return nil, nil
	}
	members, err := s.store.SetMembers(ctx, keys.GroupAspect(group, keys.Invited))
	if err != nil {
		return nil, err
	}
	return uidsFromMembers(members), nil
}

func (s *service) Members(ctx context.Context, group string, start, stop int64) ([]int64, error) {
	members, err := s.store.SortedSetRevRange(ctx, keys.GroupAspect(group, keys.Members), start, stop)
	if err != nil {
		return nil, err
	}
	return uidsFromMembers(members), nil
}

func (s *service) MembersOfGroups(ctx context.Context, groups []string) ([][]int64, error) {
	setKeys := make([]string, len(groups))
	for i, g := range groups {
		setKeys[i] = keys.GroupAspect(g, keys.Members)
	}
	members, err := s.store.SortedSetsMembers(ctx, setKeys)
	if err != nil {
		return nil, err
	}
	out := make([][]int64, len(members))
	for i, raw := range members {
		out[i] = uidsFromMembers(raw)
	}
	return out, nil
}

func (s *service) Owners(ctx context.Context, group string) ([]int64, error) {
	members, err := s.store.SetMembers(ctx, keys.GroupAspect(group, keys.Owners))
	if err != nil {
		return nil, err
	}
	return uidsFromMembers(members), nil
}

func (s *service) OwnerCount(ctx context.Context, group string) (int64, error) {
	return s.store.SetCount(ctx, keys.GroupAspect(group, keys.Owners))
}
