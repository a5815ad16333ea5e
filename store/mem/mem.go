// Package mem is an in-process Store for tests and single-node deployments.
// All state lives behind one RWMutex; ordered sets are materialized on read.
package mem

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/forumkit/membership/store"
)

type Store struct {
	mu      sync.RWMutex
	zsets   map[string]map[string]float64
	sets    map[string]map[string]struct{}
	objects map[string]map[string]string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		zsets:   make(map[string]map[string]float64),
		sets:    make(map[string]map[string]struct{}),
		objects: make(map[string]map[string]string),
	}
}

func (s *Store) SortedSetAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] = score
	s.mu.Unlock()
	return nil
}

func (s *Store) SortedSetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	if z, ok := s.zsets[key]; ok {
		delete(z, member)
		if len(z) == 0 {
			delete(s.zsets, key)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) SortedSetIncrBy(_ context.Context, key string, delta float64, member string) (float64, error) {
	s.mu.Lock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] += delta
	v := z[member]
	s.mu.Unlock()
	return v, nil
}

// orderedMembers returns members ascending by (score, member).
// Caller must hold at least the read lock.
func (s *Store) orderedMembers(key string) []string {
	z := s.zsets[key]
	if len(z) == 0 {
		return nil
	}
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	return members
}

// slice applies Redis-style inclusive start/stop indexing (negatives count
// from the end) to an already ordered member list.
func slice(members []string, start, stop int64) []string {
	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, members[start:stop+1])
	return out
}

func (s *Store) SortedSetRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	members := s.orderedMembers(key)
	s.mu.RUnlock()
	return slice(members, start, stop), nil
}

func (s *Store) SortedSetRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	members := s.orderedMembers(key)
	s.mu.RUnlock()
	for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
		members[i], members[j] = members[j], members[i]
	}
	return slice(members, start, stop), nil
}

func (s *Store) SortedSetCard(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	n := int64(len(s.zsets[key]))
	s.mu.RUnlock()
	return n, nil
}

func (s *Store) IsSortedSetMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	_, ok := s.zsets[key][member]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) IsSortedSetMembers(_ context.Context, key string, members []string) ([]bool, error) {
	out := make([]bool, len(members))
	s.mu.RLock()
	z := s.zsets[key]
	for i, m := range members {
		_, out[i] = z[m]
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) IsMemberOfSortedSets(_ context.Context, keys []string, member string) ([]bool, error) {
	out := make([]bool, len(keys))
	s.mu.RLock()
	for i, k := range keys {
		_, out[i] = s.zsets[k][member]
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SortedSetsMembers(_ context.Context, keys []string) ([][]string, error) {
	out := make([][]string, len(keys))
	s.mu.RLock()
	for i, k := range keys {
		out[i] = s.orderedMembers(k)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SetAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) SetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	if set, ok := s.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(s.sets, key)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) IsSetMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	_, ok := s.sets[key][member]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) SetCount(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	n := int64(len(s.sets[key]))
	s.mu.RUnlock()
	return n, nil
}

func (s *Store) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *Store) ObjectField(_ context.Context, key, field string) (string, bool, error) {
	s.mu.RLock()
	v, ok := s.objects[key][field]
	s.mu.RUnlock()
	return v, ok, nil
}

func (s *Store) ObjectFields(_ context.Context, key string, fields []string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	s.mu.RLock()
	obj := s.objects[key]
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = v
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SetObject(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string, len(fields))
		s.objects[key] = obj
	}
	for f, v := range fields {
		obj[f] = v
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) SetObjectField(ctx context.Context, key, field, value string) error {
	return s.SetObject(ctx, key, map[string]string{field: value})
}

func (s *Store) IncrObjectField(_ context.Context, key, field string) (int64, error) {
	return s.incrObjectField(key, field, 1)
}

func (s *Store) DecrObjectField(_ context.Context, key, field string) (int64, error) {
	return s.incrObjectField(key, field, -1)
}

func (s *Store) incrObjectField(key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		obj = make(map[string]string)
		s.objects[key] = obj
	}
	cur, _ := strconv.ParseInt(obj[field], 10, 64) // absent or non-numeric counts as 0
	cur += delta
	obj[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.zsets, k)
		delete(s.sets, k)
		delete(s.objects, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
