// Package redis implements the persistent membership store on Redis. Ordered
// sets map to ZSETs, plain sets to SETs, object records to hashes. Batched
// lookups are pipelined into a single round-trip.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	st "github.com/forumkit/membership/store"
)

var ErrNilClient = errors.New("redis store: nil client")

type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ st.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (s *Store) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	return s.rdb.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (s *Store) SortedSetRemove(ctx context.Context, key, member string) error {
	return s.rdb.ZRem(ctx, key, member).Err()
}

func (s *Store) SortedSetIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	return s.rdb.ZIncrBy(ctx, key, delta, member).Result()
}

func (s *Store) SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.ZRange(ctx, key, start, stop).Result()
}

func (s *Store) SortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.ZRevRange(ctx, key, start, stop).Result()
}

func (s *Store) SortedSetCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *Store) IsSortedSetMember(ctx context.Context, key, member string) (bool, error) {
	err := s.rdb.ZScore(ctx, key, member).Err()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsSortedSetMembers pipelines one ZSCORE per member so a batch costs a
// single round-trip. ZMSCORE is avoided on purpose: it collapses "missing"
// and "score 0" in the client API.
func (s *Store) IsSortedSetMembers(ctx context.Context, key string, members []string) ([]bool, error) {
	if len(members) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.FloatCmd, len(members))
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = p.ZScore(ctx, key, m)
		}
		return nil
	})
	if err != nil && err != goredis.Nil {
		return nil, err
	}
	out := make([]bool, len(members))
	for i, cmd := range cmds {
		switch cmd.Err() {
		case nil:
			out[i] = true
		case goredis.Nil:
			out[i] = false
		default:
			return nil, cmd.Err()
		}
	}
	return out, nil
}

func (s *Store) IsMemberOfSortedSets(ctx context.Context, keys []string, member string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.FloatCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.ZScore(ctx, k, member)
		}
		return nil
	})
	if err != nil && err != goredis.Nil {
		return nil, err
	}
	out := make([]bool, len(keys))
	for i, cmd := range cmds {
		switch cmd.Err() {
		case nil:
			out[i] = true
		case goredis.Nil:
			out[i] = false
		default:
			return nil, cmd.Err()
		}
	}
	return out, nil
}

func (s *Store) SortedSetsMembers(ctx context.Context, keys []string) ([][]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.StringSliceCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.ZRange(ctx, k, 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(keys))
	for i, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		out[i] = members
	}
	return out, nil
}

func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

func (s *Store) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

func (s *Store) SetCount(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *Store) ObjectField(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) ObjectFields(ctx context.Context, key string, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	vals, err := s.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if sv, ok := v.(string); ok {
			out[fields[i]] = sv
		}
	}
	return out, nil
}

func (s *Store) SetObject(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		m[f] = v
	}
	return s.rdb.HSet(ctx, key, m).Err()
}

func (s *Store) SetObjectField(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

func (s *Store) IncrObjectField(ctx context.Context, key, field string) (int64, error) {
	return s.rdb.HIncrBy(ctx, key, field, 1).Result()
}

func (s *Store) DecrObjectField(ctx context.Context, key, field string) (int64, error) {
	return s.rdb.HIncrBy(ctx, key, field, -1).Result()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
