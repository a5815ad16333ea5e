// Package store defines the persistent ordered-set/set/object contract the
// membership engines run on. The store is the source of truth; the cache in
// front of it is only an accelerator.
//
// Implementations must be safe for concurrent use. Missing keys and missing
// members are not errors: membership tests return false, field reads report
// absence, removals of absent members are no-ops. Errors are reserved for
// transport and server failures and propagate to callers unchanged.
package store

import "context"

// Store is the ordered-set/set/object KV contract.
//
// Ordered-set members carry a float64 score; the membership engines use join
// timestamps (epoch ms) as scores, so scores written through this module are
// always positive. Range operations use inclusive start/stop indices with
// Redis semantics: negative indices count from the end, stop = -1 means the
// last element.
type Store interface {
	// Ordered sets.
	SortedSetAdd(ctx context.Context, key string, score float64, member string) error
	SortedSetRemove(ctx context.Context, key, member string) error
	SortedSetIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)
	SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	SortedSetRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	SortedSetCard(ctx context.Context, key string) (int64, error)
	IsSortedSetMember(ctx context.Context, key, member string) (bool, error)
	// IsSortedSetMembers answers one membership test per input member,
	// aligned index-for-index.
	IsSortedSetMembers(ctx context.Context, key string, members []string) ([]bool, error)
	// IsMemberOfSortedSets answers one membership test per input key,
	// aligned index-for-index, for a single member.
	IsMemberOfSortedSets(ctx context.Context, keys []string, member string) ([]bool, error)
	// SortedSetsMembers returns the full member list of each key, ascending
	// by score, aligned index-for-index with keys.
	SortedSetsMembers(ctx context.Context, keys []string) ([][]string, error)

	// Plain sets.
	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	IsSetMember(ctx context.Context, key, member string) (bool, error)
	SetCount(ctx context.Context, key string) (int64, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Object records (string field -> string value).
	// ObjectField reports ok=false when the field (or record) is absent, so
	// callers can distinguish "unset" from "set to the empty string".
	ObjectField(ctx context.Context, key, field string) (value string, ok bool, err error)
	// ObjectFields reads several fields at once; absent fields are simply
	// missing from the returned map.
	ObjectFields(ctx context.Context, key string, fields []string) (map[string]string, error)
	SetObject(ctx context.Context, key string, fields map[string]string) error
	SetObjectField(ctx context.Context, key, field, value string) error
	IncrObjectField(ctx context.Context, key, field string) (int64, error)
	DecrObjectField(ctx context.Context, key, field string) (int64, error)

	// Delete removes whole keys of any kind (best-effort, absent keys ok).
	Delete(ctx context.Context, keys ...string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
