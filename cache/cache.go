// Package cache defines the process-local membership cache contract.
//
// A Cache maps (uid, group) to a cached membership verdict. It is bounded,
// entries expire after a uniform TTL, and Reset is a logical O(1) clear.
// Implementations must be safe for concurrent use. The cache is strictly
// process-local: cross-process coherence is the invalidation bus's job, not
// this package's.
package cache

import "strconv"

// Cache is owned jointly by the query and mutation engines; no other
// component may mutate it directly.
type Cache interface {
	// Get returns (verdict, true) on hit, (false, false) on miss.
	Get(uid int64, group string) (isMember, ok bool)

	// Set records a verdict resolved from the store. Duplicate fills for the
	// same key carry the same value; last writer wins.
	Set(uid int64, group string, isMember bool)

	// Delete drops one entry (absent entry ok).
	Delete(uid int64, group string)

	// Reset drops every entry.
	Reset()

	// Close releases resources.
	Close()
}

// Key returns the canonical storage key for a (uid, group) pair.
func Key(uid int64, group string) string {
	return strconv.FormatInt(uid, 10) + ":" + group
}
