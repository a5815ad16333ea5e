// Package membership tracks which users belong to which named groups,
// including dynamically created privilege groups, and serves high-volume
// membership lookups out of a process-local cache kept coherent across
// server processes by a publish/subscribe invalidation bus.
//
// Components:
//   - store.Store: persistent ordered-set/set/object contract, the source
//     of truth (Redis in production, in-memory for tests and single nodes).
//   - cache.Cache: bounded, TTL'd (uid, group) -> bool map, process-local.
//   - bus.Bus: invalidation channel with two topics, clear one entry and
//     reset everything. Every process applies received messages to its own cache,
//     the publishing process included.
//   - EventSink: fire-and-forget extension point notified on membership
//     transitions; notification delivery lives behind it, never in core.
//
// Staleness contract: the cache is an accelerator, never the only copy. A
// stale hit survives at most one TTL window or until the next invalidation
// for its key, whichever comes sooner. Mutations touch the store first and
// broadcast invalidation only after every store sub-operation has completed,
// so a concurrent reader may see "old cache, old store" or "no cache entry,
// new store" but never a cache verdict the store has not held.
package membership
