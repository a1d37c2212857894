// Package store implements the authoritative per-client admission
// counters: fixed request and burst windows, a consumable usage budget,
// and concurrent session sets.
//
// # Windows
//
// Every window is a fixed-window counter reset lazily on read: the first
// check that observes an elapsed window replaces it with a fresh one. The
// background sweeper only bounds memory by deleting long-expired entries;
// a swept entry is recreated on the next check, which is indistinguishable
// from lazy expiry, so correctness never depends on sweep cadence.
//
// # Concurrency
//
// Each dimension map is split into lock shards keyed by client hash. A
// shard mutex is held across the full read-decide-write of a check, making
// every operation atomic for a given client key while keeping distinct
// clients off each other's locks. No operation blocks on I/O.
//
// # Scope
//
// The store is strictly process-local. Running multiple instances without
// a shared store multiplies the effective limits by the instance count.
package store
