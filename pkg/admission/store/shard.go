package store

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of lock shards per dimension map. Keys are
// spread across shards by hash so concurrent checks for distinct clients
// rarely contend on the same lock.
const shardCount = 32

// shard is one lock-protected slice of a dimension map. The mutex is held
// across the full read-decide-write of a check so the update is atomic with
// respect to other calls for the same key.
type shard[V any] struct {
	mu      sync.Mutex
	entries map[string]V
}

// shardedMap is a fixed-shard concurrent map keyed by client key.
type shardedMap[V any] struct {
	shards [shardCount]shard[V]
}

func newShardedMap[V any]() *shardedMap[V] {
	m := &shardedMap[V]{}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]V)
	}
	return m
}

// shardFor returns the shard owning key.
func (m *shardedMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// len returns the total entry count across shards.
func (m *shardedMap[V]) len() int {
	total := 0
	for i := range m.shards {
		m.shards[i].mu.Lock()
		total += len(m.shards[i].entries)
		m.shards[i].mu.Unlock()
	}
	return total
}

// sweep deletes every entry for which expired returns true, taking one
// shard lock at a time so the request path is never blocked for long.
// It returns the number of entries deleted.
func (m *shardedMap[V]) sweep(expired func(V) bool) int {
	deleted := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if expired(entry) {
				delete(sh.entries, key)
				deleted++
			}
		}
		sh.mu.Unlock()
	}
	return deleted
}
