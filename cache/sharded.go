// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const (
	// shardCount is the number of shards. Must be a power of 2.
	shardCount = 16

	// shardMask selects a shard with a bitwise AND.
	shardMask = shardCount - 1
)

// stringHasher computes the FNV-1a hash of a string key.
func stringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // never returns an error
	return h.Sum64()
}

// shardedStore is a thread-safe, sharded LRU map keyed by string.
//
// Each shard has its own lock and LRU list; eviction is per shard once a
// shard holds capacity entries. Hit, miss and eviction counters are atomic.
type shardedStore[V any] struct {
	shards   [shardCount]*storeShard[V]
	capacity int // per shard

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type storeShard[V any] struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry[V]
	lru     *lruList[string]
}

type storeEntry[V any] struct {
	value V
	node  *lruNode[string]
}

func newShardedStore[V any](capacity int) *shardedStore[V] {
	s := &shardedStore[V]{capacity: capacity}
	for i := range s.shards {
		s.shards[i] = &storeShard[V]{
			entries: make(map[string]*storeEntry[V]),
			lru:     newLRUList[string](),
		}
	}
	return s
}

func (s *shardedStore[V]) shard(key string) *storeShard[V] {
	return s.shards[stringHasher(key)&shardMask]
}

// Get retrieves a value and marks it most recently used.
func (s *shardedStore[V]) Get(key string) (V, bool) {
	sh := s.shard(key)

	sh.mu.Lock()
	entry, ok := sh.entries[key]
	if !ok {
		sh.mu.Unlock()
		s.misses.Add(1)
		var zero V
		return zero, false
	}
	sh.lru.MoveToFront(entry.node)
	value := entry.value
	sh.mu.Unlock()

	s.hits.Add(1)
	return value, true
}

// Peek retrieves a value without touching LRU order or statistics.
func (s *shardedStore[V]) Peek(key string) (V, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value, evicting the shard's oldest entries when full.
func (s *shardedStore[V]) Set(key string, value V) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.entries[key]; ok {
		existing.value = value
		sh.lru.MoveToFront(existing.node)
		return
	}

	for sh.lru.Len() >= s.capacity {
		oldest, ok := sh.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(sh.entries, oldest)
		s.evictions.Add(1)
	}

	node := sh.lru.PushFront(key)
	sh.entries[key] = &storeEntry[V]{value: value, node: node}
}

// Delete removes an entry and reports whether it existed.
func (s *shardedStore[V]) Delete(key string) bool {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok {
		return false
	}
	sh.lru.Remove(entry.node)
	delete(sh.entries, key)
	return true
}

// DeleteFunc removes every entry for which fn returns true and returns the
// number of removed entries.
func (s *shardedStore[V]) DeleteFunc(fn func(key string, v V) bool) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if fn(key, entry.value) {
				sh.lru.Remove(entry.node)
				delete(sh.entries, key)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

// Clear removes all entries.
func (s *shardedStore[V]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.entries = make(map[string]*storeEntry[V])
		sh.lru.Clear()
		sh.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (s *shardedStore[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

// Stats holds cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the maximum number of entries.
	Capacity int
	// Hits is the number of successful image lookups.
	Hits uint64
	// Misses is the number of failed image lookups.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions is the number of entries dropped to make room.
	Evictions uint64
}

func (s *shardedStore[V]) stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       s.Len(),
		Capacity:  s.capacity * shardCount,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: s.evictions.Load(),
	}
}
