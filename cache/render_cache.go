// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"image"
	"slices"
	"sync"

	"seehuhn.de/go/geom/rect"

	"github.com/gogpu/mapcompose/surface"
)

// LabelCacheID is the reserved key under which the shared label image is
// stored.
const LabelCacheID = "_labels_"

// DefaultCapacity is the default maximum number of cached images.
const DefaultCapacity = 256

// Option configures a RenderCache.
type Option func(*RenderCache)

// WithCapacity sets the approximate maximum number of cached images.
// Entries are spread over shards, each holding at least one entry, so the
// effective limit is rounded up to a multiple of the shard count.
func WithCapacity(n int) Option {
	return func(c *RenderCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

type renderEntry struct {
	img        *image.RGBA
	dependents []string
}

// RenderCache stores rendered layer images between render cycles.
//
// Entries are keyed by layer id (or LabelCacheID) and are only meaningful
// for the view extent and scale captured by the last call to Init. Images
// are copied on the way in and on the way out, so callers never share
// pixel memory with the cache.
//
// RenderCache is safe for concurrent use.
type RenderCache struct {
	mu          sync.Mutex
	extent      rect.Rect
	scale       float64
	initialized bool

	capacity int
	store    *shardedStore[*renderEntry]
}

// New creates an empty render cache.
func New(opts ...Option) *RenderCache {
	c := &RenderCache{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(c)
	}
	perShard := (c.capacity + shardCount - 1) / shardCount
	c.store = newShardedStore[*renderEntry](max(perShard, 1))
	return c
}

// Init prepares the cache for a render cycle at the given extent and scale.
// It returns true when the cached images are still valid for that view;
// otherwise every entry is dropped, the new view is recorded and false is
// returned.
func (c *RenderCache) Init(extent rect.Rect, scale float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized && c.extent == extent && c.scale == scale {
		return true
	}
	c.store.Clear()
	c.extent = extent
	c.scale = scale
	c.initialized = true
	return false
}

// HasCacheImage reports whether an image is stored under key.
func (c *RenderCache) HasCacheImage(key string) bool {
	_, ok := c.store.Peek(key)
	return ok
}

// CacheImage returns a copy of the image stored under key, or nil.
func (c *RenderCache) CacheImage(key string) *image.RGBA {
	e, ok := c.store.Get(key)
	if !ok {
		return nil
	}
	return surface.CloneImage(e.img)
}

// SetCacheImage stores a copy of img under key. dependentLayers lists the
// layer ids whose changes invalidate the entry.
func (c *RenderCache) SetCacheImage(key string, img *image.RGBA, dependentLayers []string) {
	if img == nil {
		c.store.Delete(key)
		return
	}
	deps := slices.Clone(dependentLayers)
	slices.Sort(deps)
	deps = slices.Compact(deps)
	c.store.Set(key, &renderEntry{img: surface.CloneImage(img), dependents: deps})
}

// ClearCacheImage removes the entry stored under key.
func (c *RenderCache) ClearCacheImage(key string) {
	c.store.Delete(key)
}

// DependentLayers returns the sorted dependent layer ids of the entry
// stored under key, or nil when there is no entry.
func (c *RenderCache) DependentLayers(key string) []string {
	e, ok := c.store.Peek(key)
	if !ok {
		return nil
	}
	return slices.Clone(e.dependents)
}

// InvalidateCacheForLayer drops every entry that depends on layerID and
// returns the number of dropped entries.
func (c *RenderCache) InvalidateCacheForLayer(layerID string) int {
	return c.store.DeleteFunc(func(_ string, e *renderEntry) bool {
		_, found := slices.BinarySearch(e.dependents, layerID)
		return found
	})
}

// Clear drops all entries and forgets the captured view.
func (c *RenderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	c.initialized = false
}

// Len returns the number of cached images.
func (c *RenderCache) Len() int {
	return c.store.Len()
}

// Stats returns lookup and eviction statistics.
func (c *RenderCache) Stats() Stats {
	return c.store.stats()
}
