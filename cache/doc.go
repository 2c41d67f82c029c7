// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache stores rendered layer images between render cycles.
//
// A [RenderCache] is keyed by layer id, or by [LabelCacheID] for the shared
// label image. Each entry records the layer ids it depends on, so that a
// change to one layer can drop every image that was derived from it:
//
//	c := cache.New(cache.WithCapacity(64))
//	if !c.Init(extent, scale) {
//	    // view changed, everything was dropped
//	}
//	c.SetCacheImage("roads", img, []string{"roads"})
//	c.InvalidateCacheForLayer("roads")
//
// Storage is a 16-way sharded LRU map so concurrent render jobs committing
// their images rarely contend on the same lock.
//
// # Thread Safety
//
// RenderCache is safe for concurrent use. It must not be copied after
// creation.
package cache
