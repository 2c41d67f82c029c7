// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"github.com/gogpu/mapcompose/cache"
	"github.com/gogpu/mapcompose/surface"
)

// Option configures a Job during creation.
//
// Example:
//
//	rc := cache.New()
//	job := mapcompose.NewJob(settings,
//	    mapcompose.WithCache(rc),
//	    mapcompose.WithLabelingEngine(engine),
//	    mapcompose.WithWorkers(4),
//	)
type Option func(*jobOptions)

type jobOptions struct {
	cache   *cache.RenderCache
	engine  LabelingEngine
	filter  FeatureFilterProvider
	workers int
	metrics Metrics
	pool    *surface.Pool
}

func defaultJobOptions() jobOptions {
	return jobOptions{
		workers: 0, // GOMAXPROCS
		metrics: nopMetrics{},
	}
}

// WithCache sets the render cache shared between render cycles. Without a
// cache every layer is rendered on every cycle.
func WithCache(c *cache.RenderCache) Option {
	return func(o *jobOptions) {
		o.cache = c
	}
}

// WithLabelingEngine sets the labeling engine. Labels are only drawn when
// FlagDrawLabeling is set as well.
//
// Engines keep per-cycle state, so pass a fresh engine to every job.
func WithLabelingEngine(e LabelingEngine) Option {
	return func(o *jobOptions) {
		o.engine = e
	}
}

// WithFeatureFilter sets the feature filter handed to layer renderers.
func WithFeatureFilter(f FeatureFilterProvider) Option {
	return func(o *jobOptions) {
		o.filter = f
	}
}

// WithWorkers sets the number of goroutines rendering layers in parallel.
// 1 renders sequentially; 0 or less uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *jobOptions) {
		o.workers = n
	}
}

// WithMetrics sets the receiver of render cycle measurements.
func WithMetrics(m Metrics) Option {
	return func(o *jobOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithImagePool sets the pool image buffers are taken from and returned to.
// Sharing a pool between jobs of the same output size avoids reallocating
// layer images on every cycle.
func WithImagePool(p *surface.Pool) Option {
	return func(o *jobOptions) {
		o.pool = p
	}
}
