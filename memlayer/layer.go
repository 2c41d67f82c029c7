// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memlayer

import (
	"math"
	"sync"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// Option configures the properties shared by all in-memory layers.
type Option func(*base)

// WithName sets the display name. It defaults to the layer id.
func WithName(name string) Option {
	return func(b *base) { b.name = name }
}

// WithBlendMode sets the mode used to composite the layer.
func WithBlendMode(m surface.BlendMode) Option {
	return func(b *base) { b.blend = m }
}

// WithOpacity sets the layer opacity in [0, 1].
func WithOpacity(o float64) Option {
	return func(b *base) { b.opacity = min(max(o, 0), 1) }
}

// WithScaleRange limits visibility to scale denominators in
// [minScale, maxScale). Zero disables a bound.
func WithScaleRange(minScale, maxScale float64) Option {
	return func(b *base) {
		b.minScale = minScale
		b.maxScale = maxScale
	}
}

// WithProperty sets a custom property, e.g.
// mapcompose.PropertyRenderAboveLabels.
func WithProperty(key string, value any) Option {
	return func(b *base) { b.props[key] = value }
}

// base holds the state common to vector and raster layers.
type base struct {
	mu sync.RWMutex

	id       string
	name     string
	crs      crs.CRS
	blend    surface.BlendMode
	opacity  float64
	minScale float64
	maxScale float64
	invalid  bool
	props    map[string]any
}

func (b *base) init(id string, c crs.CRS, opts []Option) {
	b.id = id
	b.name = id
	b.crs = c
	b.opacity = 1
	b.props = make(map[string]any)
	for _, opt := range opts {
		opt(b)
	}
}

// ID returns the layer id.
func (b *base) ID() string { return b.id }

// Name returns the display name.
func (b *base) Name() string { return b.name }

// CRS returns the layer's coordinate reference system.
func (b *base) CRS() crs.CRS { return b.crs }

// IsValid reports whether the layer can be rendered.
func (b *base) IsValid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.invalid && b.id != "" && b.crs.IsValid()
}

// SetValid marks the layer valid or invalid, e.g. after its data source
// went away.
func (b *base) SetValid(valid bool) {
	b.mu.Lock()
	b.invalid = !valid
	b.mu.Unlock()
}

// IsInScaleRange reports whether the layer is visible at scale.
func (b *base) IsInScaleRange(scale float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.minScale > 0 && scale < b.minScale {
		return false
	}
	if b.maxScale > 0 && scale >= b.maxScale {
		return false
	}
	return true
}

// BlendMode returns the layer composition mode.
func (b *base) BlendMode() surface.BlendMode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blend
}

// SetBlendMode changes the layer composition mode.
func (b *base) SetBlendMode(m surface.BlendMode) {
	b.mu.Lock()
	b.blend = m
	b.mu.Unlock()
}

// Opacity returns the layer opacity.
func (b *base) Opacity() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opacity
}

// SetOpacity changes the layer opacity.
func (b *base) SetOpacity(o float64) {
	if math.IsNaN(o) {
		o = 1
	}
	b.mu.Lock()
	b.opacity = min(max(o, 0), 1)
	b.mu.Unlock()
}

// CustomProperty returns a custom property.
func (b *base) CustomProperty(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.props[key]
	return v, ok
}

// SetCustomProperty sets a custom property.
func (b *base) SetCustomProperty(key string, value any) {
	b.mu.Lock()
	b.props[key] = value
	b.mu.Unlock()
}

// ScopeVariables contributes the layer's custom string properties to the
// render context scope.
func (b *base) ScopeVariables() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	vars := make(map[string]string)
	for k, v := range b.props {
		if s, ok := v.(string); ok {
			vars["layer_property:"+k] = s
		}
	}
	return vars
}

var _ mapcompose.ScopeProvider = (*base)(nil)
