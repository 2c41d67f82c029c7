// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"image"
	"maps"
	"sync/atomic"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// Scope variable names set on every layer context.
const (
	ScopeLayerID   = "layer_id"
	ScopeLayerName = "layer_name"
	ScopeLayerCRS  = "layer_crs"
)

// RenderContext carries everything a layer renderer needs for one pass.
//
// A context is built by the scheduler before the renderer is created. The
// painters it holds may be attached or replaced until rendering starts, so
// renderers read them through the accessor methods when Render runs.
type RenderContext struct {
	// Extent is the area to render in layer CRS coordinates. It may be the
	// unbounded rectangle when the view extent could not be reprojected.
	Extent rect.Rect

	// MapExtent is the visible extent in destination CRS coordinates.
	MapExtent rect.Rect

	// Transform converts layer coordinates to destination coordinates, or
	// is nil when both use the same CRS.
	Transform crs.Transform

	// MapToPixel maps destination coordinates to image pixels.
	MapToPixel matrix.Matrix

	OutputSize image.Point
	Scale      float64
	Flags      Flag

	// Scope holds expression variables for the layer.
	Scope map[string]string

	FeatureFilter  FeatureFilterProvider
	LabelingEngine LabelingEngine

	// StyleOverride names a style preset to use instead of the layer's
	// current style, or is empty.
	StyleOverride string

	painter           *surface.Painter
	maskPainter       *surface.Painter
	labelMaskPainters []*surface.Painter
	maskIDs           *MaskIDProvider
	disabled          SymbolLayerSet
	stop              *atomic.Bool
}

// Painter returns the painter to draw on, or nil.
func (c *RenderContext) Painter() *surface.Painter { return c.painter }

// MaskPainter returns the painter receiving this layer's mask symbol
// layers, or nil when no other layer is masked by it.
func (c *RenderContext) MaskPainter() *surface.Painter { return c.maskPainter }

// LabelMaskPainter returns the painter for label mask id, or nil.
func (c *RenderContext) LabelMaskPainter(id int) *surface.Painter {
	if id < 0 || id >= len(c.labelMaskPainters) {
		return nil
	}
	return c.labelMaskPainters[id]
}

// MaskIDProvider returns the label mask id allocator, or nil when no label
// masks are in use.
func (c *RenderContext) MaskIDProvider() *MaskIDProvider { return c.maskIDs }

// DisabledSymbolLayers returns the symbol layers the renderer must skip.
// It is only non-empty for second-pass renderers.
func (c *RenderContext) DisabledSymbolLayers() SymbolLayerSet { return c.disabled }

// IsSymbolLayerDisabled reports whether the renderer must skip id.
func (c *RenderContext) IsSymbolLayerDisabled(id SymbolLayerID) bool {
	return c.disabled.Has(id)
}

// RenderingStopped reports whether the render cycle was cancelled.
func (c *RenderContext) RenderingStopped() bool {
	return c.stop != nil && c.stop.Load()
}

// HasFlag reports whether the render flag f is set.
func (c *RenderContext) HasFlag(f Flag) bool {
	return c.Flags&f != 0
}

// clone returns a copy sharing the stop flag but holding no painters.
func (c *RenderContext) clone() *RenderContext {
	cp := *c
	cp.Scope = maps.Clone(c.Scope)
	cp.painter = nil
	cp.maskPainter = nil
	cp.labelMaskPainters = nil
	cp.disabled = nil
	return &cp
}
