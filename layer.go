// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"fmt"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// PropertyRenderAboveLabels is the custom layer property that, when true,
// composites the layer above the label image.
const PropertyRenderAboveLabels = "rendering/renderAboveLabels"

// LayerType is the closed set of layer kinds the scheduler distinguishes.
type LayerType int

const (
	LayerVector LayerType = iota // feature layers; the only type that labels or masks
	LayerRaster                  // image and coverage layers
	LayerMesh
	LayerPlugin
)

// String returns the layer type name.
func (t LayerType) String() string {
	switch t {
	case LayerVector:
		return "vector"
	case LayerRaster:
		return "raster"
	case LayerMesh:
		return "mesh"
	case LayerPlugin:
		return "plugin"
	default:
		return fmt.Sprintf("LayerType(%d)", int(t))
	}
}

// capabilities describes what the scheduler may ask of a layer type.
type capabilities struct {
	// forcesRasterRender: the layer may demand an isolated image.
	forcesRasterRender bool
	// advancedEffects: blend modes and opacity isolate the layer.
	advancedEffects bool
	// registersFeatures: the layer feeds the labeling engine.
	registersFeatures bool
	// declaresMasks: the layer may mask other layers' symbol layers.
	declaresMasks bool
	// previewNeedsImage: partial-output preview renders into an image.
	previewNeedsImage bool
	// composeOpacity: the layer opacity is applied when compositing.
	// Other layer types apply opacity in their renderer.
	composeOpacity bool
}

var layerCapabilities = [...]capabilities{
	LayerVector: {
		forcesRasterRender: true,
		advancedEffects:    true,
		registersFeatures:  true,
		declaresMasks:      true,
		composeOpacity:     true,
	},
	LayerRaster: {
		previewNeedsImage: true,
	},
	LayerMesh:   {},
	LayerPlugin: {},
}

func (t LayerType) capabilities() capabilities {
	if t < 0 || int(t) >= len(layerCapabilities) {
		return capabilities{}
	}
	return layerCapabilities[t]
}

// Layer is one data source in the map's layer stack.
//
// Implementations must be safe for concurrent use: renderers for different
// layers run in parallel and a layer may have a first-pass and a
// second-pass renderer alive at the same time.
type Layer interface {
	ID() string
	Name() string
	Type() LayerType
	IsValid() bool
	IsInScaleRange(scale float64) bool
	CRS() crs.CRS
	BlendMode() surface.BlendMode
	Opacity() float64
	CustomProperty(key string) (any, bool)

	// CreateMapRenderer prepares a renderer bound to ctx. It runs on the
	// scheduling goroutine and must not draw.
	CreateMapRenderer(ctx *RenderContext) LayerRenderer
}

// VectorLayer is a Layer of type LayerVector.
type VectorLayer interface {
	Layer

	IsEditable() bool
	FeatureBlendMode() surface.BlendMode
	ForceRasterRender() bool
	LabelsEnabled() bool
	LabelingRequiresAdvancedEffects() bool

	// LabelMasks maps label rule id to target layer id to the symbol
	// layers of the target that labels of that rule mask.
	LabelMasks() map[string]map[string]SymbolLayerSet

	// SymbolLayerMasks maps target layer id to the symbol layers of the
	// target that this layer's mask symbol layers mask.
	SymbolLayerMasks() map[string]SymbolLayerSet
}

// ScopeProvider is implemented by layers that contribute extra variables to
// the expression scope of their render context.
type ScopeProvider interface {
	ScopeVariables() map[string]string
}

// LayerRenderer renders one layer for one pass of a render cycle.
//
// Render draws onto the painters held by the RenderContext the renderer was
// created with. Painters must be fetched from the context when Render runs,
// not when the renderer is created: the mask planner may attach an image or
// mask painter after creation.
type LayerRenderer interface {
	LayerID() string

	// Render draws the layer and reports whether it completed. A renderer
	// should poll RenderContext.RenderingStopped and return false early
	// when it is set.
	Render() bool

	// Errors returns messages collected while rendering.
	Errors() []string
}

// FeatureFilterProvider restricts the features a layer renders.
type FeatureFilterProvider interface {
	// FilterExpression returns the filter for a layer, or "" for none.
	FilterExpression(layerID string) string
}

// asVectorLayer returns l as a VectorLayer when it is one.
func asVectorLayer(l Layer) VectorLayer {
	if l == nil || l.Type() != LayerVector {
		return nil
	}
	vl, _ := l.(VectorLayer)
	return vl
}

// renderAboveLabels reports whether the layer is flagged to be composited
// above the labels.
func renderAboveLabels(l Layer) bool {
	if l == nil {
		return false
	}
	v, ok := l.CustomProperty(PropertyRenderAboveLabels)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	case int:
		return b != 0
	default:
		return false
	}
}
