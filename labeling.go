// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import "seehuhn.de/go/geom/vec"

// LabelFeature is one labelable feature registered during the first pass.
type LabelFeature struct {
	Text string

	// Position is the anchor point in destination CRS coordinates.
	Position vec.Vec2

	// RuleID is the label rule that produced the feature. Label masks are
	// declared per rule.
	RuleID string
}

// LabelingEngine places and draws labels for one render cycle.
//
// A job feeds the engine in three steps: WillUseLayer is asked for every
// vector layer while jobs are prepared, renderers call RegisterFeature from
// worker goroutines during the first pass, and Run draws the labels once all
// first-pass rendering has finished.
type LabelingEngine interface {
	// WillUseLayer reports whether the engine labels the layer. It is only
	// called for layers with labels enabled.
	WillUseLayer(l VectorLayer) bool

	// RegisterFeature adds a feature. It must be safe for concurrent use.
	RegisterFeature(layerID string, f LabelFeature)

	// Run places and draws all registered labels onto ctx.Painter(), and
	// each label's mask onto ctx.LabelMaskPainter(id) when the mask id
	// provider knows the label's layer and rule.
	Run(ctx *RenderContext)

	// ParticipatingLayers returns the ids of the layers labeled by the last
	// Run, in the order they were first used.
	ParticipatingLayers() []string
}
