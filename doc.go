// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mapcompose renders a stack of map layers into a single image.
//
// # Overview
//
// A render cycle turns MapSettings (layers, extent, output size, flags) into
// an image. Each visible layer becomes a LayerRenderJob; layers render in
// parallel into their own images or straight onto a target painter, a
// labeling engine places labels once every layer has registered its
// features, and a compositor blends the results in layer order.
//
// # Quick Start
//
//	rc := cache.New()
//
//	job := mapcompose.NewJob(settings,
//	    mapcompose.WithCache(rc),
//	    mapcompose.WithLabelingEngine(memlayer.NewLabelEngine()),
//	)
//	img, err := job.Render(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, e := range job.Errors() {
//	    log.Printf("layer %s: %s", e.LayerID, e.Message)
//	}
//
// # Render Cycle
//
// Render runs these steps:
//   - PrepareJobs: reproject the view extent into each layer CRS, reuse
//     cached images, decide which layers need an image of their own
//   - PrepareLabelingJob: reuse or allocate the label image
//   - PrepareSecondPassJobs: plan selective masking
//   - first pass, labels, second pass
//   - ComposeSecondPass and ComposeImage
//   - cleanup: commit new images to the render cache
//
// RenderTo runs the same cycle onto a caller-owned surface.Painter.
//
// # Caching
//
// A cache.RenderCache keeps layer images between cycles as long as the view
// extent and scale stay the same. Editable layers and layers that must feed
// the labeling engine again are re-rendered. Images of cancelled cycles are
// never cached.
//
// # Masking
//
// Vector layers may declare that their labels or mask symbol layers hide
// symbol layers of other layers. Masked layers render a second time with
// those symbol layers disabled, and the masked area of the first rendering
// is replaced by the second.
//
// # Concurrency
//
// A Job renders once and is not safe for concurrent calls to Render.
// Layer renderers of one pass run concurrently on a worker pool; the
// labeling engine's RegisterFeature must therefore be safe for concurrent
// use. Cancel may be called from any goroutine.
package mapcompose

// Version is the module version.
const Version = "0.1.0"
