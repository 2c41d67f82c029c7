// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"fmt"
	"image"

	"github.com/gogpu/mapcompose/surface"
)

// ComposeImage draws the first-pass layer images and the label image onto a
// new image filled with the background color.
//
// Layers are drawn in job order with their own blend mode and opacity.
// Layers flagged to render above labels are drawn after the label image.
// Jobs without an initialized image are skipped, and the label image is
// only drawn once it is complete.
func ComposeImage(settings MapSettings, jobs []*LayerRenderJob, label *LabelRenderJob) (*image.RGBA, error) {
	img, err := surface.NewImage(settings.OutputSize.X, settings.OutputSize.Y, settings.maxPixels())
	if err != nil {
		return nil, fmt.Errorf("mapcompose: compose output: %w", err)
	}
	p := surface.NewPainter(img)
	p.Clear(settings.background())
	composeOnto(p, jobs, label)
	p.Close()
	return img, nil
}

// composeOnto draws jobs and the label image onto p in z-order.
func composeOnto(p *surface.Painter, jobs []*LayerRenderJob, label *LabelRenderJob) {
	for _, job := range jobs {
		if !job.AboveLabels {
			drawJob(p, job)
		}
	}
	if label != nil && label.Complete && label.Image != nil {
		p.SetBlendMode(surface.BlendSourceOver)
		p.SetOpacity(1)
		p.DrawImage(label.Image, image.Point{})
	}
	for _, job := range jobs {
		if job.AboveLabels {
			drawJob(p, job)
		}
	}
}

func drawJob(p *surface.Painter, job *LayerRenderJob) {
	if !job.ImageInitialized || job.Image == nil {
		return
	}
	p.SetBlendMode(job.BlendMode)
	p.SetOpacity(job.Opacity)
	p.DrawImage(job.Image, image.Point{})
}

// ComposeSecondPass replaces the masked area of every first-pass image with
// the matching second-pass rendering.
//
// The masks of all sources of a job are merged into the first source's
// mask. The second-pass image keeps only the masked area, the first-pass
// image loses it, and the second-pass image is then drawn over the
// first-pass image.
func ComposeSecondPass(secondPass []*LayerRenderJob, label *LabelRenderJob) {
	for _, job := range secondPass {
		first := job.FirstPassJob
		if len(job.MaskSources) == 0 || first == nil || first.Image == nil || job.Image == nil {
			continue
		}

		var mask *image.RGBA
		var maskPainter *surface.Painter
		for _, src := range job.MaskSources {
			img, mp := maskOf(src, label)
			if img == nil {
				continue
			}
			if mask == nil {
				mask = img
				maskPainter = mp
				if maskPainter == nil || !maskPainter.IsActive() {
					maskPainter = surface.NewPainter(img)
				}
				maskPainter.SetBlendMode(surface.BlendSourceOver)
				maskPainter.SetOpacity(1)
				continue
			}
			maskPainter.DrawImage(img, image.Point{})
		}
		if mask == nil {
			continue
		}

		p2 := job.Context.Painter()
		if !p2.IsActive() {
			p2 = surface.NewPainter(job.Image)
		}
		p2.SetBlendMode(surface.BlendDestinationIn)
		p2.SetOpacity(1)
		p2.DrawImage(mask, image.Point{})

		p1 := first.Context.Painter()
		if !p1.IsActive() {
			p1 = surface.NewPainter(first.Image)
		}
		p1.SetBlendMode(surface.BlendDestinationOut)
		p1.SetOpacity(1)
		p1.DrawImage(mask, image.Point{})
		p1.SetBlendMode(surface.BlendSourceOver)
		p1.DrawImage(job.Image, image.Point{})
	}
}

// maskOf returns the mask image of a source and the painter bound to it.
func maskOf(src MaskSource, label *LabelRenderJob) (*image.RGBA, *surface.Painter) {
	if src.Job != nil {
		return src.Job.MaskImage, src.Job.Context.MaskPainter()
	}
	if label == nil || src.LabelMaskID < 0 || src.LabelMaskID >= len(label.MaskImages) {
		return nil, nil
	}
	return label.MaskImages[src.LabelMaskID], label.Context.LabelMaskPainter(src.LabelMaskID)
}
