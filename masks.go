// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/mapcompose/surface"
)

// maskedTarget collects, for one masked layer, the symbol layers to mask and
// the sources painting the mask.
type maskedTarget struct {
	symbolLayers SymbolLayerSet
	sources      []MaskSource
}

// PrepareSecondPassJobs plans selective masking.
//
// Vector layers may declare that their labels (per label rule) or their mask
// symbol layers hide some symbol layers of other layers. For every layer
// masked that way a second-pass job is created that renders the layer again
// into a fresh image with the masked symbol layers disabled.
// ComposeSecondPass later swaps the masked area of the first-pass image for
// the second-pass rendering.
//
// The plan also allocates what the first pass and the labeling step need to
// paint masks: an image for every first-pass job, a mask image for every
// layer with mask symbol layers, a label image and one mask image per label
// mask id. Nothing is allocated when no layer declares a mask.
//
// When two sources mask different sets of symbol layers of the same layer,
// the set seen first is kept and the later source is ignored.
func (j *Job) PrepareSecondPassJobs(firstPass []*LayerRenderJob, label *LabelRenderJob) []*LayerRenderJob {
	if label.MaskIDs == nil {
		label.MaskIDs = NewMaskIDProvider()
	}
	byLayer := make(map[string]*LayerRenderJob, len(firstPass))
	hasMask := make(map[string]bool)
	targets := make(map[string]*maskedTarget)

	add := func(targetID string, set SymbolLayerSet, src MaskSource) {
		t, ok := targets[targetID]
		if !ok {
			targets[targetID] = &maskedTarget{symbolLayers: set.Clone(), sources: []MaskSource{src}}
			return
		}
		if !t.symbolLayers.Equal(set) {
			Logger().Warn("different sets of symbol layers are masked by different sources",
				"layer", targetID, "kept", t.symbolLayers.Sorted(), "ignored", set.Sorted(), "source", src.LayerID)
			return
		}
		t.sources = append(t.sources, src)
	}

	for _, job := range firstPass {
		vl := asVectorLayer(job.Layer)
		if vl == nil || !vl.Type().capabilities().declaresMasks {
			continue
		}
		byLayer[job.LayerID] = job

		labelMasks := vl.LabelMasks()
		for _, rule := range slices.Sorted(maps.Keys(labelMasks)) {
			masked := labelMasks[rule]
			var refs []SymbolLayerReference
			for _, target := range slices.Sorted(maps.Keys(masked)) {
				for _, sl := range masked[target].Sorted() {
					refs = append(refs, SymbolLayerReference{LayerID: target, SymbolLayer: sl})
				}
			}
			maskID := label.MaskIDs.InsertLabelLayer(job.LayerID, rule, refs)
			for _, target := range slices.Sorted(maps.Keys(masked)) {
				add(target, masked[target], MaskSource{LabelMaskID: maskID, LayerID: job.LayerID, LabelRuleID: rule})
			}
		}

		symbolMasks := vl.SymbolLayerMasks()
		for _, target := range slices.Sorted(maps.Keys(symbolMasks)) {
			add(target, symbolMasks[target], MaskSource{Job: job, LabelMaskID: -1, LayerID: job.LayerID})
		}
		if len(symbolMasks) > 0 {
			hasMask[job.LayerID] = true
		}
	}

	if len(targets) == 0 {
		j.opts.metrics.SecondPassJobs(0)
		return nil
	}

	for _, job := range firstPass {
		if job.Cached && hasMask[job.LayerID] {
			// A cached image carries no mask, so the source renders again.
			j.rerenderCached(job)
		}
		if job.Image == nil {
			if !j.attachImage(job) {
				continue
			}
		}
		if hasMask[job.LayerID] {
			img, err := j.newImage()
			if err != nil {
				j.addError(job.LayerID, fmt.Sprintf("Insufficient memory for mask image %dx%d", j.settings.OutputSize.X, j.settings.OutputSize.Y), ErrorAllocation)
				continue
			}
			job.MaskImage = img
			job.Context.maskPainter = j.newPainter(img)
		}
	}

	if label.Image == nil && !label.Cached {
		if img, err := j.newImage(); err == nil {
			label.Image = img
			label.Context.painter = j.newPainter(img)
			label.ownsPainter = true
		} else {
			j.addError("", fmt.Sprintf("Insufficient memory for label image: %v", err), ErrorAllocation)
		}
	}

	for range label.MaskIDs.Size() {
		img, err := j.newImage()
		if err != nil {
			j.addError("", fmt.Sprintf("Insufficient memory for label mask image: %v", err), ErrorAllocation)
			img = nil
		}
		label.MaskImages = append(label.MaskImages, img)
		var p *surface.Painter
		if img != nil {
			p = j.newPainter(img)
		}
		label.Context.labelMaskPainters = append(label.Context.labelMaskPainters, p)
	}
	label.Context.maskIDs = label.MaskIDs

	var second []*LayerRenderJob
	for _, job := range firstPass {
		t, ok := targets[job.LayerID]
		if !ok {
			continue
		}
		vl := asVectorLayer(job.Layer)
		if vl == nil || job.Image == nil {
			continue
		}

		img, err := j.newImage()
		if err != nil {
			j.addError(job.LayerID, fmt.Sprintf("Insufficient memory for image %dx%d", j.settings.OutputSize.X, j.settings.OutputSize.Y), ErrorAllocation)
			continue
		}
		ctx := job.Context.clone()
		ctx.LabelingEngine = nil
		ctx.painter = j.newPainter(img)

		job2 := &LayerRenderJob{
			Layer:         job.Layer,
			LayerID:       job.LayerID,
			Image:         img,
			BlendMode:     job.BlendMode,
			Opacity:       job.Opacity,
			RenderingTime: -1,
			Context:       ctx,
			FirstPassJob:  job,
			AboveLabels:   job.AboveLabels,
			ownsPainter:   true,
		}
		for _, src := range t.sources {
			if src.IsLabelMask() {
				job2.MaskSources = append(job2.MaskSources, src)
				continue
			}
			if sj := byLayer[src.LayerID]; sj != nil && sj.MaskImage != nil {
				src.Job = sj
				job2.MaskSources = append(job2.MaskSources, src)
			}
		}
		job2.Renderer = vl.CreateMapRenderer(ctx)
		// Renderers read the context at render time, so disabling symbol
		// layers after creation takes effect.
		ctx.disabled = t.symbolLayers.Clone()
		second = append(second, job2)
	}
	j.opts.metrics.SecondPassJobs(len(second))
	return second
}

// rerenderCached turns a cached job back into one that renders, reusing the
// cached image as its buffer.
func (j *Job) rerenderCached(job *LayerRenderJob) {
	job.Cached = false
	job.ImageInitialized = false
	clear(job.Image.Pix)
	job.Context.painter = j.newPainter(job.Image)
	job.ownsPainter = true
	job.Renderer = job.Layer.CreateMapRenderer(job.Context)
}

// attachImage gives a job that draws onto a shared target an image of its
// own.
func (j *Job) attachImage(job *LayerRenderJob) bool {
	img, err := j.newImage()
	if err != nil {
		j.addError(job.LayerID, fmt.Sprintf("Insufficient memory for image %dx%d", j.settings.OutputSize.X, j.settings.OutputSize.Y), ErrorAllocation)
		return false
	}
	job.Image = img
	job.Context.painter = j.newPainter(img)
	job.ownsPainter = true
	return true
}
