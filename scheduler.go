// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"fmt"
	"math"
	"slices"
	"time"

	"seehuhn.de/go/geom/rect"

	"github.com/gogpu/mapcompose/cache"
	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// msgExtentSkipped is recorded for layers whose extent could not be
// reprojected to a finite rectangle.
const msgExtentSkipped = "There was a problem transforming the layer's extent. Layer skipped."

// labelingEngine returns the engine when labeling is enabled, or nil.
func (j *Job) labelingEngine() LabelingEngine {
	if !j.settings.TestFlag(FlagDrawLabeling) {
		return nil
	}
	return j.opts.engine
}

// willLabel reports whether engine labels l. Without an engine it reports
// whether l has labels enabled at all.
func willLabel(engine LabelingEngine, l Layer) bool {
	if !l.Type().capabilities().registersFeatures {
		return false
	}
	vl := asVectorLayer(l)
	if vl == nil || !vl.LabelsEnabled() {
		return false
	}
	if engine == nil {
		return true
	}
	return engine.WillUseLayer(vl)
}

// PrepareJobs creates one render job per visible layer, from the bottom of
// the layer stack to the top.
//
// Layers that are invalid or outside their scale range are skipped
// silently. Layers whose extent cannot be reprojected or whose image cannot
// be allocated are skipped with an error. A layer found in the render cache
// becomes a cached job without a renderer. Other layers get a renderer that
// draws either onto target or, when the layer must be isolated, onto an
// image of its own.
//
// deferredTarget reports that a target painter will be attached after
// preparation, so layers need no image just because target is nil.
func (j *Job) PrepareJobs(target *surface.Painter, engine LabelingEngine, deferredTarget bool) []*LayerRenderJob {
	s := &j.settings
	rc := j.opts.cache
	visible := s.VisibleExtent()
	scale := s.EffectiveScale()
	log := Logger()

	if rc != nil {
		valid := rc.Init(visible, scale)
		log.Debug("render cache checked", "valid", valid)
	}
	requiresLabelRedraw := rc == nil || !rc.HasCacheImage(cache.LabelCacheID)

	var jobs []*LayerRenderJob
	for _, l := range slices.Backward(s.Layers) {
		if l == nil {
			continue
		}
		id := l.ID()
		if !l.IsValid() {
			log.Debug("invalid layer skipped", "layer", id)
			continue
		}
		if !l.IsInScaleRange(scale) {
			log.Debug("layer outside its visibility scale range", "layer", id, "scale", scale)
			continue
		}

		r1 := growRect(visible, s.ExtentBuffer)
		var r2 rect.Rect
		ct, err := s.LayerTransform(l)
		if err != nil {
			log.Debug("no transform for layer, rendering unbounded", "layer", id, "err", err)
			r1, r2 = UnboundedExtent, UnboundedExtent
		} else if ct != nil && ct.IsValid() {
			r1, r2 = ReprojectToLayerExtent(l, ct, r1)
		}
		if !isFiniteRect(r1) || !isFiniteRect(r2) {
			j.addError(id, msgExtentSkipped, ErrorLayerSkipped)
			continue
		}

		vl := asVectorLayer(l)
		if rc != nil {
			requiresLabeling := engine != nil && willLabel(engine, l) && requiresLabelRedraw
			if (vl != nil && vl.IsEditable()) || requiresLabeling {
				rc.ClearCacheImage(id)
			}
		}

		job := &LayerRenderJob{
			Layer:         l,
			LayerID:       id,
			BlendMode:     l.BlendMode(),
			Opacity:       1,
			RenderingTime: -1,
			AboveLabels:   renderAboveLabels(l),
			Context:       j.newLayerContext(l, r1, ct, target, engine),
		}
		if l.Type().capabilities().composeOpacity {
			job.Opacity = l.Opacity()
		}

		if rc != nil {
			hit := rc.HasCacheImage(id)
			j.opts.metrics.CacheLookup(hit)
			if hit {
				if img := rc.CacheImage(id); img != nil {
					job.Cached = true
					job.ImageInitialized = true
					job.Image = img
					job.Context.painter = nil
					jobs = append(jobs, job)
					log.Debug("layer taken from render cache", "layer", id)
					continue
				}
			}
		}

		start := time.Now()
		if rc != nil || (target == nil && !deferredTarget) || j.needTemporaryImage(l, target != nil || deferredTarget) {
			img, err := j.newImage()
			if err != nil {
				j.addError(id, fmt.Sprintf("Insufficient memory for image %dx%d", s.OutputSize.X, s.OutputSize.Y), ErrorAllocation)
				continue
			}
			job.Image = img
			job.Context.painter = j.newPainter(img)
			job.ownsPainter = true
		}

		job.Renderer = l.CreateMapRenderer(job.Context)
		job.RenderingTime = time.Since(start)
		jobs = append(jobs, job)
	}
	return jobs
}

// needTemporaryImage reports whether l must be rendered into an image of
// its own before it is composited.
func (j *Job) needTemporaryImage(l Layer, haveTarget bool) bool {
	caps := l.Type().capabilities()
	if haveTarget && renderAboveLabels(l) {
		return true
	}
	if caps.forcesRasterRender {
		if vl := asVectorLayer(l); vl != nil {
			if vl.ForceRasterRender() {
				return true
			}
			if caps.advancedEffects && j.settings.TestFlag(FlagUseAdvancedEffects) &&
				(vl.BlendMode() != surface.BlendSourceOver ||
					vl.FeatureBlendMode() != surface.BlendSourceOver ||
					math.Abs(vl.Opacity()-1) > 1e-8) {
				return true
			}
		}
	}
	if caps.previewNeedsImage && j.settings.TestFlag(FlagRenderPartialOutput) {
		return true
	}
	return false
}

// newLayerContext builds the render context of a first-pass layer job.
func (j *Job) newLayerContext(l Layer, extent rect.Rect, ct crs.Transform, target *surface.Painter, engine LabelingEngine) *RenderContext {
	s := &j.settings
	scope := map[string]string{
		ScopeLayerID:   l.ID(),
		ScopeLayerName: l.Name(),
		ScopeLayerCRS:  l.CRS().String(),
	}
	if sp, ok := l.(ScopeProvider); ok {
		for k, v := range sp.ScopeVariables() {
			scope[k] = v
		}
	}
	return &RenderContext{
		Extent:         extent,
		MapExtent:      s.VisibleExtent(),
		Transform:      ct,
		MapToPixel:     s.MapToPixel(),
		OutputSize:     s.OutputSize,
		Scale:          s.EffectiveScale(),
		Flags:          s.Flags,
		Scope:          scope,
		FeatureFilter:  j.opts.filter,
		LabelingEngine: engine,
		StyleOverride:  s.StyleOverrides[l.ID()],
		painter:        target,
		stop:           &j.stop,
	}
}

// prepareLabelCache reports whether the label image may be taken from or
// stored in the render cache. A cached label image is dropped when the
// layers labeled now differ from its layers or one of them is editable.
// Every layer is offered to the engine.
func (j *Job) prepareLabelCache(engine LabelingEngine) bool {
	rc := j.opts.cache
	canCache := rc != nil
	editing := false

	labeled := make(map[string]struct{})
	for _, l := range j.settings.Layers {
		if l == nil || !willLabel(engine, l) {
			continue
		}
		labeled[l.ID()] = struct{}{}
		vl := asVectorLayer(l)
		if vl.IsEditable() {
			editing = true
		}
		// Label masks are painted while labeling runs, so a cached
		// label image would leave them empty.
		if vl.LabelingRequiresAdvancedEffects() || len(vl.LabelMasks()) > 0 {
			canCache = false
		}
	}

	if rc != nil && rc.HasCacheImage(cache.LabelCacheID) {
		deps := rc.DependentLayers(cache.LabelCacheID)
		same := len(deps) == len(labeled)
		for _, id := range deps {
			if _, ok := labeled[id]; !ok {
				same = false
				break
			}
		}
		if !canCache || !same || editing {
			Logger().Debug("label cache dropped", "cached_layers", deps, "editing", editing)
			rc.ClearCacheImage(cache.LabelCacheID)
		}
	}
	return canCache
}

// PrepareLabelingJob creates the label job. The label image is taken from
// the render cache when canUseLabelCache allows it; otherwise an image is
// allocated when labels have to be cached or there is no target to draw on.
func (j *Job) PrepareLabelingJob(target *surface.Painter, engine LabelingEngine, canUseLabelCache bool) *LabelRenderJob {
	s := &j.settings
	rc := j.opts.cache
	job := &LabelRenderJob{
		RenderingTime: -1,
		Context: &RenderContext{
			Extent:         s.VisibleExtent(),
			MapExtent:      s.VisibleExtent(),
			MapToPixel:     s.MapToPixel(),
			OutputSize:     s.OutputSize,
			Scale:          s.EffectiveScale(),
			Flags:          s.Flags,
			Scope:          map[string]string{},
			FeatureFilter:  j.opts.filter,
			LabelingEngine: engine,
			painter:        target,
			stop:           &j.stop,
		},
		cacheable: canUseLabelCache,
	}

	if canUseLabelCache && rc != nil && rc.HasCacheImage(cache.LabelCacheID) {
		if img := rc.CacheImage(cache.LabelCacheID); img != nil {
			job.Cached = true
			job.Complete = true
			job.Image = img
			job.ParticipatingLayers = rc.DependentLayers(cache.LabelCacheID)
			job.Context.painter = nil
			return job
		}
	}

	if engine != nil && canUseLabelCache && (rc != nil || target == nil) {
		img, err := j.newImage()
		if err != nil {
			j.addError(cache.LabelCacheID, fmt.Sprintf("Insufficient memory for label image %dx%d", s.OutputSize.X, s.OutputSize.Y), ErrorAllocation)
			return job
		}
		job.Image = img
		job.Context.painter = j.newPainter(img)
		job.ownsPainter = true
	}
	return job
}
