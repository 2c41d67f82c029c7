// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/gogpu/mapcompose/cache"
)

// CleanupJobs ends the first pass. Painters are closed, newly rendered
// images of completed jobs are stored in the render cache, renderer errors
// are collected and the buffers go back to the image pool.
func (j *Job) CleanupJobs(jobs []*LayerRenderJob) {
	rc := j.opts.cache
	stopped := j.IsStopped()
	for _, job := range jobs {
		j.closePainters(job)

		if job.Image != nil {
			if rc != nil && !job.Cached && !stopped && job.ImageInitialized {
				rc.SetCacheImage(job.LayerID, job.Image, []string{job.LayerID})
			}
			j.releaseImage(job.Image)
			job.Image = nil
		}
		if job.MaskImage != nil {
			j.releaseImage(job.MaskImage)
			job.MaskImage = nil
		}

		j.collectRendererErrors(job)
		j.recordTime(job.LayerID, job.RenderingTime)
	}
}

// CleanupSecondPassJobs ends the second pass. The images are never cached:
// their content has been merged into the first-pass images.
func (j *Job) CleanupSecondPassJobs(jobs []*LayerRenderJob) {
	for _, job := range jobs {
		j.closePainters(job)
		if job.Image != nil {
			j.releaseImage(job.Image)
			job.Image = nil
		}
		j.collectRendererErrors(job)
		j.recordTime(job.LayerID, job.RenderingTime)
	}
}

// CleanupLabelJob ends labeling. A complete, newly drawn label image is
// stored in the render cache with the labeled layers as its dependencies.
func (j *Job) CleanupLabelJob(label *LabelRenderJob) {
	if label == nil {
		return
	}
	if label.Image != nil {
		rc := j.opts.cache
		if rc != nil && label.cacheable && !label.Cached && label.Complete && !j.IsStopped() {
			rc.SetCacheImage(cache.LabelCacheID, label.Image, label.ParticipatingLayers)
		}
		if label.ownsPainter {
			label.Context.Painter().Close()
		}
		j.releaseImage(label.Image)
		label.Image = nil
	}
	for i, img := range label.MaskImages {
		label.Context.LabelMaskPainter(i).Close()
		j.releaseImage(img)
	}
	label.MaskImages = nil
	label.Context.labelMaskPainters = nil
}

func (j *Job) closePainters(job *LayerRenderJob) {
	if job.ownsPainter {
		job.Context.Painter().Close()
		job.ownsPainter = false
	}
	job.Context.MaskPainter().Close()
}

func (j *Job) collectRendererErrors(job *LayerRenderJob) {
	if job.Renderer == nil {
		return
	}
	for _, msg := range job.Renderer.Errors() {
		j.addError(job.LayerID, msg, ErrorRenderer)
	}
}

// recordTime adds d to the layer's total. Second-pass time is summed onto
// the first pass.
func (j *Job) recordTime(layerID string, d time.Duration) {
	if d < 0 {
		return
	}
	j.mu.Lock()
	j.perLayerTime[layerID] += d
	j.mu.Unlock()
}

// LogRenderingTime logs the time spent per layer, slowest first, when
// enabled in the map settings.
func (j *Job) LogRenderingTime(label *LabelRenderJob) {
	if !j.settings.LogRenderingTime {
		return
	}
	type entry struct {
		id string
		d  time.Duration
	}
	times := j.PerLayerRenderingTime()
	entries := make([]entry, 0, len(times)+1)
	for id, d := range times {
		entries = append(entries, entry{id, d})
	}
	if label != nil && label.RenderingTime >= 0 {
		entries = append(entries, entry{"labeling", label.RenderingTime})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.d, a.d); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	log := Logger()
	log.Info("rendering time per layer", "layers", len(entries), "total", j.RenderingTime())
	for _, e := range entries {
		log.Info("layer rendering time", slog.String("layer", e.id), slog.Duration("time", e.d))
	}
}
