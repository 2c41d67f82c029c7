// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/mapcompose/internal/parallel"
	"github.com/gogpu/mapcompose/surface"
)

// Render passes, used as metrics labels.
const (
	passFirst  = "first"
	passSecond = "second"
	passLabels = "labels"
)

// Render runs a full render cycle into offscreen images and returns the
// composed map.
//
// Layers render in parallel, then labels, then the second pass of masked
// layers. Per-layer problems do not fail the cycle; they are available from
// Errors afterwards. Render returns an error only when the output image
// cannot be allocated, the settings are invalid, the job was already
// started, or the cycle was cancelled. A cancelled cycle still returns the
// partial image together with an error wrapping ErrRenderingStopped.
func (j *Job) Render(ctx context.Context) (*image.RGBA, error) {
	if !j.started.CompareAndSwap(false, true) {
		return nil, ErrJobStarted
	}
	if err := j.settings.Validate(); err != nil {
		return nil, err
	}
	stop := j.watch(ctx)
	defer stop()

	start := time.Now()
	engine := j.labelingEngine()
	canUseLabelCache := j.prepareLabelCache(engine)
	jobs := j.PrepareJobs(nil, engine, false)
	label := j.PrepareLabelingJob(nil, engine, canUseLabelCache)
	second := j.PrepareSecondPassJobs(jobs, label)
	if engine != nil && label.Image == nil && !label.Cached {
		j.attachLabelImage(label)
	}

	pool := j.newPool()
	if pool != nil {
		defer pool.Close()
	}

	j.renderPass(pool, jobs, passFirst)
	j.renderLabels(label, engine)
	j.renderPass(pool, second, passSecond)
	ComposeSecondPass(second, label)

	img, err := ComposeImage(j.settings, jobs, label)
	j.finish(start, err)

	j.CleanupJobs(jobs)
	j.CleanupSecondPassJobs(second)
	j.CleanupLabelJob(label)
	j.LogRenderingTime(label)

	if err != nil {
		return nil, err
	}
	if j.IsStopped() {
		return img, j.stoppedErr(ctx)
	}
	return img, nil
}

// RenderTo runs a render cycle onto target.
//
// Layers render one after another. Layers that need no isolation draw
// straight onto target; isolated layers draw into their own image, which is
// composited onto target once the layer is done. Labels and layers flagged
// to render above labels follow. When selective masking is in use the
// cycle renders offscreen and composites the result onto target instead.
func (j *Job) RenderTo(ctx context.Context, target *surface.Painter) error {
	if !j.started.CompareAndSwap(false, true) {
		return ErrJobStarted
	}
	if !target.IsActive() {
		return fmt.Errorf("%w: target painter is not active", ErrInvalidSettings)
	}
	if err := j.settings.Validate(); err != nil {
		return err
	}
	stop := j.watch(ctx)
	defer stop()

	start := time.Now()
	engine := j.labelingEngine()
	canUseLabelCache := j.prepareLabelCache(engine)
	jobs := j.PrepareJobs(target, engine, false)
	label := j.PrepareLabelingJob(target, engine, canUseLabelCache)
	second := j.PrepareSecondPassJobs(jobs, label)

	mode, opacity := target.BlendMode(), target.Opacity()
	restore := func() {
		target.SetBlendMode(mode)
		target.SetOpacity(opacity)
	}

	if len(second) > 0 {
		pool := j.newPool()
		j.renderPass(pool, jobs, passFirst)
		j.renderLabels(label, engine)
		j.renderPass(pool, second, passSecond)
		if pool != nil {
			pool.Close()
		}
		ComposeSecondPass(second, label)
		composeOnto(target, jobs, label)
		restore()
	} else {
		for _, job := range jobs {
			if job.Image == nil {
				// Drawn straight onto target with the layer's blend mode.
				target.SetBlendMode(job.BlendMode)
				j.renderJob(job, passFirst)
				restore()
				continue
			}
			j.renderJob(job, passFirst)
			if !job.AboveLabels {
				drawJob(target, job)
				restore()
			}
		}
		j.renderLabels(label, engine)
		if label.Image != nil && label.Complete {
			composeOnto(target, nil, label)
			restore()
		}
		for _, job := range jobs {
			if job.AboveLabels {
				drawJob(target, job)
				restore()
			}
		}
	}
	j.finish(start, nil)

	j.CleanupJobs(jobs)
	j.CleanupSecondPassJobs(second)
	j.CleanupLabelJob(label)
	j.LogRenderingTime(label)

	if j.IsStopped() {
		return j.stoppedErr(ctx)
	}
	return nil
}

// watch cancels the job when ctx is done. The returned function releases
// the watch.
func (j *Job) watch(ctx context.Context) func() bool {
	if ctx.Err() != nil {
		j.Cancel()
	}
	return context.AfterFunc(ctx, j.Cancel)
}

func (j *Job) stoppedErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRenderingStopped, err)
	}
	return ErrRenderingStopped
}

func (j *Job) newPool() *parallel.WorkerPool {
	if j.opts.workers == 1 {
		return nil
	}
	return parallel.NewWorkerPool(j.opts.workers)
}

// renderPass renders jobs, on pool when there is one.
func (j *Job) renderPass(pool *parallel.WorkerPool, jobs []*LayerRenderJob, pass string) {
	if pool == nil || len(jobs) < 2 {
		for _, job := range jobs {
			j.renderJob(job, pass)
		}
		return
	}
	work := make([]func(), 0, len(jobs))
	for _, job := range jobs {
		work = append(work, func() { j.renderJob(job, pass) })
	}
	if err := pool.ExecuteAll(work); err != nil {
		Logger().Warn("render pass failed", "pass", pass, "err", err)
	}
}

// renderJob runs one renderer. A panicking renderer is recorded as a layer
// error and its image is left out of composition.
func (j *Job) renderJob(job *LayerRenderJob, pass string) {
	if job.Cached || job.Renderer == nil {
		return
	}
	if j.IsStopped() {
		j.addError(job.LayerID, "rendering cancelled before the layer started", ErrorCancelled)
		return
	}

	start := time.Now()
	job.ImageInitialized = true
	defer func() {
		if r := recover(); r != nil {
			job.ImageInitialized = false
			j.addError(job.LayerID, fmt.Sprintf("renderer panicked: %v", r), ErrorRenderer)
			Logger().Warn("layer renderer panicked", "layer", job.LayerID, "pass", pass, "panic", r)
		}
		d := time.Since(start)
		job.RenderingTime = max(job.RenderingTime, 0) + d
		j.opts.metrics.LayerRendered(pass, d)
	}()

	if !job.Renderer.Render() && !j.IsStopped() {
		Logger().Debug("layer renderer did not complete", "layer", job.LayerID, "pass", pass)
	}
}

// attachLabelImage gives the label job an image to draw on when it has
// neither an image nor a target painter.
func (j *Job) attachLabelImage(label *LabelRenderJob) {
	if label.Context.Painter() != nil {
		return
	}
	img, err := j.newImage()
	if err != nil {
		j.addError("", fmt.Sprintf("Insufficient memory for label image: %v", err), ErrorAllocation)
		return
	}
	label.Image = img
	label.Context.painter = j.newPainter(img)
	label.ownsPainter = true
}

// renderLabels runs the labeling engine once the first pass has registered
// all features. The label job is marked complete only if labeling finished
// without being cancelled.
func (j *Job) renderLabels(label *LabelRenderJob, engine LabelingEngine) {
	if engine == nil || label.Cached || j.IsStopped() {
		return
	}
	if label.Context.Painter() == nil {
		return
	}

	start := time.Now()
	defer func() {
		label.RenderingTime = time.Since(start)
		j.opts.metrics.LayerRendered(passLabels, label.RenderingTime)
	}()
	defer func() {
		if r := recover(); r != nil {
			label.Complete = false
			j.addError("", fmt.Sprintf("labeling panicked: %v", r), ErrorRenderer)
			Logger().Warn("labeling engine panicked", "panic", r)
		}
	}()

	engine.Run(label.Context)
	label.ParticipatingLayers = engine.ParticipatingLayers()
	label.Complete = !j.IsStopped()
}

// finish records the cycle duration and reports it.
func (j *Job) finish(start time.Time, composeErr error) {
	d := time.Since(start)
	j.mu.Lock()
	j.renderingTime = d
	j.mu.Unlock()

	result := "ok"
	switch {
	case composeErr != nil:
		result = "error"
	case j.IsStopped():
		result = "cancelled"
	}
	j.opts.metrics.RenderCycle(result, d)
}
