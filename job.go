// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/mapcompose/cache"
	"github.com/gogpu/mapcompose/surface"
)

// LayerRenderJob is the render state of one layer in one pass.
type LayerRenderJob struct {
	Layer   Layer
	LayerID string

	// Cached is set when Image was taken from the render cache and no
	// renderer runs for this job.
	Cached bool

	// ImageInitialized is set once Image holds valid pixels.
	ImageInitialized bool

	// Image is the job's own buffer, or nil when the renderer draws
	// directly onto the target painter.
	Image *image.RGBA

	// MaskImage receives the layer's mask symbol layers when other layers
	// are masked by it.
	MaskImage *image.RGBA

	BlendMode surface.BlendMode
	Opacity   float64

	// RenderingTime is how long the job took, or -1 until measured.
	RenderingTime time.Duration

	Renderer LayerRenderer
	Context  *RenderContext

	// FirstPassJob links a second-pass job to the first-pass job of the
	// same layer.
	FirstPassJob *LayerRenderJob

	// MaskSources lists what masks a second-pass job.
	MaskSources []MaskSource

	// AboveLabels is set for layers composited above the label image.
	AboveLabels bool

	ownsPainter bool
}

// MaskSource is one producer of a mask: either a first-pass layer job or a
// label mask id.
type MaskSource struct {
	// Job is the first-pass job painting the mask, or nil for label masks.
	Job *LayerRenderJob

	// LabelMaskID indexes LabelRenderJob.MaskImages, or is -1.
	LabelMaskID int

	// LayerID and LabelRuleID identify the source for diagnostics.
	LayerID     string
	LabelRuleID string
}

// IsLabelMask reports whether the source is a label mask.
func (m MaskSource) IsLabelMask() bool {
	return m.Job == nil && m.LabelMaskID >= 0
}

// LabelRenderJob is the render state of the label layer.
type LabelRenderJob struct {
	// Image holds the labels, or is nil when labels are drawn directly
	// onto the target painter.
	Image *image.RGBA

	Cached bool

	// Complete is set once all label drawing has finished. An incomplete
	// label image is never composited or cached.
	Complete bool

	// MaskImages holds one mask per label mask id.
	MaskImages []*image.RGBA
	MaskIDs    *MaskIDProvider

	ParticipatingLayers []string

	// RenderingTime is how long labeling took, or -1 until measured.
	RenderingTime time.Duration

	Context *RenderContext

	cacheable   bool
	ownsPainter bool
}

// Metrics receives render cycle measurements. metrics.Collector implements
// it with Prometheus instruments.
type Metrics interface {
	RenderCycle(result string, d time.Duration)
	LayerRendered(pass string, d time.Duration)
	CacheLookup(hit bool)
	RenderError(kind string)
	SecondPassJobs(n int)
}

type nopMetrics struct{}

func (nopMetrics) RenderCycle(string, time.Duration)   {}
func (nopMetrics) LayerRendered(string, time.Duration) {}
func (nopMetrics) CacheLookup(bool)                    {}
func (nopMetrics) RenderError(string)                  {}
func (nopMetrics) SecondPassJobs(int)                  {}

// Job renders one map view once.
//
// A Job is not reusable: create a new one per render cycle. The render
// cache passed with WithCache is what carries state between cycles.
type Job struct {
	settings MapSettings
	opts     jobOptions

	stop    atomic.Bool
	started atomic.Bool

	mu            sync.Mutex
	errors        Errors
	perLayerTime  map[string]time.Duration
	renderingTime time.Duration
}

// NewJob creates a render job for settings.
func NewJob(settings MapSettings, opts ...Option) *Job {
	o := defaultJobOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Job{
		settings:     settings,
		opts:         o,
		perLayerTime: make(map[string]time.Duration),
	}
}

// Settings returns the map settings the job renders.
func (j *Job) Settings() MapSettings { return j.settings }

// Cache returns the render cache, or nil.
func (j *Job) Cache() *cache.RenderCache { return j.opts.cache }

// Cancel stops the render cycle. Renderers observe the request through
// RenderContext.RenderingStopped.
func (j *Job) Cancel() {
	j.stop.Store(true)
}

// IsStopped reports whether Cancel was called or the render context was
// cancelled.
func (j *Job) IsStopped() bool {
	return j.stop.Load()
}

// Errors returns the errors collected so far.
func (j *Job) Errors() Errors {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append(Errors(nil), j.errors...)
}

// PerLayerRenderingTime returns the measured time per layer id. Second-pass
// time is added to the layer's first-pass time.
func (j *Job) PerLayerRenderingTime() map[string]time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]time.Duration, len(j.perLayerTime))
	for k, v := range j.perLayerTime {
		out[k] = v
	}
	return out
}

// RenderingTime returns the duration of the last completed cycle.
func (j *Job) RenderingTime() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.renderingTime
}

func (j *Job) addError(layerID, msg string, kind ErrorKind) {
	j.mu.Lock()
	j.errors = append(j.errors, Error{LayerID: layerID, Message: msg, Kind: kind})
	j.mu.Unlock()
	j.opts.metrics.RenderError(kind.String())
}

func (j *Job) newImage() (*image.RGBA, error) {
	return j.opts.pool.Get(j.settings.OutputSize.X, j.settings.OutputSize.Y, j.settings.maxPixels())
}

func (j *Job) releaseImage(img *image.RGBA) {
	if img != nil {
		j.opts.pool.Put(img)
	}
}

func (j *Job) newPainter(img *image.RGBA) *surface.Painter {
	p := surface.NewPainter(img)
	p.SetAntialiasing(j.settings.TestFlag(FlagAntialiasing))
	return p
}
