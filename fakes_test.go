// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

// fakeSymbol fills a pixel rectangle.
type fakeSymbol struct {
	id    SymbolLayerID
	color color.RGBA
	rect  image.Rectangle
	mask  bool
}

// fakeLayer is a vector or raster layer whose symbol layers fill pixel
// rectangles.
type fakeLayer struct {
	id           string
	typ          LayerType
	crs          crs.CRS
	invalid      bool
	blend        surface.BlendMode
	featureBlend surface.BlendMode
	opacity      float64
	props        map[string]any
	editable     bool
	forceRaster  bool
	labels       bool
	labelMasks   map[string]map[string]SymbolLayerSet
	symbolMasks  map[string]SymbolLayerSet
	symbols      []fakeSymbol

	// label is registered with the labeling engine on every render.
	label *LabelFeature

	// onRender runs at the start of every render.
	onRender func()
	panics   bool
	errors   []string

	created  atomic.Int32
	rendered atomic.Int32
}

func newFakeLayer(id string, symbols ...fakeSymbol) *fakeLayer {
	return &fakeLayer{
		id:      id,
		typ:     LayerVector,
		crs:     crs.EPSG3857,
		opacity: 1,
		props:   map[string]any{},
		symbols: symbols,
	}
}

func (l *fakeLayer) ID() string                            { return l.id }
func (l *fakeLayer) Name() string                          { return "name of " + l.id }
func (l *fakeLayer) Type() LayerType                       { return l.typ }
func (l *fakeLayer) IsValid() bool                         { return !l.invalid }
func (l *fakeLayer) IsInScaleRange(float64) bool           { return true }
func (l *fakeLayer) CRS() crs.CRS                          { return l.crs }
func (l *fakeLayer) BlendMode() surface.BlendMode          { return l.blend }
func (l *fakeLayer) Opacity() float64                      { return l.opacity }
func (l *fakeLayer) IsEditable() bool                      { return l.editable }
func (l *fakeLayer) FeatureBlendMode() surface.BlendMode   { return l.featureBlend }
func (l *fakeLayer) ForceRasterRender() bool               { return l.forceRaster }
func (l *fakeLayer) LabelsEnabled() bool                   { return l.labels }
func (l *fakeLayer) LabelingRequiresAdvancedEffects() bool { return false }

func (l *fakeLayer) CustomProperty(key string) (any, bool) {
	v, ok := l.props[key]
	return v, ok
}

func (l *fakeLayer) LabelMasks() map[string]map[string]SymbolLayerSet {
	if !l.labels {
		return nil
	}
	return l.labelMasks
}

func (l *fakeLayer) SymbolLayerMasks() map[string]SymbolLayerSet { return l.symbolMasks }

func (l *fakeLayer) CreateMapRenderer(ctx *RenderContext) LayerRenderer {
	l.created.Add(1)
	return &fakeRenderer{layer: l, ctx: ctx}
}

type fakeRenderer struct {
	layer *fakeLayer
	ctx   *RenderContext
}

func (r *fakeRenderer) LayerID() string { return r.layer.id }

func (r *fakeRenderer) Errors() []string { return r.layer.errors }

func (r *fakeRenderer) Render() bool {
	l := r.layer
	l.rendered.Add(1)
	if l.onRender != nil {
		l.onRender()
	}
	if l.panics {
		panic("broken layer")
	}
	if r.ctx.RenderingStopped() {
		return false
	}
	for _, s := range l.symbols {
		if r.ctx.IsSymbolLayerDisabled(s.id) {
			continue
		}
		p := r.ctx.Painter()
		if s.mask {
			p = r.ctx.MaskPainter()
		}
		p.FillRect(s.rect, s.color)
	}
	if e := r.ctx.LabelingEngine; e != nil && l.labels && l.label != nil {
		e.RegisterFeature(l.id, *l.label)
	}
	return true
}

// fakeEngine paints a 20x20 box centered on every registered label and
// the same box into the label's mask.
type fakeEngine struct {
	color color.RGBA

	// onRun runs after the labels are drawn.
	onRun func()

	mu       sync.Mutex
	used     []string
	features map[string][]LabelFeature
	runs     int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{color: green, features: map[string][]LabelFeature{}}
}

func (e *fakeEngine) WillUseLayer(l VectorLayer) bool {
	if !l.LabelsEnabled() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.used {
		if id == l.ID() {
			return true
		}
	}
	e.used = append(e.used, l.ID())
	return true
}

func (e *fakeEngine) RegisterFeature(layerID string, f LabelFeature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features[layerID] = append(e.features[layerID], f)
}

func (e *fakeEngine) ParticipatingLayers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.used...)
}

func (e *fakeEngine) Run(ctx *RenderContext) {
	e.mu.Lock()
	e.runs++
	m := ctx.MapToPixel
	for _, id := range e.used {
		for _, f := range e.features[id] {
			x := m[0]*f.Position.X + m[2]*f.Position.Y + m[4]
			y := m[1]*f.Position.X + m[3]*f.Position.Y + m[5]
			box := image.Rect(int(x)-10, int(y)-10, int(x)+10, int(y)+10)
			ctx.Painter().FillRect(box, e.color)
			if ids := ctx.MaskIDProvider(); ids != nil {
				ctx.LabelMaskPainter(ids.MaskID(id, f.RuleID)).FillRect(box, color.Opaque)
			}
		}
	}
	e.mu.Unlock()
	if e.onRun != nil {
		e.onRun()
	}
}

// fakeTransform maps every bounding box to a fixed result.
type fakeTransform struct {
	src, dst crs.CRS
	bbox     rect.Rect
	err      error
}

func (t *fakeTransform) Source() crs.CRS      { return t.src }
func (t *fakeTransform) Destination() crs.CRS { return t.dst }
func (t *fakeTransform) IsValid() bool        { return true }

func (t *fakeTransform) TransformPoint(p vec.Vec2, _ crs.Direction) (vec.Vec2, error) {
	return p, t.err
}

func (t *fakeTransform) TransformBoundingBox(rect.Rect, crs.Direction) (rect.Rect, error) {
	return t.bbox, t.err
}

var infiniteRect = rect.Rect{LLx: math.Inf(-1), LLy: 0, URx: 1, URy: 1}

// testSettings maps the square (0,0)-(100,100) onto a 100x100 image.
func testSettings(layers ...Layer) MapSettings {
	return MapSettings{
		Layers:          layers,
		DestinationCRS:  crs.EPSG3857,
		Extent:          rect.Rect{LLx: 0, LLy: 0, URx: 100, URy: 100},
		OutputSize:      image.Pt(100, 100),
		BackgroundColor: color.White,
		Flags:           DefaultFlags,
	}
}

// countingMetrics records Metrics calls.
type countingMetrics struct {
	mu         sync.Mutex
	cycles     []string
	rendered   map[string]int
	hits, miss int
	errors     map[string]int
	secondPass []int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{rendered: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RenderCycle(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, result)
}

func (m *countingMetrics) LayerRendered(pass string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rendered[pass]++
}

func (m *countingMetrics) CacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.miss++
	}
}

func (m *countingMetrics) RenderError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) SecondPassJobs(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secondPass = append(m.secondPass, n)
}
