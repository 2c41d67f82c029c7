// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memlayer

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// Feature is one geometry of a vector layer, in layer CRS coordinates.
//
// A single vertex is a point; three or more vertices form a polygon ring.
type Feature struct {
	ID         string
	Geometry   []vec.Vec2
	Attributes map[string]string

	// Label is the label text, or empty for none.
	Label string
	// LabelRule is the label rule the label belongs to.
	LabelRule string
}

// bounds returns the bounding box of the geometry.
func (f *Feature) bounds() rect.Rect {
	r := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for _, p := range f.Geometry {
		r.LLx = min(r.LLx, p.X)
		r.LLy = min(r.LLy, p.Y)
		r.URx = max(r.URx, p.X)
		r.URy = max(r.URy, p.Y)
	}
	return r
}

// anchor returns the label anchor: the point itself or the polygon's
// vertex centroid.
func (f *Feature) anchor() vec.Vec2 {
	var c vec.Vec2
	for _, p := range f.Geometry {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(f.Geometry))
	return vec.Vec2{X: c.X / n, Y: c.Y / n}
}

// SymbolLayer is one drawing step applied to every feature.
type SymbolLayer struct {
	ID    mapcompose.SymbolLayerID
	Color color.Color

	// Size is the marker diameter in pixels for point features.
	Size float64

	// Mask makes this a mask symbol layer: it paints opaque coverage into
	// the layer's mask image instead of the map. Color is ignored.
	Mask bool
}

// VectorLayer is an in-memory feature layer.
type VectorLayer struct {
	base

	features     []Feature
	symbols      []SymbolLayer
	styles       map[string][]SymbolLayer
	featureBlend surface.BlendMode
	editable     bool
	forceRaster  bool
	labels       bool
	labelEffects bool
	labelMasks   map[string]map[string]mapcompose.SymbolLayerSet
	symbolMasks  map[string]mapcompose.SymbolLayerSet

	renderers atomic.Int64
}

var _ mapcompose.VectorLayer = (*VectorLayer)(nil)

// NewVectorLayer creates an empty vector layer.
func NewVectorLayer(id string, c crs.CRS, opts ...Option) *VectorLayer {
	l := &VectorLayer{
		styles:      make(map[string][]SymbolLayer),
		labelMasks:  make(map[string]map[string]mapcompose.SymbolLayerSet),
		symbolMasks: make(map[string]mapcompose.SymbolLayerSet),
	}
	l.init(id, c, opts)
	return l
}

// Type returns mapcompose.LayerVector.
func (l *VectorLayer) Type() mapcompose.LayerType { return mapcompose.LayerVector }

// AddFeature appends features.
func (l *VectorLayer) AddFeature(fs ...Feature) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.features = append(l.features, fs...)
}

// AddSymbolLayer appends symbol layers to the current style.
func (l *VectorLayer) AddSymbolLayer(sls ...SymbolLayer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.symbols = append(l.symbols, sls...)
}

// AddStyle registers a named style that a style override can select.
func (l *VectorLayer) AddStyle(name string, sls ...SymbolLayer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.styles[name] = slices.Clone(sls)
}

// SetEditable toggles edit mode. Layers in edit mode bypass the render
// cache.
func (l *VectorLayer) SetEditable(editable bool) {
	l.mu.Lock()
	l.editable = editable
	l.mu.Unlock()
}

// IsEditable reports whether the layer is in edit mode.
func (l *VectorLayer) IsEditable() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.editable
}

// SetFeatureBlendMode sets the mode features are blended with each other.
func (l *VectorLayer) SetFeatureBlendMode(m surface.BlendMode) {
	l.mu.Lock()
	l.featureBlend = m
	l.mu.Unlock()
}

// FeatureBlendMode returns the mode features are blended with each other.
func (l *VectorLayer) FeatureBlendMode() surface.BlendMode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.featureBlend
}

// SetForceRasterRender forces rendering into an image of its own.
func (l *VectorLayer) SetForceRasterRender(force bool) {
	l.mu.Lock()
	l.forceRaster = force
	l.mu.Unlock()
}

// ForceRasterRender reports whether the layer must render into an image
// of its own.
func (l *VectorLayer) ForceRasterRender() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.forceRaster
}

// SetLabels enables labeling. advancedEffects marks label styles that
// need blend modes, which rules out caching the label image.
func (l *VectorLayer) SetLabels(enabled, advancedEffects bool) {
	l.mu.Lock()
	l.labels = enabled
	l.labelEffects = advancedEffects
	l.mu.Unlock()
}

// LabelsEnabled reports whether the layer is labeled.
func (l *VectorLayer) LabelsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.labels
}

// LabelingRequiresAdvancedEffects reports whether label styles use blend
// modes.
func (l *VectorLayer) LabelingRequiresAdvancedEffects() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.labels && l.labelEffects
}

// MaskLabels declares that labels of rule hide the given symbol layers of
// the target layer.
func (l *VectorLayer) MaskLabels(rule, target string, ids ...mapcompose.SymbolLayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.labelMasks[rule]
	if !ok {
		m = make(map[string]mapcompose.SymbolLayerSet)
		l.labelMasks[rule] = m
	}
	set, ok := m[target]
	if !ok {
		set = mapcompose.NewSymbolLayerSet()
		m[target] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// MaskSymbolLayers declares that this layer's mask symbol layers hide the
// given symbol layers of the target layer.
func (l *VectorLayer) MaskSymbolLayers(target string, ids ...mapcompose.SymbolLayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.symbolMasks[target]
	if !ok {
		set = mapcompose.NewSymbolLayerSet()
		l.symbolMasks[target] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// LabelMasks returns a copy of the label mask declarations.
func (l *VectorLayer) LabelMasks() map[string]map[string]mapcompose.SymbolLayerSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.labels {
		return nil
	}
	out := make(map[string]map[string]mapcompose.SymbolLayerSet, len(l.labelMasks))
	for rule, m := range l.labelMasks {
		cp := make(map[string]mapcompose.SymbolLayerSet, len(m))
		for target, set := range m {
			cp[target] = set.Clone()
		}
		out[rule] = cp
	}
	return out
}

// SymbolLayerMasks returns a copy of the symbol layer mask declarations.
func (l *VectorLayer) SymbolLayerMasks() map[string]mapcompose.SymbolLayerSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]mapcompose.SymbolLayerSet, len(l.symbolMasks))
	for target, set := range l.symbolMasks {
		out[target] = set.Clone()
	}
	return out
}

// RendererCount returns how many renderers the layer has created.
func (l *VectorLayer) RendererCount() int {
	return int(l.renderers.Load())
}

// CreateMapRenderer snapshots the layer for one render pass.
func (l *VectorLayer) CreateMapRenderer(ctx *mapcompose.RenderContext) mapcompose.LayerRenderer {
	l.renderers.Add(1)
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols := l.symbols
	if style, ok := l.styles[ctx.StyleOverride]; ok && ctx.StyleOverride != "" {
		symbols = style
	}
	var filter string
	if ctx.FeatureFilter != nil {
		filter = ctx.FeatureFilter.FilterExpression(l.id)
	}
	return &vectorRenderer{
		layerID:      l.id,
		ctx:          ctx,
		features:     slices.Clone(l.features),
		symbols:      slices.Clone(symbols),
		featureBlend: l.featureBlend,
		labels:       l.labels,
		filter:       parseFilter(filter),
	}
}

type vectorRenderer struct {
	layerID      string
	ctx          *mapcompose.RenderContext
	features     []Feature
	symbols      []SymbolLayer
	featureBlend surface.BlendMode
	labels       bool
	filter       func(*Feature) bool

	mu     sync.Mutex
	errors []string
}

func (r *vectorRenderer) LayerID() string { return r.layerID }

func (r *vectorRenderer) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errors)
}

func (r *vectorRenderer) addError(format string, args ...any) {
	r.mu.Lock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Render draws every feature with every enabled symbol layer, in symbol
// layer order, and registers labels.
func (r *vectorRenderer) Render() bool {
	ctx := r.ctx
	painter := ctx.Painter()
	maskPainter := ctx.MaskPainter()
	m := ctx.MapToPixel

	if painter != nil {
		prev := painter.BlendMode()
		defer painter.SetBlendMode(prev)
		painter.SetBlendMode(r.featureBlend)
	}

	engine := ctx.LabelingEngine
	for i := range r.features {
		if ctx.RenderingStopped() {
			return false
		}
		f := &r.features[i]
		if len(f.Geometry) == 0 || !r.filter(f) || !intersects(f.bounds(), ctx.Extent) {
			continue
		}
		pts, err := r.toMap(f.Geometry)
		if err != nil {
			r.addError("feature %s: %v", f.ID, err)
			continue
		}

		for _, sl := range r.symbols {
			if ctx.IsSymbolLayerDisabled(sl.ID) {
				continue
			}
			target := painter
			if sl.Mask {
				target = maskPainter
			}
			if target == nil {
				continue
			}
			drawGeometry(target, pts, m, sl)
		}

		if engine != nil && r.labels && f.Label != "" {
			engine.RegisterFeature(r.layerID, mapcompose.LabelFeature{
				Text:     f.Label,
				Position: centroid(pts),
				RuleID:   f.LabelRule,
			})
		}
	}
	return true
}

// toMap converts layer coordinates to destination CRS coordinates.
func (r *vectorRenderer) toMap(geom []vec.Vec2) ([]vec.Vec2, error) {
	ct := r.ctx.Transform
	if ct == nil {
		return geom, nil
	}
	out := make([]vec.Vec2, len(geom))
	for i, p := range geom {
		q, err := ct.TransformPoint(p, crs.Forward)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func drawGeometry(p *surface.Painter, pts []vec.Vec2, m matrix.Matrix, sl SymbolLayer) {
	fill := sl.Color
	switch {
	case sl.Mask:
		fill = color.Opaque
	case fill == nil:
		fill = color.Black
	}
	if len(pts) < 3 {
		size := sl.Size
		if size <= 0 {
			size = 6
		}
		c := toPixel(m, pts[0])
		path := surface.NewPath()
		path.Circle(c.X, c.Y, size/2)
		p.Fill(path, fill)
		return
	}
	path := surface.NewPath()
	path.Polygon(pts)
	p.Fill(path.Transform(m), fill)
}

func toPixel(m matrix.Matrix, v vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: m[0]*v.X + m[2]*v.Y + m[4], Y: m[1]*v.X + m[3]*v.Y + m[5]}
}

func centroid(pts []vec.Vec2) vec.Vec2 {
	f := Feature{Geometry: pts}
	return f.anchor()
}

func intersects(a, b rect.Rect) bool {
	return a.LLx <= b.URx && b.LLx <= a.URx && a.LLy <= b.URy && b.LLy <= a.URy
}

// parseFilter turns a filter expression into a predicate. Supported
// expressions are conjunctions of attribute comparisons:
//
//	kind = 'river' AND class != 'minor'
//
// An empty expression accepts every feature.
func parseFilter(expr string) func(*Feature) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return func(*Feature) bool { return true }
	}
	type cond struct {
		key, value string
		negate     bool
	}
	var conds []cond
	for _, part := range splitAnd(expr) {
		negate := false
		k, v, ok := strings.Cut(part, "!=")
		if ok {
			negate = true
		} else if k, v, ok = strings.Cut(part, "="); !ok {
			continue
		}
		conds = append(conds, cond{
			key:    strings.TrimSpace(k),
			value:  strings.Trim(strings.TrimSpace(v), `'"`),
			negate: negate,
		})
	}
	return func(f *Feature) bool {
		for _, c := range conds {
			var v string
			if c.key == "id" || c.key == "$id" {
				v = f.ID
			} else {
				v = f.Attributes[c.key]
			}
			if (v == c.value) == c.negate {
				return false
			}
		}
		return true
	}
}

func splitAnd(expr string) []string {
	fields := strings.Fields(expr)
	var parts []string
	var cur []string
	for _, w := range fields {
		if strings.EqualFold(w, "and") {
			parts = append(parts, strings.Join(cur, " "))
			cur = cur[:0]
			continue
		}
		cur = append(cur, w)
	}
	return append(parts, strings.Join(cur, " "))
}
