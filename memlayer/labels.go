// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memlayer

import (
	"cmp"
	"image"
	"image/color"
	"slices"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/surface"
)

// LabelOption configures a LabelEngine.
type LabelOption func(*LabelEngine)

// WithLabelColor sets the text color. The default is black.
func WithLabelColor(c color.Color) LabelOption {
	return func(e *LabelEngine) { e.color = c }
}

// WithUppercase renders label text in upper case.
func WithUppercase() LabelOption {
	return func(e *LabelEngine) {
		e.caser = cases.Upper(language.Und)
		e.upper = true
	}
}

// WithFontSize sets the size in pixels of the shaped label font. The
// default is 12.
func WithFontSize(size float64) LabelOption {
	return func(e *LabelEngine) {
		if size > 0 {
			e.shaper = defaultShaper(size)
		}
	}
}

// WithBitmapFont draws labels with the fixed 7x13 bitmap face instead of
// shaped Go Regular.
func WithBitmapFont() LabelOption {
	return func(e *LabelEngine) { e.shaper = nil }
}

// WithMaskMargin grows label masks by n pixels on every side.
func WithMaskMargin(n int) LabelOption {
	return func(e *LabelEngine) { e.maskMargin = max(n, 0) }
}

// LabelEngine places labels set in Go Regular, shaped with HarfBuzz.
//
// Labels are centered on their anchor and placed greedily: a label whose box
// overlaps an already placed label is dropped. Each placed label also paints
// its box into the label mask of its layer and rule when one exists.
//
// An engine keeps the features of one render cycle; use a new engine per
// mapcompose.Job.
type LabelEngine struct {
	face       font.Face
	shaper     *labelShaper
	color      color.Color
	caser      cases.Caser
	upper      bool
	maskMargin int

	mu       sync.Mutex
	used     []string
	usedSet  map[string]bool
	features map[string][]mapcompose.LabelFeature
	placed   []image.Rectangle
}

var _ mapcompose.LabelingEngine = (*LabelEngine)(nil)

// NewLabelEngine creates an engine without registered features.
func NewLabelEngine(opts ...LabelOption) *LabelEngine {
	e := &LabelEngine{
		face:       basicfont.Face7x13,
		shaper:     defaultShaper(defaultFontSize),
		color:      color.Black,
		maskMargin: 2,
		usedSet:    make(map[string]bool),
		features:   make(map[string][]mapcompose.LabelFeature),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WillUseLayer records l as labeled when it has labels enabled.
func (e *LabelEngine) WillUseLayer(l mapcompose.VectorLayer) bool {
	if !l.LabelsEnabled() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.use(l.ID())
	return true
}

func (e *LabelEngine) use(layerID string) {
	if !e.usedSet[layerID] {
		e.usedSet[layerID] = true
		e.used = append(e.used, layerID)
	}
}

// RegisterFeature adds a labelable feature. It is safe for concurrent use.
func (e *LabelEngine) RegisterFeature(layerID string, f mapcompose.LabelFeature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.use(layerID)
	e.features[layerID] = append(e.features[layerID], f)
}

// ParticipatingLayers returns the labeled layers in first-use order.
func (e *LabelEngine) ParticipatingLayers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.used)
}

// Placed returns the pixel boxes of the labels drawn by the last Run.
func (e *LabelEngine) Placed() []image.Rectangle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.placed)
}

// Run places and draws all registered labels.
func (e *LabelEngine) Run(ctx *mapcompose.RenderContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := ctx.Painter()
	ids := ctx.MaskIDProvider()
	e.placed = e.placed[:0]

	for _, layerID := range e.used {
		feats := slices.Clone(e.features[layerID])
		// Registration order depends on worker scheduling.
		slices.SortFunc(feats, func(a, b mapcompose.LabelFeature) int {
			return cmp.Or(
				cmp.Compare(b.Position.Y, a.Position.Y),
				cmp.Compare(a.Position.X, b.Position.X),
				cmp.Compare(a.Text, b.Text),
				cmp.Compare(a.RuleID, b.RuleID),
			)
		})

		for _, f := range feats {
			if ctx.RenderingStopped() {
				return
			}
			text := f.Text
			if e.upper {
				text = e.caser.String(text)
			}
			box, dot := e.layout(ctx, f, text)
			if e.collides(box) || box.Intersect(image.Rect(0, 0, ctx.OutputSize.X, ctx.OutputSize.Y)).Empty() {
				continue
			}
			e.placed = append(e.placed, box)
			e.drawText(p, box, dot, text)

			if ids == nil {
				continue
			}
			if mp := ctx.LabelMaskPainter(ids.MaskID(layerID, f.RuleID)); mp != nil {
				mp.FillRect(box.Inset(-e.maskMargin), color.Opaque)
			}
		}
	}
}

// layout returns the label box in pixels and the text origin.
func (e *LabelEngine) layout(ctx *mapcompose.RenderContext, f mapcompose.LabelFeature, text string) (image.Rectangle, fixed.Point26_6) {
	m := ctx.MapToPixel
	x := m[0]*f.Position.X + m[2]*f.Position.Y + m[4]
	y := m[1]*f.Position.X + m[3]*f.Position.Y + m[5]

	face := e.face
	var width int
	if e.shaper != nil {
		face = e.shaper.face
		_, adv := e.shaper.shape(text)
		width = adv.Ceil()
	} else {
		width = font.MeasureString(face, text).Ceil()
	}
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

	left := int(x) - width/2
	baseline := int(y) + (ascent-descent)/2
	box := image.Rect(left, baseline-ascent, left+width, baseline+descent)
	return box, fixed.P(left, baseline)
}

func (e *LabelEngine) collides(box image.Rectangle) bool {
	for _, r := range e.placed {
		if r.Overlaps(box) {
			return true
		}
	}
	return false
}

// drawText rasterizes text into a coverage mask and fills it through the
// painter, so the painter's blend mode applies.
func (e *LabelEngine) drawText(p *surface.Painter, box image.Rectangle, dot fixed.Point26_6, text string) {
	if p == nil {
		return
	}
	mask := image.NewAlpha(box)
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: e.face,
		Dot:  dot,
	}
	if e.shaper != nil {
		glyphs, _ := e.shaper.shape(text)
		e.shaper.draw(d, glyphs)
	} else {
		d.DrawString(text)
	}
	p.FillMask(mask, e.color)
}
