// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Verb is a path construction command.
type Verb uint8

// Path verbs.
const (
	VerbMoveTo Verb = iota
	VerbLineTo
	VerbQuadTo
	VerbCubicTo
	VerbClose
)

// pointsPerVerb is the number of points consumed by each verb.
var pointsPerVerb = [...]int{
	VerbMoveTo:  1,
	VerbLineTo:  1,
	VerbQuadTo:  2,
	VerbCubicTo: 3,
	VerbClose:   0,
}

// Path represents a vector path in device pixel coordinates.
//
// Example:
//
//	p := surface.NewPath()
//	p.MoveTo(100, 100)
//	p.LineTo(200, 100)
//	p.LineTo(150, 200)
//	p.Close()
type Path struct {
	verbs  []Verb
	points []vec.Vec2
	start  vec.Vec2
	cur    vec.Vec2
}

// NewPath creates a new empty path.
func NewPath() *Path {
	return &Path{
		verbs:  make([]Verb, 0, 16),
		points: make([]vec.Vec2, 0, 32),
	}
}

// MoveTo starts a new subpath at the given point.
func (p *Path) MoveTo(x, y float64) {
	v := vec.Vec2{X: x, Y: y}
	p.verbs = append(p.verbs, VerbMoveTo)
	p.points = append(p.points, v)
	p.start, p.cur = v, v
}

// LineTo adds a line from the current point to (x, y).
func (p *Path) LineTo(x, y float64) {
	if len(p.verbs) == 0 {
		p.MoveTo(x, y)
		return
	}
	v := vec.Vec2{X: x, Y: y}
	p.verbs = append(p.verbs, VerbLineTo)
	p.points = append(p.points, v)
	p.cur = v
}

// QuadTo adds a quadratic Bezier curve from the current point.
// (cx, cy) is the control point, (x, y) is the endpoint.
func (p *Path) QuadTo(cx, cy, x, y float64) {
	if len(p.verbs) == 0 {
		p.MoveTo(cx, cy)
	}
	v := vec.Vec2{X: x, Y: y}
	p.verbs = append(p.verbs, VerbQuadTo)
	p.points = append(p.points, vec.Vec2{X: cx, Y: cy}, v)
	p.cur = v
}

// CubicTo adds a cubic Bezier curve from the current point.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	if len(p.verbs) == 0 {
		p.MoveTo(c1x, c1y)
	}
	v := vec.Vec2{X: x, Y: y}
	p.verbs = append(p.verbs, VerbCubicTo)
	p.points = append(p.points, vec.Vec2{X: c1x, Y: c1y}, vec.Vec2{X: c2x, Y: c2y}, v)
	p.cur = v
}

// Close closes the current subpath by connecting to the start point.
func (p *Path) Close() {
	if len(p.verbs) == 0 {
		return
	}
	p.verbs = append(p.verbs, VerbClose)
	p.cur = p.start
}

// Rectangle adds a closed axis-aligned rectangle.
func (p *Path) Rectangle(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// Circle adds a closed circle approximated by four cubic segments.
func (p *Path) Circle(cx, cy, r float64) {
	const k = 0.5522847498307936 // 4/3 * (sqrt(2) - 1)
	d := r * k
	p.MoveTo(cx+r, cy)
	p.CubicTo(cx+r, cy+d, cx+d, cy+r, cx, cy+r)
	p.CubicTo(cx-d, cy+r, cx-r, cy+d, cx-r, cy)
	p.CubicTo(cx-r, cy-d, cx-d, cy-r, cx, cy-r)
	p.CubicTo(cx+d, cy-r, cx+r, cy-d, cx+r, cy)
	p.Close()
}

// Polygon adds a closed polygon through the given points.
func (p *Path) Polygon(pts []vec.Vec2) {
	if len(pts) == 0 {
		return
	}
	p.MoveTo(pts[0].X, pts[0].Y)
	for _, v := range pts[1:] {
		p.LineTo(v.X, v.Y)
	}
	p.Close()
}

// Clear removes all elements from the path.
func (p *Path) Clear() {
	p.verbs = p.verbs[:0]
	p.points = p.points[:0]
	p.start, p.cur = vec.Vec2{}, vec.Vec2{}
}

// IsEmpty returns true if the path has no elements.
func (p *Path) IsEmpty() bool {
	return p == nil || len(p.verbs) == 0
}

// Transform returns a copy of the path with every point mapped through m.
func (p *Path) Transform(m matrix.Matrix) *Path {
	out := &Path{
		verbs:  append([]Verb(nil), p.verbs...),
		points: make([]vec.Vec2, len(p.points)),
		start:  apply(m, p.start),
		cur:    apply(m, p.cur),
	}
	for i, v := range p.points {
		out.points[i] = apply(m, v)
	}
	return out
}

// Bounds returns the bounding box of all path points, including control
// points. The zero rectangle is returned for an empty path.
func (p *Path) Bounds() rect.Rect {
	if len(p.points) == 0 {
		return rect.Rect{}
	}
	r := rect.Rect{
		LLx: math.Inf(1), LLy: math.Inf(1),
		URx: math.Inf(-1), URy: math.Inf(-1),
	}
	for _, v := range p.points {
		r.LLx = math.Min(r.LLx, v.X)
		r.LLy = math.Min(r.LLy, v.Y)
		r.URx = math.Max(r.URx, v.X)
		r.URy = math.Max(r.URy, v.Y)
	}
	return r
}

// walk calls fn for every verb with the points it consumes.
func (p *Path) walk(fn func(v Verb, pts []vec.Vec2)) {
	i := 0
	for _, v := range p.verbs {
		n := pointsPerVerb[v]
		fn(v, p.points[i:i+n])
		i += n
	}
}

// apply maps v through the affine matrix m.
func apply(m matrix.Matrix, v vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m[0]*v.X + m[2]*v.Y + m[4],
		Y: m[1]*v.X + m[3]*v.Y + m[5],
	}
}
