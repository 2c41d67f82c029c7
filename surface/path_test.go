// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

func TestPathBuild(t *testing.T) {
	p := NewPath()
	assert.True(t, p.IsEmpty())

	p.LineTo(1, 2) // implicit MoveTo
	p.QuadTo(3, 4, 5, 6)
	p.CubicTo(7, 8, 9, 10, 11, 12)
	p.Close()

	var verbs []Verb
	var n int
	p.walk(func(v Verb, pts []vec.Vec2) {
		verbs = append(verbs, v)
		n += len(pts)
	})
	assert.Equal(t, []Verb{VerbMoveTo, VerbQuadTo, VerbCubicTo, VerbClose}, verbs)
	assert.Equal(t, 6, n)

	p.Clear()
	assert.True(t, p.IsEmpty())

	var nilPath *Path
	assert.True(t, nilPath.IsEmpty())
}

func TestPathBounds(t *testing.T) {
	p := NewPath()
	assert.Equal(t, rect.Rect{}, p.Bounds())

	p.Polygon([]vec.Vec2{{X: 1, Y: 5}, {X: -2, Y: 3}, {X: 4, Y: -1}})
	assert.Equal(t, rect.Rect{LLx: -2, LLy: -1, URx: 4, URy: 5}, p.Bounds())
}

func TestPathTransform(t *testing.T) {
	p := NewPath()
	p.Rectangle(0, 0, 2, 1)

	// Scale by 10 and flip y around 100.
	m := matrix.Matrix{10, 0, 0, -10, 5, 100}
	q := p.Transform(m)
	assert.Equal(t, rect.Rect{LLx: 5, LLy: 90, URx: 25, URy: 100}, q.Bounds())
	assert.Equal(t, rect.Rect{LLx: 0, LLy: 0, URx: 2, URy: 1}, p.Bounds(), "source path unchanged")

	assert.Equal(t, p.Bounds(), p.Transform(matrix.Identity).Bounds())
}
