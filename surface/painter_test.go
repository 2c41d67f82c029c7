// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPainter(t *testing.T, w, h int) *Painter {
	t.Helper()
	img, err := NewImage(w, h, 0)
	require.NoError(t, err)
	return NewPainter(img)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestPainterDefaults(t *testing.T) {
	p := newTestPainter(t, 2, 2)
	assert.True(t, p.IsActive())
	assert.Equal(t, BlendSourceOver, p.BlendMode())
	assert.Equal(t, 1.0, p.Opacity())
	assert.True(t, p.Antialiasing())

	p.SetOpacity(2)
	assert.Equal(t, 1.0, p.Opacity())
	p.SetOpacity(-1)
	assert.Equal(t, 0.0, p.Opacity())

	assert.False(t, NewPainter(nil).IsActive())
}

func TestPainterClear(t *testing.T) {
	p := newTestPainter(t, 3, 2)
	p.Clear(color.RGBA{10, 20, 30, 255})
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, color.RGBA{10, 20, 30, 255}, p.Image().RGBAAt(x, y))
		}
	}
	p.Clear(color.Transparent)
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(1, 1))
}

func TestPainterClosedIgnoresDrawing(t *testing.T) {
	p := newTestPainter(t, 2, 2)
	p.Close()
	assert.False(t, p.IsActive())
	p.Clear(color.White)
	p.FillRect(image.Rect(0, 0, 2, 2), color.White)
	p.DrawImage(solid(2, 2, color.RGBA{255, 0, 0, 255}), image.Point{})
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(0, 0))
}

func TestPainterDrawImageOpacity(t *testing.T) {
	p := newTestPainter(t, 2, 2)
	p.SetOpacity(0.5)
	p.DrawImage(solid(2, 2, color.RGBA{255, 0, 0, 255}), image.Point{})
	assert.Equal(t, color.RGBA{128, 0, 0, 128}, p.Image().RGBAAt(0, 0))
}

func TestPainterDrawImageOffset(t *testing.T) {
	p := newTestPainter(t, 4, 4)
	p.DrawImage(solid(3, 3, color.RGBA{0, 255, 0, 255}), image.Pt(2, 2))

	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, p.Image().RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, p.Image().RGBAAt(3, 3))

	// Entirely outside.
	p.DrawImage(solid(2, 2, color.RGBA{255, 0, 0, 255}), image.Pt(10, 10))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, p.Image().RGBAAt(3, 3))
}

func TestPainterDrawImageMultiply(t *testing.T) {
	p := newTestPainter(t, 1, 1)
	p.Clear(color.RGBA{200, 200, 200, 255})
	p.SetBlendMode(BlendMultiply)
	p.DrawImage(solid(1, 1, color.RGBA{255, 128, 0, 255}), image.Point{})
	assert.Equal(t, color.RGBA{200, 100, 0, 255}, p.Image().RGBAAt(0, 0))
}

func TestPainterFillRect(t *testing.T) {
	p := newTestPainter(t, 4, 4)
	p.FillRect(image.Rect(1, 1, 3, 3), color.RGBA{0, 0, 255, 255})
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, p.Image().RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, p.Image().RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(3, 3))
}

func TestPainterFillPath(t *testing.T) {
	p := newTestPainter(t, 10, 10)
	path := NewPath()
	path.Rectangle(2, 2, 6, 6)
	p.Fill(path, color.RGBA{255, 255, 255, 255})

	assert.Equal(t, uint8(255), p.Image().RGBAAt(5, 5).A)
	assert.Equal(t, uint8(0), p.Image().RGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), p.Image().RGBAAt(9, 9).A)
}

func TestPainterFillAliased(t *testing.T) {
	p := newTestPainter(t, 10, 10)
	p.SetAntialiasing(false)
	path := NewPath()
	path.Circle(5, 5, 3.3)
	p.Fill(path, color.RGBA{0, 0, 0, 255})

	for i := 3; i < len(p.Image().Pix); i += 4 {
		a := p.Image().Pix[i]
		assert.True(t, a == 0 || a == 255, "aliased fill produced alpha %d", a)
	}
	assert.Equal(t, uint8(255), p.Image().RGBAAt(5, 5).A)
}

func TestMaskSplitRecombines(t *testing.T) {
	// Erasing the masked area from one image and keeping only the masked
	// area of another, then drawing one over the other, must cover every
	// pixel exactly once.
	const w, h = 8, 8
	first := solid(w, h, color.RGBA{255, 0, 0, 255})
	second := solid(w, h, color.RGBA{255, 0, 0, 255})
	mask := image.NewRGBA(image.Rect(0, 0, w, h))
	mp := NewPainter(mask)
	mp.FillRect(image.Rect(2, 0, 5, 8), color.Black)

	sp := NewPainter(second)
	sp.SetBlendMode(BlendDestinationIn)
	sp.DrawImage(mask, image.Point{})

	fp := NewPainter(first)
	fp.SetBlendMode(BlendDestinationOut)
	fp.DrawImage(mask, image.Point{})
	assert.Equal(t, color.RGBA{}, first.RGBAAt(3, 3))
	fp.SetBlendMode(BlendSourceOver)
	fp.DrawImage(second, image.Point{})

	assert.Equal(t, solid(w, h, color.RGBA{255, 0, 0, 255}).Pix, first.Pix)
}

func TestPainterFillMask(t *testing.T) {
	p := newTestPainter(t, 4, 4)
	mask := image.NewAlpha(image.Rect(2, 2, 6, 6))
	mask.SetAlpha(2, 2, color.Alpha{A: 255})
	mask.SetAlpha(3, 3, color.Alpha{A: 128})

	p.FillMask(mask, color.RGBA{0, 0, 255, 255})

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, p.Image().RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{0, 0, 128, 128}, p.Image().RGBAAt(3, 3))
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{}, p.Image().RGBAAt(3, 2))

	p.SetAntialiasing(false)
	p.Clear(color.Transparent)
	p.FillMask(mask, color.RGBA{0, 0, 255, 255})
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, p.Image().RGBAAt(3, 3), "coverage is thresholded without antialiasing")
}
