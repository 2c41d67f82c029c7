// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/vec"
)

// Painter draws onto a single *image.RGBA.
//
// Every drawing operation is composited with the painter's current blend
// mode and opacity. A closed painter ignores all drawing calls.
//
// Painter is not safe for concurrent use. Each render job owns its painter
// exclusively until cleanup.
type Painter struct {
	img       *image.RGBA
	mode      BlendMode
	opacity   float64
	antialias bool
	active    bool
}

// NewPainter binds a painter to img. The painter starts active with
// source-over composition, full opacity and antialiasing enabled.
func NewPainter(img *image.RGBA) *Painter {
	return &Painter{
		img:       img,
		mode:      BlendSourceOver,
		opacity:   1,
		antialias: true,
		active:    img != nil,
	}
}

// Image returns the image the painter draws onto.
func (p *Painter) Image() *image.RGBA {
	return p.img
}

// Bounds returns the bounds of the target image.
func (p *Painter) Bounds() image.Rectangle {
	if p.img == nil {
		return image.Rectangle{}
	}
	return p.img.Bounds()
}

// SetBlendMode sets the composition mode for subsequent drawing.
func (p *Painter) SetBlendMode(m BlendMode) {
	p.mode = m
}

// BlendMode returns the current composition mode.
func (p *Painter) BlendMode() BlendMode {
	return p.mode
}

// SetOpacity sets the opacity for subsequent drawing, clamped to [0, 1].
func (p *Painter) SetOpacity(opacity float64) {
	if math.IsNaN(opacity) {
		opacity = 1
	}
	p.opacity = math.Max(0, math.Min(1, opacity))
}

// Opacity returns the current opacity.
func (p *Painter) Opacity() float64 {
	return p.opacity
}

// SetAntialiasing enables or disables antialiased path filling.
func (p *Painter) SetAntialiasing(enabled bool) {
	p.antialias = enabled
}

// Antialiasing reports whether path filling is antialiased.
func (p *Painter) Antialiasing() bool {
	return p.antialias
}

// IsActive reports whether the painter accepts drawing calls.
func (p *Painter) IsActive() bool {
	return p != nil && p.active
}

// Close ends painting. The image stays valid and owned by the caller.
func (p *Painter) Close() {
	if p == nil {
		return
	}
	p.active = false
}

// Clear replaces every pixel with c, ignoring blend mode and opacity.
func (p *Painter) Clear(c color.Color) {
	if !p.IsActive() {
		return
	}
	r, g, b, a := premultiplied(c)
	pix := p.img.Pix
	if r == 0 && g == 0 && b == 0 && a == 0 {
		clear(pix)
		return
	}
	bounds := p.img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		i := p.img.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
			i += 4
		}
	}
}

// DrawImage composites src onto the painter's image with src's top-left
// corner at the given point. Only the overlapping area is affected.
func (p *Painter) DrawImage(src *image.RGBA, at image.Point) {
	if !p.IsActive() || src == nil {
		return
	}
	sb := src.Bounds()
	dr := image.Rectangle{Min: at, Max: at.Add(sb.Size())}.Intersect(p.img.Bounds())
	if dr.Empty() {
		return
	}

	blend := blendFuncFor(p.mode)
	op := opacityByte(p.opacity)
	dst := p.img.Pix
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		si := src.PixOffset(sb.Min.X+dr.Min.X-at.X, sb.Min.Y+y-at.Y)
		di := p.img.PixOffset(dr.Min.X, y)
		for x := dr.Min.X; x < dr.Max.X; x++ {
			sr, sg, sbl, sa := src.Pix[si], src.Pix[si+1], src.Pix[si+2], src.Pix[si+3]
			if op != 255 {
				sr, sg, sbl, sa = mulDiv255(sr, op), mulDiv255(sg, op), mulDiv255(sbl, op), mulDiv255(sa, op)
			}
			dst[di], dst[di+1], dst[di+2], dst[di+3] = blend(sr, sg, sbl, sa, dst[di], dst[di+1], dst[di+2], dst[di+3])
			si += 4
			di += 4
		}
	}
}

// FillRect fills r with c.
func (p *Painter) FillRect(r image.Rectangle, c color.Color) {
	if !p.IsActive() {
		return
	}
	r = r.Intersect(p.img.Bounds())
	if r.Empty() {
		return
	}
	cr, cg, cb, ca := premultiplied(c)
	blend := blendFuncFor(p.mode)
	k := opacityByte(p.opacity)
	sr, sg, sb, sa := mulDiv255(cr, k), mulDiv255(cg, k), mulDiv255(cb, k), mulDiv255(ca, k)
	pix := p.img.Pix
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := p.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = blend(sr, sg, sb, sa, pix[i], pix[i+1], pix[i+2], pix[i+3])
			i += 4
		}
	}
}

// Fill fills the interior of path with c using the non-zero winding rule.
// Path coordinates are in pixels relative to the image origin.
func (p *Painter) Fill(path *Path, c color.Color) {
	if !p.IsActive() || path.IsEmpty() {
		return
	}
	b := p.img.Bounds()
	w, h := b.Dx(), b.Dy()

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src
	open := false
	pt := func(v vec.Vec2) (float32, float32) {
		return float32(v.X - float64(b.Min.X)), float32(v.Y - float64(b.Min.Y))
	}
	path.walk(func(v Verb, pts []vec.Vec2) {
		switch v {
		case VerbMoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(pt(pts[0]))
			open = true
		case VerbLineTo:
			z.LineTo(pt(pts[0]))
		case VerbQuadTo:
			bx, by := pt(pts[0])
			cx, cy := pt(pts[1])
			z.QuadTo(bx, by, cx, cy)
		case VerbCubicTo:
			bx, by := pt(pts[0])
			cx, cy := pt(pts[1])
			dx, dy := pt(pts[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		case VerbClose:
			z.ClosePath()
			open = false
		}
	})
	if open {
		z.ClosePath()
	}

	coverage := image.NewAlpha(b)
	z.Draw(coverage, b, image.Opaque, image.Point{})
	p.blendCoverage(coverage, c)
}

// FillMask fills c weighted by the coverage in mask. The mask bounds are
// in image coordinates; only the overlapping area is affected.
func (p *Painter) FillMask(mask *image.Alpha, c color.Color) {
	if !p.IsActive() || mask == nil {
		return
	}
	p.blendCoverage(mask, c)
}

// blendCoverage composites c onto the image weighted by coverage, over the
// intersection of the coverage bounds and the image bounds.
func (p *Painter) blendCoverage(coverage *image.Alpha, c color.Color) {
	r := coverage.Bounds().Intersect(p.img.Bounds())
	if r.Empty() {
		return
	}
	cr, cg, cb, ca := premultiplied(c)
	blend := blendFuncFor(p.mode)
	op := opacityByte(p.opacity)
	pix := p.img.Pix
	for y := r.Min.Y; y < r.Max.Y; y++ {
		ci := coverage.PixOffset(r.Min.X, y)
		di := p.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			cov := coverage.Pix[ci]
			if !p.antialias {
				if cov >= 128 {
					cov = 255
				} else {
					cov = 0
				}
			}
			if cov != 0 {
				k := mulDiv255(cov, op)
				pix[di], pix[di+1], pix[di+2], pix[di+3] = blend(
					mulDiv255(cr, k), mulDiv255(cg, k), mulDiv255(cb, k), mulDiv255(ca, k),
					pix[di], pix[di+1], pix[di+2], pix[di+3])
			}
			ci++
			di += 4
		}
	}
}

// premultiplied converts any color to premultiplied 8-bit channels.
func premultiplied(c color.Color) (r, g, b, a byte) {
	if c == nil {
		return 0, 0, 0, 0
	}
	cr, cg, cb, ca := c.RGBA()
	//nolint:gosec // G115: safe - x>>8 is always in [0, 255]
	return uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8), uint8(ca >> 8)
}

func opacityByte(opacity float64) byte {
	return byte(math.Round(opacity * 255))
}
