// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memlayer

import (
	"image"
	"math"
	"sync/atomic"

	"golang.org/x/image/draw"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/crs"
)

// RasterLayer is an image georeferenced to an extent in its CRS.
type RasterLayer struct {
	base

	img    image.Image
	extent rect.Rect

	renderers atomic.Int64
}

var _ mapcompose.Layer = (*RasterLayer)(nil)

// NewRasterLayer creates a raster layer showing img over extent.
func NewRasterLayer(id string, c crs.CRS, img image.Image, extent rect.Rect, opts ...Option) *RasterLayer {
	l := &RasterLayer{img: img, extent: extent}
	l.init(id, c, opts)
	return l
}

// Type returns mapcompose.LayerRaster.
func (l *RasterLayer) Type() mapcompose.LayerType { return mapcompose.LayerRaster }

// IsValid reports whether the layer has an image to show.
func (l *RasterLayer) IsValid() bool {
	return l.base.IsValid() && l.img != nil && !l.img.Bounds().Empty()
}

// RendererCount returns how many renderers the layer has created.
func (l *RasterLayer) RendererCount() int {
	return int(l.renderers.Load())
}

// CreateMapRenderer creates a renderer for one pass.
func (l *RasterLayer) CreateMapRenderer(ctx *mapcompose.RenderContext) mapcompose.LayerRenderer {
	l.renderers.Add(1)
	return &rasterRenderer{
		layerID: l.id,
		ctx:     ctx,
		img:     l.img,
		extent:  l.extent,
		opacity: l.Opacity(),
	}
}

type rasterRenderer struct {
	layerID string
	ctx     *mapcompose.RenderContext
	img     image.Image
	extent  rect.Rect
	opacity float64
	errors  []string
}

func (r *rasterRenderer) LayerID() string  { return r.layerID }
func (r *rasterRenderer) Errors() []string { return r.errors }

// Render resamples the image into its pixel footprint on the output and
// draws it with the layer opacity. Raster opacity is applied here rather
// than at composition.
func (r *rasterRenderer) Render() bool {
	ctx := r.ctx
	p := ctx.Painter()
	if p == nil || ctx.RenderingStopped() {
		return !ctx.RenderingStopped()
	}
	if !intersects(r.extent, ctx.Extent) {
		return true
	}

	ll := vec.Vec2{X: r.extent.LLx, Y: r.extent.LLy}
	ur := vec.Vec2{X: r.extent.URx, Y: r.extent.URy}
	if ct := ctx.Transform; ct != nil {
		var err error
		if ll, err = ct.TransformPoint(ll, crs.Forward); err != nil {
			r.errors = append(r.errors, "raster extent: "+err.Error())
			return true
		}
		if ur, err = ct.TransformPoint(ur, crs.Forward); err != nil {
			r.errors = append(r.errors, "raster extent: "+err.Error())
			return true
		}
	}
	a := toPixel(ctx.MapToPixel, ll)
	b := toPixel(ctx.MapToPixel, ur)
	dr := image.Rect(
		int(math.Round(min(a.X, b.X))), int(math.Round(min(a.Y, b.Y))),
		int(math.Round(max(a.X, b.X))), int(math.Round(max(a.Y, b.Y))),
	)
	if dr.Empty() || dr.Intersect(p.Bounds()).Empty() {
		return true
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), r.img, r.img.Bounds(), draw.Src, nil)
	if ctx.RenderingStopped() {
		return false
	}

	prev := p.Opacity()
	p.SetOpacity(prev * r.opacity)
	p.DrawImage(scaled, dr.Min)
	p.SetOpacity(prev)
	return true
}
