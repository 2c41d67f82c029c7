// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/mapcompose/crs"
)

// splitCoord is the longitude where geographic extents wrap.
const splitCoord = 180.0

// WorldExtent is the whole world in geographic coordinates.
var WorldExtent = rect.Rect{LLx: -splitCoord, LLy: -90, URx: splitCoord, URy: 90}

// UnboundedExtent is the rectangle used when an extent cannot be limited.
var UnboundedExtent = rect.Rect{
	LLx: -math.MaxFloat64, LLy: -math.MaxFloat64,
	URx: math.MaxFloat64, URy: math.MaxFloat64,
}

// ReprojectToLayerExtent converts extent from destination CRS coordinates
// to the layer CRS of ct.
//
// The returned extent may be wider than the exact reprojection: geographic
// layers fall back to the whole world when a projected view does not
// round-trip or when the view crosses the antimeridian. Projected layers under a geographic view that reaches the
// world bounds get UnboundedExtent. r2 is the second half of a split
// extent; it is the zero rectangle unless the transform failed, in which
// case both results are UnboundedExtent.
//
// Transform errors are logged and never returned.
func ReprojectToLayerExtent(l Layer, ct crs.Transform, extent rect.Rect) (layerExtent, r2 rect.Rect) {
	out, err := reprojectToLayerExtent(l, ct, extent)
	if err != nil {
		Logger().Debug("extent reprojection failed, rendering unbounded",
			"layer", l.ID(), "extent", extent, "err", err)
		return UnboundedExtent, UnboundedExtent
	}
	return out, rect.Rect{}
}

func reprojectToLayerExtent(l Layer, ct crs.Transform, extent rect.Rect) (rect.Rect, error) {
	src := l.CRS()
	if !src.IsGeographic() {
		// Periodic longitudes would fold a view wider than the world onto
		// a wrong interval.
		if ct.Destination().IsGeographic() &&
			(extent.LLx <= -splitCoord || extent.URx >= splitCoord || extent.LLy <= -90 || extent.URy >= 90) {
			return UnboundedExtent, nil
		}
		return ct.TransformBoundingBox(extent, crs.Reverse)
	}

	if l.Type() == LayerVector && !ct.Destination().IsGeographic() {
		extent1, err := ct.TransformBoundingBox(extent, crs.Reverse)
		if err != nil {
			return rect.Rect{}, err
		}
		extent2, err := ct.TransformBoundingBox(extent1, crs.Forward)
		if err != nil {
			return rect.Rect{}, err
		}
		w, h := extent.URx-extent.LLx, extent.URy-extent.LLy
		if near(extent2.LLx, extent.LLx, w*0.2) &&
			near(extent2.URx, extent.URx, w*0.2) &&
			near(extent2.LLy, extent.LLy, h*0.2) &&
			near(extent2.URy, extent.URy, h*0.2) {
			return extent1, nil
		}
		return WorldExtent, nil
	}

	ll, err := ct.TransformPoint(vec.Vec2{X: extent.LLx, Y: extent.LLy}, crs.Reverse)
	if err != nil {
		return rect.Rect{}, err
	}
	ur, err := ct.TransformPoint(vec.Vec2{X: extent.URx, Y: extent.URy}, crs.Reverse)
	if err != nil {
		return rect.Rect{}, err
	}
	if ll.X > ur.X {
		// The view crosses the antimeridian; render the whole world in one
		// go instead of two split extents.
		return WorldExtent, nil
	}
	return ct.TransformBoundingBox(extent, crs.Reverse)
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// isFiniteRect reports whether all coordinates of r are finite.
func isFiniteRect(r rect.Rect) bool {
	for _, v := range [4]float64{r.LLx, r.LLy, r.URx, r.URy} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// growRect grows r by d on every side, leaving unbounded coordinates alone.
func growRect(r rect.Rect, d float64) rect.Rect {
	if d == 0 || r == UnboundedExtent {
		return r
	}
	return rect.Rect{LLx: r.LLx - d, LLy: r.LLy - d, URx: r.URx + d, URy: r.URy + d}
}
