// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package crs

import (
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Transform errors.
var (
	// ErrTransformFailed is returned when a coordinate cannot be projected,
	// e.g. a pole in Web Mercator or a latitude outside [-90, 90].
	ErrTransformFailed = errors.New("crs: transform failed")

	// ErrUnsupportedTransform is returned by New for CRS pairs without a
	// built-in projection.
	ErrUnsupportedTransform = errors.New("crs: unsupported transform")
)

// Direction selects which way a transform is applied.
type Direction int

const (
	// Forward transforms from the source CRS to the destination CRS.
	Forward Direction = iota
	// Reverse transforms from the destination CRS back to the source CRS.
	Reverse
)

// String returns "forward" or "reverse".
func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Transform converts coordinates between a source and a destination CRS.
//
// Implementations must be safe for concurrent use; render jobs share one
// transform per layer across goroutines.
type Transform interface {
	Source() CRS
	Destination() CRS
	IsValid() bool
	TransformPoint(p vec.Vec2, dir Direction) (vec.Vec2, error)
	TransformBoundingBox(r rect.Rect, dir Direction) (rect.Rect, error)
}

// earthRadius is the WGS 84 semi-major axis used by spherical Web Mercator.
const earthRadius = 6378137.0

// bboxEdgePoints is the number of samples taken along each bounding box edge.
const bboxEdgePoints = 21

// CoordinateTransform is the built-in Transform.
type CoordinateTransform struct {
	src, dst CRS
	identity bool
}

// New creates a transform from src to dst.
func New(src, dst CRS) (*CoordinateTransform, error) {
	if !src.IsValid() || !dst.IsValid() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedTransform, src, dst)
	}
	for _, c := range []CRS{src, dst} {
		if !c.Geographic && c.AuthID != EPSG3857.AuthID {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedTransform, src, dst)
		}
	}
	return &CoordinateTransform{
		src:      src,
		dst:      dst,
		identity: src == dst,
	}, nil
}

// Source returns the source CRS.
func (t *CoordinateTransform) Source() CRS { return t.src }

// Destination returns the destination CRS.
func (t *CoordinateTransform) Destination() CRS { return t.dst }

// IsValid reports whether both ends of the transform are set.
func (t *CoordinateTransform) IsValid() bool {
	return t != nil && t.src.IsValid() && t.dst.IsValid()
}

// IsShortCircuited reports whether source and destination are the same CRS.
func (t *CoordinateTransform) IsShortCircuited() bool {
	return t.identity
}

// TransformPoint transforms a single point.
func (t *CoordinateTransform) TransformPoint(p vec.Vec2, dir Direction) (vec.Vec2, error) {
	if !isFinite(p.X) || !isFinite(p.Y) {
		return vec.Vec2{}, fmt.Errorf("%w: non-finite input (%g, %g)", ErrTransformFailed, p.X, p.Y)
	}
	if t.identity {
		return p, nil
	}
	from, to := t.src, t.dst
	if dir == Reverse {
		from, to = to, from
	}
	ll, err := toLonLat(from, p)
	if err != nil {
		return vec.Vec2{}, err
	}
	return fromLonLat(to, ll)
}

// TransformBoundingBox transforms a rectangle by sampling points along its
// edges and returning the bounds of the transformed samples. Samples that
// fail are skipped; an error is returned only when every sample fails.
func (t *CoordinateTransform) TransformBoundingBox(r rect.Rect, dir Direction) (rect.Rect, error) {
	if t.identity {
		return r, nil
	}

	out := rect.Rect{
		LLx: math.Inf(1), LLy: math.Inf(1),
		URx: math.Inf(-1), URy: math.Inf(-1),
	}
	var lastErr error
	ok := 0

	dx := (r.URx - r.LLx) / (bboxEdgePoints - 1)
	dy := (r.URy - r.LLy) / (bboxEdgePoints - 1)
	for i := 0; i < bboxEdgePoints; i++ {
		x := r.LLx + float64(i)*dx
		y := r.LLy + float64(i)*dy
		samples := [4]vec.Vec2{
			{X: x, Y: r.LLy},
			{X: x, Y: r.URy},
			{X: r.LLx, Y: y},
			{X: r.URx, Y: y},
		}
		for _, s := range samples {
			p, err := t.TransformPoint(s, dir)
			if err != nil {
				lastErr = err
				continue
			}
			ok++
			out.LLx = math.Min(out.LLx, p.X)
			out.LLy = math.Min(out.LLy, p.Y)
			out.URx = math.Max(out.URx, p.X)
			out.URy = math.Max(out.URy, p.Y)
		}
	}
	if ok == 0 {
		return rect.Rect{}, fmt.Errorf("could not transform bounding box: %w", lastErr)
	}
	return out, nil
}

// toLonLat converts a coordinate in c to WGS 84 longitude/latitude.
func toLonLat(c CRS, p vec.Vec2) (vec.Vec2, error) {
	if c.Geographic {
		if p.Y < -90 || p.Y > 90 {
			return vec.Vec2{}, fmt.Errorf("%w: latitude %g out of range", ErrTransformFailed, p.Y)
		}
		return vec.Vec2{X: normalizeLon(p.X + c.CentralMeridian), Y: p.Y}, nil
	}
	lon := p.X / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p.Y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return vec.Vec2{X: normalizeLon(lon), Y: lat}, nil
}

// fromLonLat converts WGS 84 longitude/latitude to a coordinate in c.
func fromLonLat(c CRS, ll vec.Vec2) (vec.Vec2, error) {
	if c.Geographic {
		return vec.Vec2{X: normalizeLon(ll.X - c.CentralMeridian), Y: ll.Y}, nil
	}
	if ll.Y <= -90 || ll.Y >= 90 {
		return vec.Vec2{}, fmt.Errorf("%w: latitude %g has no mercator projection", ErrTransformFailed, ll.Y)
	}
	x := earthRadius * ll.X * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+ll.Y*math.Pi/360))
	return vec.Vec2{X: x, Y: y}, nil
}

// normalizeLon wraps a longitude into [-180, 180].
func normalizeLon(lon float64) float64 {
	return math.Remainder(lon, 360)
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
