// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// Flag is a render setting toggled on MapSettings.Flags.
type Flag uint32

const (
	// FlagAntialiasing enables anti-aliased drawing.
	FlagAntialiasing Flag = 1 << iota
	// FlagUseAdvancedEffects enables blend modes and layer opacity.
	FlagUseAdvancedEffects
	// FlagRenderPartialOutput lets a view preview layers while they render.
	FlagRenderPartialOutput
	// FlagDrawLabeling runs the labeling engine.
	FlagDrawLabeling
)

// DefaultFlags are the flags of a new map view.
const DefaultFlags = FlagAntialiasing | FlagUseAdvancedEffects | FlagDrawLabeling

// TransformFactory creates the coordinate transform from a layer CRS to the
// destination CRS.
type TransformFactory func(src, dst crs.CRS) (crs.Transform, error)

// MapSettings describes one map view to render.
type MapSettings struct {
	// Layers lists the layers top to bottom, as a layer panel shows them.
	// Rendering starts with the last entry.
	Layers []Layer

	DestinationCRS crs.CRS

	// Extent is the requested map extent in destination CRS units. The
	// visible extent is widened to match the aspect ratio of OutputSize.
	Extent rect.Rect

	// OutputSize is the image size in pixels.
	OutputSize image.Point

	// Scale is the map scale denominator used for scale-dependent
	// visibility. Zero derives a nominal value from the extent.
	Scale float64

	// ExtentBuffer grows the per-layer render extent, in map units.
	ExtentBuffer float64

	BackgroundColor color.Color
	Flags           Flag

	// StyleOverrides maps layer ids to named style presets that renderers
	// should use instead of the layer's current style.
	StyleOverrides map[string]string

	// LogRenderingTime enables the per-layer timing log after each cycle.
	LogRenderingTime bool

	// MaxImagePixels bounds every image allocation. Zero means
	// surface.DefaultMaxPixels.
	MaxImagePixels int

	// TransformFactory overrides crs.New for layer transforms.
	TransformFactory TransformFactory
}

// TestFlag reports whether f is set.
func (s *MapSettings) TestFlag(f Flag) bool {
	return s.Flags&f != 0
}

// SetFlag sets or clears f.
func (s *MapSettings) SetFlag(f Flag, on bool) {
	if on {
		s.Flags |= f
	} else {
		s.Flags &^= f
	}
}

// Validate reports settings that cannot be rendered.
func (s *MapSettings) Validate() error {
	if s.OutputSize.X <= 0 || s.OutputSize.Y <= 0 {
		return fmt.Errorf("%w: output size %dx%d", ErrInvalidSettings, s.OutputSize.X, s.OutputSize.Y)
	}
	if !(s.Extent.URx > s.Extent.LLx) || !(s.Extent.URy > s.Extent.LLy) {
		return fmt.Errorf("%w: empty extent %v", ErrInvalidSettings, s.Extent)
	}
	if !s.DestinationCRS.IsValid() {
		return fmt.Errorf("%w: destination CRS not set", ErrInvalidSettings)
	}
	if _, err := surface.CheckDimensions(s.OutputSize.X, s.OutputSize.Y, s.maxPixels()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// VisibleExtent returns Extent widened on one axis so that map units per
// pixel are equal horizontally and vertically.
func (s *MapSettings) VisibleExtent() rect.Rect {
	e := s.Extent
	if s.OutputSize.X <= 0 || s.OutputSize.Y <= 0 {
		return e
	}
	w, h := e.URx-e.LLx, e.URy-e.LLy
	ux := w / float64(s.OutputSize.X)
	uy := h / float64(s.OutputSize.Y)
	if ux == uy {
		return e
	}
	cx, cy := (e.LLx+e.URx)/2, (e.LLy+e.URy)/2
	if ux > uy {
		half := ux * float64(s.OutputSize.Y) / 2
		return rect.Rect{LLx: e.LLx, LLy: cy - half, URx: e.URx, URy: cy + half}
	}
	half := uy * float64(s.OutputSize.X) / 2
	return rect.Rect{LLx: cx - half, LLy: e.LLy, URx: cx + half, URy: e.URy}
}

// MapUnitsPerPixel returns the ground resolution of the visible extent.
func (s *MapSettings) MapUnitsPerPixel() float64 {
	if s.OutputSize.X <= 0 {
		return 0
	}
	e := s.VisibleExtent()
	return (e.URx - e.LLx) / float64(s.OutputSize.X)
}

// EffectiveScale returns Scale, or a nominal scale denominator at 96 dpi
// when Scale is zero.
func (s *MapSettings) EffectiveScale() float64 {
	if s.Scale > 0 {
		return s.Scale
	}
	const metersPerInch = 0.0254
	const dpi = 96
	mupp := s.MapUnitsPerPixel()
	if s.DestinationCRS.IsGeographic() {
		mupp *= 2 * math.Pi * 6378137 / 360
	}
	return mupp * dpi / metersPerInch
}

// MapToPixel returns the matrix mapping destination CRS coordinates to
// image pixels, with y growing downwards.
func (s *MapSettings) MapToPixel() matrix.Matrix {
	e := s.VisibleExtent()
	w, h := e.URx-e.LLx, e.URy-e.LLy
	if w <= 0 || h <= 0 {
		return matrix.Identity
	}
	sx := float64(s.OutputSize.X) / w
	sy := float64(s.OutputSize.Y) / h
	return matrix.Matrix{sx, 0, 0, -sy, -e.LLx * sx, e.URy * sy}
}

// LayerTransform returns the transform from the layer CRS to the
// destination CRS, or nil when both are the same.
func (s *MapSettings) LayerTransform(l Layer) (crs.Transform, error) {
	src := l.CRS()
	if !src.IsValid() || src.AuthID == s.DestinationCRS.AuthID {
		return nil, nil
	}
	if s.TransformFactory != nil {
		return s.TransformFactory(src, s.DestinationCRS)
	}
	ct, err := crs.New(src, s.DestinationCRS)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (s *MapSettings) maxPixels() int {
	if s.MaxImagePixels > 0 {
		return s.MaxImagePixels
	}
	return surface.DefaultMaxPixels
}

func (s *MapSettings) background() color.Color {
	if s.BackgroundColor == nil {
		return color.White
	}
	return s.BackgroundColor
}
