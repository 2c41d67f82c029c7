// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mapcompose

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/rect"

	"github.com/gogpu/mapcompose/crs"
)

const metresPerDegree = 6378137 * math.Pi / 180

func transform(t *testing.T, src, dst crs.CRS) crs.Transform {
	t.Helper()
	ct, err := crs.New(src, dst)
	require.NoError(t, err)
	return ct
}

func TestReprojectAntimeridian(t *testing.T) {
	l := newFakeLayer("world")
	l.crs = crs.EPSG4326

	extent := rect.Rect{LLx: -10, LLy: -90, URx: 10, URy: 90}
	got, r2 := ReprojectToLayerExtent(l, transform(t, crs.EPSG4326, crs.Pacific4326), extent)

	assert.Equal(t, rect.Rect{LLx: -180, LLy: -90, URx: 180, URy: 90}, got)
	assert.Equal(t, rect.Rect{}, r2)
}

func TestReprojectAntimeridianPartialLatitude(t *testing.T) {
	tests := []struct {
		name   string
		typ    LayerType
		extent rect.Rect
	}{
		{"vector", LayerVector, rect.Rect{LLx: -10, LLy: -20, URx: 10, URy: 30}},
		{"raster", LayerRaster, rect.Rect{LLx: -10, LLy: -20, URx: 10, URy: 30}},
		{"narrow band", LayerVector, rect.Rect{LLx: -1, LLy: 45, URx: 1, URy: 46}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLayer("world")
			l.typ = tt.typ
			l.crs = crs.EPSG4326

			got, r2 := ReprojectToLayerExtent(l, transform(t, crs.EPSG4326, crs.Pacific4326), tt.extent)
			assert.Equal(t, WorldExtent, got, "latitudes widen along with longitudes")
			assert.Equal(t, rect.Rect{}, r2)
		})
	}
}

func TestReprojectGeographicNoCrossing(t *testing.T) {
	l := newFakeLayer("world")
	l.crs = crs.EPSG4326

	got, _ := ReprojectToLayerExtent(l, transform(t, crs.EPSG4326, crs.Pacific4326),
		rect.Rect{LLx: 10, LLy: -20, URx: 30, URy: 30})
	assert.InDelta(t, -170, got.LLx, 1e-9)
	assert.InDelta(t, -150, got.URx, 1e-9)
	assert.InDelta(t, -20, got.LLy, 1e-9)
	assert.InDelta(t, 30, got.URy, 1e-9)
}

func TestReprojectGeographicRasterLayer(t *testing.T) {
	l := newFakeLayer("dem")
	l.typ = LayerRaster
	l.crs = crs.EPSG4326

	extent := rect.Rect{LLx: 10 * metresPerDegree, LLy: 0, URx: 20 * metresPerDegree, URy: 1000}
	got, _ := ReprojectToLayerExtent(l, transform(t, crs.EPSG4326, crs.EPSG3857), extent)

	assert.InDelta(t, 10, got.LLx, 1e-9)
	assert.InDelta(t, 20, got.URx, 1e-9)
	assert.InDelta(t, 0, got.LLy, 1e-9)
}

func TestReprojectVectorRoundTrip(t *testing.T) {
	l := newFakeLayer("roads")
	l.crs = crs.EPSG4326
	ct := transform(t, crs.EPSG4326, crs.EPSG3857)

	extent := rect.Rect{LLx: 0, LLy: 0, URx: 10 * metresPerDegree, URy: 10 * metresPerDegree}
	got, _ := ReprojectToLayerExtent(l, ct, extent)
	assert.InDelta(t, 0, got.LLx, 1e-9)
	assert.InDelta(t, 10, got.URx, 1e-9)

	// Wider than the world: the reverse transform folds longitudes and the
	// round trip no longer matches.
	wide := rect.Rect{LLx: -4e7, LLy: -1e6, URx: 4e7, URy: 1e6}
	got, _ = ReprojectToLayerExtent(l, ct, wide)
	assert.Equal(t, WorldExtent, got)
}

func TestReprojectProjectedLayer(t *testing.T) {
	l := newFakeLayer("parcels")
	l.crs = crs.EPSG3857
	ct := transform(t, crs.EPSG3857, crs.EPSG4326)

	got, _ := ReprojectToLayerExtent(l, ct, rect.Rect{LLx: 10, LLy: 0, URx: 20, URy: 10})
	assert.InDelta(t, 10*metresPerDegree, got.LLx, 1e-6)
	assert.InDelta(t, 20*metresPerDegree, got.URx, 1e-6)
	assert.InDelta(t, 0, got.LLy, 1e-6)

	got, _ = ReprojectToLayerExtent(l, ct, rect.Rect{LLx: -180, LLy: -10, URx: 20, URy: 10})
	assert.Equal(t, UnboundedExtent, got, "view touching the world bounds")
}

func TestReprojectFailure(t *testing.T) {
	l := newFakeLayer("x")
	l.crs = crs.CRS{AuthID: "EPSG:99999"}
	ct := &fakeTransform{src: l.crs, dst: crs.EPSG3857, err: errors.New("boom")}

	got, r2 := ReprojectToLayerExtent(l, ct, rect.Rect{URx: 1, URy: 1})
	assert.Equal(t, UnboundedExtent, got)
	assert.Equal(t, UnboundedExtent, r2)
}

func TestGrowRect(t *testing.T) {
	r := rect.Rect{LLx: 0, LLy: 0, URx: 10, URy: 10}
	assert.Equal(t, rect.Rect{LLx: -1, LLy: -1, URx: 11, URy: 11}, growRect(r, 1))
	assert.Equal(t, r, growRect(r, 0))
	assert.Equal(t, UnboundedExtent, growRect(UnboundedExtent, 5))
}

func TestIsFiniteRect(t *testing.T) {
	assert.True(t, isFiniteRect(UnboundedExtent))
	assert.False(t, isFiniteRect(infiniteRect))
	assert.False(t, isFiniteRect(rect.Rect{LLx: math.NaN()}))
}
