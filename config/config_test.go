// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/memlayer"
	"github.com/gogpu/mapcompose/surface"
)

const project = `
output: {width: 100, height: 100, background: "#fff"}
crs: EPSG:3857
extent: [0, 0, 100, 100]
workers: 2
cache: {enabled: true, capacity: 16}
labels: {color: "#000000", uppercase: true, mask_margin: 1}
flags: {advanced_effects: false}
style_overrides: {roads: night}
layers:
  - id: pois
    render_above_labels: true
    symbol_layers:
      - {id: halo, mask: true}
    symbol_masks:
      - {layer: roads, symbol_layers: [center]}
    features:
      - {id: p, points: [[45, 0], [55, 0], [55, 100], [45, 100]]}
  - id: roads
    blend_mode: multiply
    opacity: 0.75
    properties: {owner: city}
    labels: {enabled: true}
    symbol_layers:
      - {id: casing, color: "#ff0000"}
      - {id: center, color: "#00ff00"}
    styles:
      night:
        - {id: casing, color: "#0000ff"}
    features:
      - id: r
        points: [[0, 40], [100, 40], [100, 60], [0, 60]]
        attributes: {kind: main}
        label: Main St
  - id: dem
    type: raster
    crs: EPSG:3857
    image: dem.png
    image_extent: [0, 0, 10, 10]
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(project), 0o600))

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{1, 2, 3, 255})
	f, err := os.Create(filepath.Join(dir, "dem.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLoadAndBuild(t *testing.T) {
	cfg, err := Load(writeProject(t))
	require.NoError(t, err)
	require.Len(t, cfg.Layers, 3)

	p, err := cfg.Build()
	require.NoError(t, err)

	s := p.Settings
	assert.Equal(t, crs.EPSG3857, s.DestinationCRS)
	assert.Equal(t, image.Pt(100, 100), s.OutputSize)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, s.BackgroundColor)
	assert.True(t, s.TestFlag(mapcompose.FlagAntialiasing))
	assert.True(t, s.TestFlag(mapcompose.FlagDrawLabeling))
	assert.False(t, s.TestFlag(mapcompose.FlagUseAdvancedEffects))
	assert.Equal(t, "night", s.StyleOverrides["roads"])
	require.Len(t, s.Layers, 3)
	assert.Equal(t, "pois", s.Layers[0].ID())
	assert.NotNil(t, p.Cache)

	roads := p.Layers["roads"].(*memlayer.VectorLayer)
	assert.Equal(t, surface.BlendMultiply, roads.BlendMode())
	assert.Equal(t, 0.75, roads.Opacity())
	assert.True(t, roads.LabelsEnabled())
	owner, ok := roads.CustomProperty("owner")
	assert.True(t, ok)
	assert.Equal(t, "city", owner)

	pois := p.Layers["pois"].(*memlayer.VectorLayer)
	above, _ := pois.CustomProperty(mapcompose.PropertyRenderAboveLabels)
	assert.Equal(t, true, above)
	assert.Equal(t, []mapcompose.SymbolLayerID{"center"}, pois.SymbolLayerMasks()["roads"].Sorted())

	dem := p.Layers["dem"]
	assert.Equal(t, mapcompose.LayerRaster, dem.Type())
	assert.True(t, dem.IsValid())
}

func TestProjectRender(t *testing.T) {
	cfg, err := Load(writeProject(t))
	require.NoError(t, err)
	p, err := cfg.Build()
	require.NoError(t, err)

	img, err := p.NewJob().Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())

	// The night style draws the road casing in blue, multiplied onto white
	// at 75% opacity; the center line does not exist in that style.
	c := img.RGBAAt(20, 50)
	assert.Less(t, c.R, uint8(128))
	assert.Equal(t, uint8(255), c.B)

	// Cached on the second run.
	_, err = p.NewJob().Render(context.Background())
	require.NoError(t, err)
	assert.Positive(t, p.Cache.Len())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Output: Output{Width: 10, Height: 10},
			CRS:    "EPSG:4326",
			Extent: []float64{0, 0, 1, 1},
			Layers: []Layer{{ID: "a", SymbolLayers: []SymbolLayer{{ID: "s", Color: "#123"}}}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no size", func(c *Config) { c.Output.Width = 0 }},
		{"bad background", func(c *Config) { c.Output.Background = "white" }},
		{"unknown crs", func(c *Config) { c.CRS = "EPSG:1" }},
		{"short extent", func(c *Config) { c.Extent = []float64{0, 0, 1} }},
		{"empty extent", func(c *Config) { c.Extent = []float64{0, 0, 0, 1} }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true }},
		{"layer without id", func(c *Config) { c.Layers[0].ID = "" }},
		{"duplicate id", func(c *Config) { c.Layers = append(c.Layers, Layer{ID: "a"}) }},
		{"bad blend mode", func(c *Config) { c.Layers[0].BlendMode = "sparkle" }},
		{"bad opacity", func(c *Config) { o := 2.0; c.Layers[0].Opacity = &o }},
		{"bad symbol color", func(c *Config) { c.Layers[0].SymbolLayers[0].Color = "#12" }},
		{"symbol layer without id", func(c *Config) { c.Layers[0].SymbolLayers[0].ID = "" }},
		{"feature without points", func(c *Config) { c.Layers[0].Features = []Feature{{ID: "f"}} }},
		{"unknown type", func(c *Config) { c.Layers[0].Type = "mesh" }},
		{"raster without image", func(c *Config) { c.Layers[0].Type = "raster" }},
		{"mask of unknown layer", func(c *Config) {
			c.Layers[0].SymbolMasks = []SymbolMask{{Layer: "nope"}}
		}},
		{"label mask of unknown layer", func(c *Config) {
			c.Layers[0].LabelMasks = []LabelMask{{Rule: "r", Layer: "nope"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("output: {width: 1, height: 1}\ncrs: EPSG:3857\nextent: [0, 0, 1, 1]\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"", nil},
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#102030", color.NRGBA{0x10, 0x20, 0x30, 255}},
		{"#10203040", color.NRGBA{0x10, 0x20, 0x30, 0x40}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	for _, bad := range []string{"fff", "#ff", "#gggggg"} {
		_, err := parseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFlagsResolve(t *testing.T) {
	assert.Equal(t, mapcompose.DefaultFlags, Flags{}.resolve())
	off := false
	f := Flags{Labeling: &off, PartialOutput: true}.resolve()
	assert.Zero(t, f&mapcompose.FlagDrawLabeling)
	assert.NotZero(t, f&mapcompose.FlagRenderPartialOutput)
}
