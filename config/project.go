// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	_ "image/jpeg" // raster layer formats
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/cache"
	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/memlayer"
	"github.com/gogpu/mapcompose/surface"
)

// Project is a configuration turned into renderable objects.
type Project struct {
	Settings mapcompose.MapSettings

	// Cache is shared by all jobs of the project, or nil when disabled.
	Cache *cache.RenderCache

	// Layers holds the layers by id.
	Layers map[string]mapcompose.Layer

	workers int
	labels  []memlayer.LabelOption
	pool    *surface.Pool
}

// Build creates the layers and map settings described by the
// configuration.
func (c *Config) Build() (*Project, error) {
	dst, err := crs.Parse(c.CRS)
	if err != nil {
		return nil, err
	}
	bg, _ := parseColor(c.Output.Background)

	p := &Project{
		Settings: mapcompose.MapSettings{
			DestinationCRS:   dst,
			Extent:           toRect(c.Extent),
			OutputSize:       image.Pt(c.Output.Width, c.Output.Height),
			Scale:            c.Scale,
			ExtentBuffer:     c.ExtentBuffer,
			BackgroundColor:  bg,
			Flags:            c.Flags.resolve(),
			StyleOverrides:   c.StyleOverrides,
			LogRenderingTime: c.LogRenderingTime,
			MaxImagePixels:   c.MaxImagePixels,
		},
		Layers:  make(map[string]mapcompose.Layer, len(c.Layers)),
		workers: c.Workers,
		pool:    surface.NewPool(len(c.Layers) + 1),
	}
	if c.Cache.Enabled {
		p.Cache = cache.New(cache.WithCapacity(c.Cache.Capacity))
	}
	if lc, _ := parseColor(c.Labels.Color); lc != nil {
		p.labels = append(p.labels, memlayer.WithLabelColor(lc))
	}
	if c.Labels.Uppercase {
		p.labels = append(p.labels, memlayer.WithUppercase())
	}
	if c.Labels.MaskMargin != nil {
		p.labels = append(p.labels, memlayer.WithMaskMargin(*c.Labels.MaskMargin))
	}

	for i := range c.Layers {
		cl := &c.Layers[i]
		l, err := c.buildLayer(cl, dst)
		if err != nil {
			return nil, fmt.Errorf("config: layer %q: %w", cl.ID, err)
		}
		p.Settings.Layers = append(p.Settings.Layers, l)
		p.Layers[cl.ID] = l
	}
	return p, nil
}

// JobOptions returns the options for one render job of the project. Every
// call creates a new label engine; image buffers are shared between jobs.
func (p *Project) JobOptions(extra ...mapcompose.Option) []mapcompose.Option {
	opts := []mapcompose.Option{
		mapcompose.WithWorkers(p.workers),
		mapcompose.WithLabelingEngine(memlayer.NewLabelEngine(p.labels...)),
		mapcompose.WithImagePool(p.pool),
	}
	if p.Cache != nil {
		opts = append(opts, mapcompose.WithCache(p.Cache))
	}
	return append(opts, extra...)
}

// NewJob creates a render job for the project.
func (p *Project) NewJob(extra ...mapcompose.Option) *mapcompose.Job {
	return mapcompose.NewJob(p.Settings, p.JobOptions(extra...)...)
}

func (f Flags) resolve() mapcompose.Flag {
	var s mapcompose.MapSettings
	s.Flags = mapcompose.DefaultFlags
	set := func(flag mapcompose.Flag, v *bool) {
		if v != nil {
			s.SetFlag(flag, *v)
		}
	}
	set(mapcompose.FlagAntialiasing, f.Antialiasing)
	set(mapcompose.FlagUseAdvancedEffects, f.AdvancedEffects)
	set(mapcompose.FlagDrawLabeling, f.Labeling)
	s.SetFlag(mapcompose.FlagRenderPartialOutput, f.PartialOutput)
	return s.Flags
}

func (c *Config) buildLayer(cl *Layer, dst crs.CRS) (mapcompose.Layer, error) {
	lc := dst
	if cl.CRS != "" {
		var err error
		if lc, err = crs.Parse(cl.CRS); err != nil {
			return nil, err
		}
	}
	blend, err := surface.ParseBlendMode(cl.BlendMode)
	if err != nil {
		return nil, err
	}

	opts := []memlayer.Option{memlayer.WithBlendMode(blend), memlayer.WithScaleRange(cl.MinScale, cl.MaxScale)}
	if cl.Name != "" {
		opts = append(opts, memlayer.WithName(cl.Name))
	}
	if cl.Opacity != nil {
		opts = append(opts, memlayer.WithOpacity(*cl.Opacity))
	}
	if cl.RenderAboveLabels {
		opts = append(opts, memlayer.WithProperty(mapcompose.PropertyRenderAboveLabels, true))
	}
	for k, v := range cl.Properties {
		opts = append(opts, memlayer.WithProperty(k, v))
	}

	if cl.Type == "raster" {
		img, err := c.loadImage(cl.Image)
		if err != nil {
			return nil, err
		}
		return memlayer.NewRasterLayer(cl.ID, lc, img, toRect(cl.ImageExtent), opts...), nil
	}

	vl := memlayer.NewVectorLayer(cl.ID, lc, opts...)
	featureBlend, err := surface.ParseBlendMode(cl.FeatureBlendMode)
	if err != nil {
		return nil, err
	}
	vl.SetFeatureBlendMode(featureBlend)
	vl.SetEditable(cl.Editable)
	vl.SetForceRasterRender(cl.ForceRasterRender)
	vl.SetLabels(cl.Labels.Enabled, cl.Labels.AdvancedEffects)
	vl.AddSymbolLayer(symbolLayers(cl.SymbolLayers)...)
	for name, style := range cl.Styles {
		vl.AddStyle(name, symbolLayers(style)...)
	}
	for _, f := range cl.Features {
		geom := make([]vec.Vec2, len(f.Points))
		for i, pt := range f.Points {
			geom[i] = vec.Vec2{X: pt[0], Y: pt[1]}
		}
		vl.AddFeature(memlayer.Feature{
			ID:         f.ID,
			Geometry:   geom,
			Attributes: f.Attributes,
			Label:      f.Label,
			LabelRule:  f.LabelRule,
		})
	}
	for _, m := range cl.LabelMasks {
		vl.MaskLabels(m.Rule, m.Layer, symbolLayerIDs(m.SymbolLayers)...)
	}
	for _, m := range cl.SymbolMasks {
		vl.MaskSymbolLayers(m.Layer, symbolLayerIDs(m.SymbolLayers)...)
	}
	return vl, nil
}

func (c *Config) loadImage(path string) (image.Image, error) {
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func symbolLayers(in []SymbolLayer) []memlayer.SymbolLayer {
	out := make([]memlayer.SymbolLayer, 0, len(in))
	for _, sl := range in {
		c, _ := parseColor(sl.Color)
		if c == nil {
			c = color.Black
		}
		out = append(out, memlayer.SymbolLayer{
			ID:    mapcompose.SymbolLayerID(sl.ID),
			Color: c,
			Size:  sl.Size,
			Mask:  sl.Mask,
		})
	}
	return out
}

func symbolLayerIDs(ids []string) []mapcompose.SymbolLayerID {
	out := make([]mapcompose.SymbolLayerID, len(ids))
	for i, id := range ids {
		out[i] = mapcompose.SymbolLayerID(id)
	}
	return out
}

func toRect(e []float64) rect.Rect {
	return rect.Rect{LLx: e[0], LLy: e[1], URx: e[2], URy: e[3]}
}
