// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads map render configurations from YAML.
//
// A configuration holds the map view (output size, CRS, extent, flags),
// the render job options (workers, cache, metrics endpoint) and an
// in-memory project: the layer stack with features or raster images,
// symbol layers, label settings and mask declarations.
//
//	output: {width: 800, height: 600, background: "#ffffff"}
//	crs: EPSG:3857
//	extent: [0, 0, 1000, 1000]
//	layers:
//	  - id: parcels
//	    symbol_layers: [{id: fill, color: "#d0a070"}]
//	    features:
//	      - {id: p1, points: [[100, 100], [400, 100], [400, 300]]}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/mapcompose/crs"
	"github.com/gogpu/mapcompose/surface"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the root of a configuration file.
type Config struct {
	Output           Output            `yaml:"output"`
	CRS              string            `yaml:"crs"`
	Extent           []float64         `yaml:"extent"`
	Scale            float64           `yaml:"scale"`
	ExtentBuffer     float64           `yaml:"extent_buffer"`
	Flags            Flags             `yaml:"flags"`
	StyleOverrides   map[string]string `yaml:"style_overrides"`
	LogRenderingTime bool              `yaml:"log_rendering_time"`
	MaxImagePixels   int               `yaml:"max_image_pixels"`
	Workers          int               `yaml:"workers"`
	Cache            Cache             `yaml:"cache"`
	Labels           Labels            `yaml:"labels"`
	Metrics          Metrics           `yaml:"metrics"`
	Layers           []Layer           `yaml:"layers"`

	// dir resolves relative raster image paths.
	dir string
}

// Output describes the rendered image.
type Output struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
}

// Flags are the render flags. Unset flags take their defaults.
type Flags struct {
	Antialiasing    *bool `yaml:"antialiasing"`
	AdvancedEffects *bool `yaml:"advanced_effects"`
	Labeling        *bool `yaml:"labeling"`
	PartialOutput   bool  `yaml:"partial_output"`
}

// Cache configures the render cache.
type Cache struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

// Labels configures the label engine.
type Labels struct {
	Color      string `yaml:"color"`
	Uppercase  bool   `yaml:"uppercase"`
	MaskMargin *int   `yaml:"mask_margin"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Layer is one entry of the layer stack, top to bottom.
type Layer struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Type              string            `yaml:"type"`
	CRS               string            `yaml:"crs"`
	BlendMode         string            `yaml:"blend_mode"`
	FeatureBlendMode  string            `yaml:"feature_blend_mode"`
	Opacity           *float64          `yaml:"opacity"`
	MinScale          float64           `yaml:"min_scale"`
	MaxScale          float64           `yaml:"max_scale"`
	RenderAboveLabels bool              `yaml:"render_above_labels"`
	Editable          bool              `yaml:"editable"`
	ForceRasterRender bool              `yaml:"force_raster_render"`
	Properties        map[string]string `yaml:"properties"`

	// Vector layers.
	SymbolLayers []SymbolLayer            `yaml:"symbol_layers"`
	Styles       map[string][]SymbolLayer `yaml:"styles"`
	Features     []Feature                `yaml:"features"`
	Labels       LayerLabels              `yaml:"labels"`
	LabelMasks   []LabelMask              `yaml:"label_masks"`
	SymbolMasks  []SymbolMask             `yaml:"symbol_masks"`

	// Raster layers.
	Image       string    `yaml:"image"`
	ImageExtent []float64 `yaml:"image_extent"`
}

// SymbolLayer is one drawing step of a vector layer.
type SymbolLayer struct {
	ID    string  `yaml:"id"`
	Color string  `yaml:"color"`
	Size  float64 `yaml:"size"`
	Mask  bool    `yaml:"mask"`
}

// Feature is one vector feature.
type Feature struct {
	ID         string            `yaml:"id"`
	Points     [][2]float64      `yaml:"points"`
	Attributes map[string]string `yaml:"attributes"`
	Label      string            `yaml:"label"`
	LabelRule  string            `yaml:"label_rule"`
}

// LayerLabels enables labeling for a layer.
type LayerLabels struct {
	Enabled         bool `yaml:"enabled"`
	AdvancedEffects bool `yaml:"advanced_effects"`
}

// LabelMask declares that labels of Rule hide symbol layers of Layer.
type LabelMask struct {
	Rule         string   `yaml:"rule"`
	Layer        string   `yaml:"layer"`
	SymbolLayers []string `yaml:"symbol_layers"`
}

// SymbolMask declares that the mask symbol layers of the declaring layer
// hide symbol layers of Layer.
type SymbolMask struct {
	Layer        string   `yaml:"layer"`
	SymbolLayers []string `yaml:"symbol_layers"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates a configuration. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("%w: output size %dx%d", ErrInvalid, c.Output.Width, c.Output.Height)
	}
	if _, err := parseColor(c.Output.Background); err != nil {
		return fmt.Errorf("%w: output background: %w", ErrInvalid, err)
	}
	if _, err := crs.Parse(c.CRS); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := checkExtent(c.Extent); err != nil {
		return fmt.Errorf("%w: extent: %w", ErrInvalid, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("%w: cache capacity must not be negative", ErrInvalid)
	}
	if _, err := parseColor(c.Labels.Color); err != nil {
		return fmt.Errorf("%w: label color: %w", ErrInvalid, err)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics enabled without an address", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Layers))
	for i := range c.Layers {
		l := &c.Layers[i]
		if l.ID == "" {
			return fmt.Errorf("%w: layer %d has no id", ErrInvalid, i)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: duplicate layer id %q", ErrInvalid, l.ID)
		}
		seen[l.ID] = true
		if err := l.validate(); err != nil {
			return fmt.Errorf("%w: layer %q: %w", ErrInvalid, l.ID, err)
		}
	}
	for _, l := range c.Layers {
		for _, m := range l.LabelMasks {
			if !seen[m.Layer] {
				return fmt.Errorf("%w: layer %q: label mask targets unknown layer %q", ErrInvalid, l.ID, m.Layer)
			}
		}
		for _, m := range l.SymbolMasks {
			if !seen[m.Layer] {
				return fmt.Errorf("%w: layer %q: symbol mask targets unknown layer %q", ErrInvalid, l.ID, m.Layer)
			}
		}
	}
	return nil
}

func (l *Layer) validate() error {
	if l.CRS != "" {
		if _, err := crs.Parse(l.CRS); err != nil {
			return err
		}
	}
	if _, err := surface.ParseBlendMode(l.BlendMode); err != nil {
		return err
	}
	if _, err := surface.ParseBlendMode(l.FeatureBlendMode); err != nil {
		return err
	}
	if l.Opacity != nil && (*l.Opacity < 0 || *l.Opacity > 1) {
		return fmt.Errorf("opacity %g outside [0, 1]", *l.Opacity)
	}

	switch l.Type {
	case "", "vector":
		for _, sl := range l.SymbolLayers {
			if err := sl.validate(); err != nil {
				return err
			}
		}
		for name, style := range l.Styles {
			for _, sl := range style {
				if err := sl.validate(); err != nil {
					return fmt.Errorf("style %q: %w", name, err)
				}
			}
		}
		for _, f := range l.Features {
			if len(f.Points) == 0 {
				return fmt.Errorf("feature %q has no points", f.ID)
			}
		}
		if l.Image != "" {
			return errors.New("vector layers take features, not an image")
		}
	case "raster":
		if l.Image == "" {
			return errors.New("raster layer without image")
		}
		if err := checkExtent(l.ImageExtent); err != nil {
			return fmt.Errorf("image extent: %w", err)
		}
		if len(l.Features) > 0 || len(l.SymbolLayers) > 0 {
			return errors.New("raster layers take an image, not features")
		}
	default:
		return fmt.Errorf("unknown layer type %q", l.Type)
	}
	return nil
}

func (sl SymbolLayer) validate() error {
	if sl.ID == "" {
		return errors.New("symbol layer without id")
	}
	if _, err := parseColor(sl.Color); err != nil {
		return fmt.Errorf("symbol layer %q: %w", sl.ID, err)
	}
	return nil
}

func checkExtent(e []float64) error {
	if len(e) != 4 {
		return fmt.Errorf("want [minx, miny, maxx, maxy], got %d values", len(e))
	}
	if !(e[2] > e[0]) || !(e[3] > e[1]) {
		return fmt.Errorf("empty extent %v", e)
	}
	return nil
}

// parseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". The empty string is
// nil.
func parseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return nil, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("color %q: want #rgb, #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
