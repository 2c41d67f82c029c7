// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"math"
	"strings"
)

// BlendMode specifies how source and destination colors are combined when a
// painter draws onto its image.
//
// All blend operations work on premultiplied 8-bit channels, which is the
// layout of [image.RGBA].
//
// References:
//   - Porter-Duff: "Compositing Digital Images" (1984)
//   - W3C Compositing and Blending Level 1: https://www.w3.org/TR/compositing-1/
type BlendMode uint8

const (
	// BlendSourceOver is the default mode: S + D*(1-Sa).
	BlendSourceOver BlendMode = iota

	// Separable blend modes.
	BlendMultiply   // S * D
	BlendScreen     // 1 - (1-S)*(1-D)
	BlendOverlay    // HardLight with swapped layers
	BlendDarken     // min(S, D)
	BlendLighten    // max(S, D)
	BlendColorDodge // D / (1 - S)
	BlendColorBurn  // 1 - (1 - D) / S
	BlendHardLight  // Multiply or Screen depending on source
	BlendSoftLight  // soft version of HardLight
	BlendDifference // |S - D|
	BlendExclusion  // S + D - 2*S*D

	// Porter-Duff operators.
	BlendClear           // 0
	BlendSource          // S
	BlendDestination     // D
	BlendDestinationOver // S*(1-Da) + D
	BlendSourceIn        // S*Da
	BlendDestinationIn   // D*Sa
	BlendSourceOut       // S*(1-Da)
	BlendDestinationOut  // D*(1-Sa)
	BlendSourceAtop      // S*Da + D*(1-Sa)
	BlendDestinationAtop // S*(1-Da) + D*Sa
	BlendXor             // S*(1-Da) + D*(1-Sa)
	BlendPlus            // min(S + D, 1)
)

var blendModeNames = [...]string{
	BlendSourceOver:      "source-over",
	BlendMultiply:        "multiply",
	BlendScreen:          "screen",
	BlendOverlay:         "overlay",
	BlendDarken:          "darken",
	BlendLighten:         "lighten",
	BlendColorDodge:      "color-dodge",
	BlendColorBurn:       "color-burn",
	BlendHardLight:       "hard-light",
	BlendSoftLight:       "soft-light",
	BlendDifference:      "difference",
	BlendExclusion:       "exclusion",
	BlendClear:           "clear",
	BlendSource:          "source",
	BlendDestination:     "destination",
	BlendDestinationOver: "destination-over",
	BlendSourceIn:        "source-in",
	BlendDestinationIn:   "destination-in",
	BlendSourceOut:       "source-out",
	BlendDestinationOut:  "destination-out",
	BlendSourceAtop:      "source-atop",
	BlendDestinationAtop: "destination-atop",
	BlendXor:             "xor",
	BlendPlus:            "plus",
}

// String returns the CSS-style name of the mode, e.g. "multiply".
func (m BlendMode) String() string {
	if int(m) < len(blendModeNames) {
		return blendModeNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(m))
}

// ParseBlendMode parses a CSS-style blend mode name. "normal" and the empty
// string are accepted as aliases for source-over.
func ParseBlendMode(s string) (BlendMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", "-")
	if name == "" || name == "normal" {
		return BlendSourceOver, nil
	}
	for i, n := range blendModeNames {
		if n == name {
			return BlendMode(i), nil
		}
	}
	return BlendSourceOver, fmt.Errorf("surface: unknown blend mode %q", s)
}

// blendFunc blends one premultiplied source pixel onto one destination pixel.
type blendFunc func(sr, sg, sb, sa, dr, dg, db, da byte) (r, g, b, a byte)

// blendFuncFor returns the pixel function for a mode. Unknown modes fall back
// to source-over.
func blendFuncFor(m BlendMode) blendFunc {
	switch m {
	case BlendMultiply:
		return blendMultiply
	case BlendScreen:
		return blendScreen
	case BlendOverlay:
		return blendOverlay
	case BlendDarken:
		return blendDarken
	case BlendLighten:
		return blendLighten
	case BlendColorDodge:
		return blendColorDodge
	case BlendColorBurn:
		return blendColorBurn
	case BlendHardLight:
		return blendHardLight
	case BlendSoftLight:
		return blendSoftLight
	case BlendDifference:
		return blendDifference
	case BlendExclusion:
		return blendExclusion
	case BlendClear:
		return blendClear
	case BlendSource:
		return blendSource
	case BlendDestination:
		return blendDestination
	case BlendDestinationOver:
		return blendDestinationOver
	case BlendSourceIn:
		return blendSourceIn
	case BlendDestinationIn:
		return blendDestinationIn
	case BlendSourceOut:
		return blendSourceOut
	case BlendDestinationOut:
		return blendDestinationOut
	case BlendSourceAtop:
		return blendSourceAtop
	case BlendDestinationAtop:
		return blendDestinationAtop
	case BlendXor:
		return blendXor
	case BlendPlus:
		return blendPlus
	default:
		return blendSourceOver
	}
}

// Porter-Duff operators.

func blendClear(_, _, _, _, _, _, _, _ byte) (byte, byte, byte, byte) {
	return 0, 0, 0, 0
}

func blendSource(sr, sg, sb, sa, _, _, _, _ byte) (byte, byte, byte, byte) {
	return sr, sg, sb, sa
}

func blendDestination(_, _, _, _, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return dr, dg, db, da
}

func blendSourceOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invSa := 255 - sa
	return addClamp(sr, mulDiv255(dr, invSa)),
		addClamp(sg, mulDiv255(dg, invSa)),
		addClamp(sb, mulDiv255(db, invSa)),
		addClamp(sa, mulDiv255(da, invSa))
}

func blendDestinationOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invDa := 255 - da
	return addClamp(mulDiv255(sr, invDa), dr),
		addClamp(mulDiv255(sg, invDa), dg),
		addClamp(mulDiv255(sb, invDa), db),
		addClamp(mulDiv255(sa, invDa), da)
}

func blendSourceIn(sr, sg, sb, sa, _, _, _, da byte) (byte, byte, byte, byte) {
	return mulDiv255(sr, da), mulDiv255(sg, da), mulDiv255(sb, da), mulDiv255(sa, da)
}

func blendDestinationIn(_, _, _, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return mulDiv255(dr, sa), mulDiv255(dg, sa), mulDiv255(db, sa), mulDiv255(da, sa)
}

func blendSourceOut(sr, sg, sb, sa, _, _, _, da byte) (byte, byte, byte, byte) {
	invDa := 255 - da
	return mulDiv255(sr, invDa), mulDiv255(sg, invDa), mulDiv255(sb, invDa), mulDiv255(sa, invDa)
}

func blendDestinationOut(_, _, _, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invSa := 255 - sa
	return mulDiv255(dr, invSa), mulDiv255(dg, invSa), mulDiv255(db, invSa), mulDiv255(da, invSa)
}

func blendSourceAtop(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invSa := 255 - sa
	return addClamp(mulDiv255(sr, da), mulDiv255(dr, invSa)),
		addClamp(mulDiv255(sg, da), mulDiv255(dg, invSa)),
		addClamp(mulDiv255(sb, da), mulDiv255(db, invSa)),
		da
}

func blendDestinationAtop(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invDa := 255 - da
	return addClamp(mulDiv255(sr, invDa), mulDiv255(dr, sa)),
		addClamp(mulDiv255(sg, invDa), mulDiv255(dg, sa)),
		addClamp(mulDiv255(sb, invDa), mulDiv255(db, sa)),
		sa
}

func blendXor(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invDa := 255 - da
	invSa := 255 - sa
	return addClamp(mulDiv255(sr, invDa), mulDiv255(dr, invSa)),
		addClamp(mulDiv255(sg, invDa), mulDiv255(dg, invSa)),
		addClamp(mulDiv255(sb, invDa), mulDiv255(db, invSa)),
		addClamp(mulDiv255(sa, invDa), mulDiv255(da, invSa))
}

func blendPlus(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return addClamp(sr, dr), addClamp(sg, dg), addClamp(sb, db), addClamp(sa, da)
}

// separableBlend applies a per-channel blend function B using
// Result = (1 - Sa) * D + (1 - Da) * S + Sa * Da * B(Sc, Dc)
// where B operates on unpremultiplied channels.
func separableBlend(sr, sg, sb, sa, dr, dg, db, da byte, blendChan func(s, d byte) byte) (byte, byte, byte, byte) {
	if sa == 0 {
		return dr, dg, db, da
	}
	if da == 0 {
		return sr, sg, sb, sa
	}

	sur, sug, sub := unpremul(sr, sa), unpremul(sg, sa), unpremul(sb, sa)
	dur, dug, dub := unpremul(dr, da), unpremul(dg, da), unpremul(db, da)

	invSa := 255 - sa
	invDa := 255 - da
	saDa := mulDiv255(sa, da)

	channel := func(s, d, su, du byte) byte {
		c := addClamp(mulDiv255(d, invSa), mulDiv255(s, invDa))
		return addClamp(c, mulDiv255(saDa, blendChan(su, du)))
	}

	return channel(sr, dr, sur, dur),
		channel(sg, dg, sug, dug),
		channel(sb, db, sub, dub),
		addClamp(sa, mulDiv255(da, invSa))
}

func blendMultiply(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, mulDiv255)
}

func blendScreen(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		return 255 - mulDiv255(255-s, 255-d)
	})
}

func blendOverlay(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		return hardLight(d, s)
	})
}

func blendDarken(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		return min(s, d)
	})
}

func blendLighten(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		return max(s, d)
	})
}

func blendColorDodge(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		if d == 0 {
			return 0
		}
		if s == 255 {
			return 255
		}
		return clamp255(uint32(d) * 255 / uint32(255-s))
	})
}

func blendColorBurn(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		if d == 255 {
			return 255
		}
		if s == 0 {
			return 0
		}
		return 255 - clamp255(uint32(255-d)*255/uint32(s))
	})
}

func blendHardLight(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, hardLight)
}

// hardLight multiplies when the source is dark and screens when it is light.
func hardLight(s, d byte) byte {
	if s <= 127 {
		return clamp255((2*uint32(s)*uint32(d) + 127) / 255)
	}
	return 255 - clamp255((2*uint32(255-s)*uint32(255-d)+127)/255)
}

func blendSoftLight(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		sf := float64(s) / 255
		df := float64(d) / 255

		var result float64
		if sf <= 0.5 {
			result = df - (1-2*sf)*df*(1-df)
		} else {
			var dx float64
			if df <= 0.25 {
				dx = ((16*df-12)*df + 4) * df
			} else {
				dx = math.Sqrt(df)
			}
			result = df + (2*sf-1)*(dx-df)
		}
		return byte(math.Round(math.Max(0, math.Min(1, result)) * 255))
	})
}

func blendDifference(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		if s > d {
			return s - d
		}
		return d - s
	})
}

func blendExclusion(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separableBlend(sr, sg, sb, sa, dr, dg, db, da, func(s, d byte) byte {
		return clamp255(uint32(s) + uint32(d) - 2*uint32(mulDiv255(s, d)))
	})
}

// mulDiv255 multiplies two bytes and divides by 255 with rounding.
func mulDiv255(a, b byte) byte {
	return byte((uint32(a)*uint32(b) + 127) / 255)
}

// addClamp adds two bytes, saturating at 255.
func addClamp(a, b byte) byte {
	return clamp255(uint32(a) + uint32(b))
}

func clamp255(x uint32) byte {
	if x > 255 {
		return 255
	}
	return byte(x)
}

// unpremul recovers an unpremultiplied channel value.
func unpremul(c, a byte) byte {
	if a == 0 {
		return 0
	}
	return clamp255((uint32(c)*255 + uint32(a)/2) / uint32(a))
}
