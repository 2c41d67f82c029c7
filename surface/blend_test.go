// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type px [4]byte

func apply4(fn blendFunc, s, d px) px {
	r, g, b, a := fn(s[0], s[1], s[2], s[3], d[0], d[1], d[2], d[3])
	return px{r, g, b, a}
}

func TestPorterDuff(t *testing.T) {
	red := px{255, 0, 0, 255}
	blue := px{0, 0, 255, 255}
	halfRed := px{128, 0, 0, 128}
	clearPx := px{}

	tests := []struct {
		mode BlendMode
		s, d px
		want px
	}{
		{BlendSourceOver, red, blue, red},
		{BlendSourceOver, clearPx, blue, blue},
		{BlendSourceOver, halfRed, blue, px{128, 0, 127, 255}},
		{BlendDestinationOver, red, blue, blue},
		{BlendDestinationOver, red, clearPx, red},
		{BlendClear, red, blue, clearPx},
		{BlendSource, halfRed, blue, halfRed},
		{BlendDestination, red, blue, blue},
		{BlendSourceIn, red, clearPx, clearPx},
		{BlendSourceIn, red, blue, red},
		{BlendDestinationIn, red, blue, blue},
		{BlendDestinationIn, clearPx, blue, clearPx},
		{BlendSourceOut, red, blue, clearPx},
		{BlendSourceOut, red, clearPx, red},
		{BlendDestinationOut, red, blue, clearPx},
		{BlendDestinationOut, clearPx, blue, blue},
		{BlendSourceAtop, red, blue, red},
		{BlendDestinationAtop, red, blue, blue},
		{BlendXor, red, blue, clearPx},
		{BlendXor, red, clearPx, red},
		{BlendPlus, px{200, 0, 0, 200}, px{100, 0, 0, 100}, px{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := apply4(blendFuncFor(tt.mode), tt.s, tt.d)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeparableOpaque(t *testing.T) {
	s := px{200, 100, 50, 255}
	d := px{100, 100, 100, 255}

	tests := []struct {
		mode BlendMode
		want px
	}{
		{BlendMultiply, px{78, 39, 20, 255}},
		{BlendScreen, px{222, 161, 130, 255}},
		{BlendDarken, px{100, 100, 50, 255}},
		{BlendLighten, px{200, 100, 100, 255}},
		{BlendDifference, px{100, 0, 50, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := apply4(blendFuncFor(tt.mode), s, d)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeparableTransparentOperands(t *testing.T) {
	d := px{10, 20, 30, 255}
	modes := []BlendMode{
		BlendMultiply, BlendScreen, BlendOverlay, BlendDarken, BlendLighten,
		BlendColorDodge, BlendColorBurn, BlendHardLight, BlendSoftLight,
		BlendDifference, BlendExclusion,
	}
	for _, m := range modes {
		t.Run(m.String(), func(t *testing.T) {
			fn := blendFuncFor(m)
			assert.Equal(t, d, apply4(fn, px{}, d), "transparent source keeps destination")
			assert.Equal(t, d, apply4(fn, d, px{}), "transparent destination takes source")
		})
	}
}

func TestHardLightNoOverflow(t *testing.T) {
	// 2*s*d must not wrap a byte.
	assert.Equal(t, byte(254), hardLight(127, 255))
	assert.Equal(t, byte(255), hardLight(255, 200))
	assert.Equal(t, byte(128), hardLight(128, 128))
}

func TestParseBlendMode(t *testing.T) {
	for i := range blendModeNames {
		m := BlendMode(i)
		got, err := ParseBlendMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseBlendMode("Normal")
	require.NoError(t, err)
	assert.Equal(t, BlendSourceOver, got)

	got, err = ParseBlendMode("DESTINATION_IN")
	require.NoError(t, err)
	assert.Equal(t, BlendDestinationIn, got)

	_, err = ParseBlendMode("dissolve")
	assert.Error(t, err)

	assert.Equal(t, "BlendMode(200)", BlendMode(200).String())
}

func TestMulDiv255(t *testing.T) {
	assert.Equal(t, byte(0), mulDiv255(0, 255))
	assert.Equal(t, byte(255), mulDiv255(255, 255))
	for c := 0; c < 256; c++ {
		assert.Equal(t, byte(c), mulDiv255(byte(c), 255))
	}
	assert.Equal(t, byte(128), mulDiv255(255, 128))
}
