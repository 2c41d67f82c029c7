// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memlayer

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// labelShaper positions label glyphs with HarfBuzz shaping and draws them
// with an OpenType face built from the same font data.
//
// The face is not safe for concurrent use; the label engine serializes
// access.
type labelShaper struct {
	font *gotext.Font
	face font.Face
	size fixed.Int26_6

	// HarfbuzzShaper keeps a mutable buffer.
	pool sync.Pool
}

// shapedRune is one glyph of a shaped label: the rune it was produced from
// and its pen offset from the label origin.
type shapedRune struct {
	r rune
	x fixed.Int26_6
	y fixed.Int26_6
}

type parsedFont struct {
	shaping *gotext.Font
	outline *opentype.Font
}

func parseFont(ttf []byte) (parsedFont, error) {
	face, err := gotext.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return parsedFont{}, fmt.Errorf("memlayer: parse label font: %w", err)
	}
	otf, err := opentype.Parse(ttf)
	if err != nil {
		return parsedFont{}, fmt.Errorf("memlayer: parse label font: %w", err)
	}
	return parsedFont{shaping: face.Font, outline: otf}, nil
}

// Both parsed fonts are read-only and shared; faces are per shaper.
var goRegular = sync.OnceValues(func() (parsedFont, error) { return parseFont(goregular.TTF) })

func newLabelShaper(pf parsedFont, size float64) (*labelShaper, error) {
	face, err := opentype.NewFace(pf.outline, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("memlayer: label face: %w", err)
	}
	return &labelShaper{
		font: pf.shaping,
		face: face,
		size: fixed.Int26_6(size * 64),
		pool: sync.Pool{New: func() any { return &shaping.HarfbuzzShaper{} }},
	}, nil
}

const defaultFontSize = 12

// defaultShaper sets labels in Go Regular.
func defaultShaper(size float64) *labelShaper {
	pf, err := goRegular()
	if err == nil {
		var s *labelShaper
		if s, err = newLabelShaper(pf, size); err == nil {
			return s
		}
	}
	// goregular is compiled in, so this is a build defect.
	panic(err)
}

// shape returns the glyphs of text and the total advance.
func (s *labelShaper) shape(text string) ([]shapedRune, fixed.Int26_6) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, 0
	}
	in := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gotext.NewFace(s.font),
		Size:      s.size,
		Script:    scriptOf(runes),
		Language:  language.NewLanguage("en"),
	}
	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(in)
	s.pool.Put(hb)

	glyphs := make([]shapedRune, 0, len(out.Glyphs))
	var pen fixed.Int26_6
	for _, g := range out.Glyphs {
		i := g.TextIndex()
		if i < 0 || i >= len(runes) {
			continue
		}
		glyphs = append(glyphs, shapedRune{r: runes[i], x: pen + g.XOffset, y: -g.YOffset})
		pen += g.Advance
	}
	return glyphs, pen
}

// draw renders glyphs with d, starting at d.Dot.
func (s *labelShaper) draw(d *font.Drawer, glyphs []shapedRune) {
	origin := d.Dot
	d.Face = s.face
	for _, g := range glyphs {
		d.Dot = fixed.Point26_6{X: origin.X + g.x, Y: origin.Y + g.y}
		d.DrawString(string(g.r))
	}
}

func scriptOf(runes []rune) language.Script {
	for _, r := range runes {
		if r != ' ' && r != '\t' {
			return language.LookupScript(r)
		}
	}
	return language.Latin
}
