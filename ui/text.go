// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ui

import (
	"bytes"
	"strings"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/imrender/fontatlas"
	"github.com/gogpu/imrender/internal/lru"
)

// shapedLineCacheSize bounds the number of shaped lines kept between frames.
const shapedLineCacheSize = 512

// shapedGlyph is a glyph positioned on a line, relative to the line origin.
type shapedGlyph struct {
	glyph *fontatlas.Glyph
	x, y  float32
}

// lineKey identifies a shaped line. Glyph pointers change on every atlas
// build, so the generation is part of the key.
type lineKey struct {
	font       *fontatlas.Font
	generation uint64
	line       string
}

type shapedLine struct {
	glyphs []shapedGlyph
	width  float32
}

// textShaper lays out text with HarfBuzz shaping, so kerning and
// contextual forms follow the font. Fonts that go-text cannot parse fall
// back to per-rune advances from the atlas.
type textShaper struct {
	hb    shaping.HarfbuzzShaper
	fonts map[*fontatlas.Font]*gotext.Font
	bad   map[*fontatlas.Font]bool
	lines *lru.Cache[lineKey, shapedLine]
}

func newTextShaper() *textShaper {
	return &textShaper{
		fonts: make(map[*fontatlas.Font]*gotext.Font),
		bad:   make(map[*fontatlas.Font]bool),
		lines: lru.New[lineKey, shapedLine](shapedLineCacheSize),
	}
}

// parsed returns the go-text font for f, parsing it on first use.
func (s *textShaper) parsed(f *fontatlas.Font) *gotext.Font {
	if gf, ok := s.fonts[f]; ok {
		return gf
	}
	if s.bad[f] {
		return nil
	}
	face, err := gotext.ParseTTF(bytes.NewReader(f.Data()))
	if err != nil {
		slogger().Warn("ui: text shaping disabled for font", "font", f.Name, "err", err)
		s.bad[f] = true
		return nil
	}
	s.fonts[f] = face.Font
	return face.Font
}

// shapeLine positions the glyphs of a single line. Results are cached per
// font and atlas generation.
func (s *textShaper) shapeLine(f *fontatlas.Font, line string) ([]shapedGlyph, float32) {
	if line == "" {
		return nil, 0
	}
	var gen uint64
	if a := f.Atlas(); a != nil {
		gen = a.Generation()
	}
	sl := s.lines.GetOrPut(lineKey{font: f, generation: gen, line: line}, func() shapedLine {
		glyphs, w := s.shape(f, line)
		return shapedLine{glyphs: glyphs, width: w}
	})
	return sl.glyphs, sl.width
}

func (s *textShaper) shape(f *fontatlas.Font, line string) ([]shapedGlyph, float32) {
	runes := []rune(line)
	if len(runes) == 0 {
		return nil, 0
	}
	gf := s.parsed(f)
	if gf == nil {
		return layoutByAdvance(f, runes)
	}

	out := s.hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gotext.NewFace(gf),
		Size:      fixed.Int26_6(f.Size * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	})

	glyphs := make([]shapedGlyph, 0, len(out.Glyphs))
	var x float32
	for _, g := range out.Glyphs {
		ag := f.GlyphByIndex(uint16(g.GlyphID)) //nolint:gosec // glyph ids fit uint16 in TrueType fonts
		if ag == nil {
			// Ligatures and glyphs outside the atlas ranges.
			if idx := g.TextIndex(); idx >= 0 && idx < len(runes) {
				ag = f.FindGlyph(runes[idx])
			}
		}
		if ag != nil {
			glyphs = append(glyphs, shapedGlyph{
				glyph: ag,
				x:     x + fixedToFloat(g.XOffset),
				y:     -fixedToFloat(g.YOffset),
			})
		}
		x += fixedToFloat(g.Advance)
	}
	return glyphs, x
}

// layoutByAdvance positions runes using atlas advances only.
func layoutByAdvance(f *fontatlas.Font, runes []rune) ([]shapedGlyph, float32) {
	glyphs := make([]shapedGlyph, 0, len(runes))
	var x float32
	for _, r := range runes {
		g := f.FindGlyph(r)
		if g == nil {
			continue
		}
		glyphs = append(glyphs, shapedGlyph{glyph: g, x: x})
		x += g.AdvanceX
	}
	return glyphs, x
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r != ' ' && r != '\t' {
			return language.LookupScript(r)
		}
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

// AddText draws text with the shared font. pos is the top-left corner of
// the first line.
func (dl *DrawList) AddText(pos Vec2, col uint32, text string) {
	dl.AddTextFont(dl.shared.Font, pos, col, text)
}

// AddTextFont draws text with font f, which must belong to the atlas bound
// as the current texture.
func (dl *DrawList) AddTextFont(f *fontatlas.Font, pos Vec2, col uint32, text string) {
	if f == nil || col>>24 == 0 || text == "" {
		return
	}
	if dl.shared.shaper == nil {
		dl.shared.shaper = newTextShaper()
	}
	clip := dl.currentClip()
	y := pos.Y
	for line := range strings.SplitSeq(text, "\n") {
		if y > clip.W {
			break
		}
		if y+f.LineHeight() >= clip.Y {
			glyphs, _ := dl.shared.shaper.shapeLine(f, line)
			for _, sg := range glyphs {
				g := sg.glyph
				if !g.Visible {
					continue
				}
				x0 := pos.X + sg.x + g.X0
				x1 := pos.X + sg.x + g.X1
				if x1 < clip.X || x0 > clip.Z {
					continue
				}
				dl.primRectUV(
					Vec2{x0, y + sg.y + g.Y0},
					Vec2{x1, y + sg.y + g.Y1},
					Vec2{g.U0, g.V0},
					Vec2{g.U1, g.V1},
					col,
				)
			}
		}
		y += f.LineHeight()
	}
}

// CalcTextSize measures text with the shared font, applying shaping.
func (dl *DrawList) CalcTextSize(text string) Vec2 {
	f := dl.shared.Font
	if f == nil {
		return Vec2{}
	}
	if dl.shared.shaper == nil {
		dl.shared.shaper = newTextShaper()
	}
	var size Vec2
	for line := range strings.SplitSeq(text, "\n") {
		_, w := dl.shared.shaper.shapeLine(f, line)
		size.X = max(size.X, w)
		size.Y += f.LineHeight()
	}
	return size
}
