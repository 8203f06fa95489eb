package fontatlas

import (
	"golang.org/x/image/font/sfnt"
)

// Glyph is one rasterized glyph placed in the atlas.
type Glyph struct {
	// Index is the glyph index in the font.
	Index sfnt.GlyphIndex

	// Codepoint is the rune the glyph was loaded for, or 0.
	Codepoint rune

	// Visible is false for glyphs without pixels, such as space.
	Visible bool

	// AdvanceX is the horizontal advance in pixels.
	AdvanceX float32

	// X0, Y0, X1, Y1 is the glyph quad relative to the top-left corner of
	// the line, in pixels.
	X0, Y0, X1, Y1 float32

	// U0, V0, U1, V1 are the texture coordinates of the quad.
	U0, V0, U1, V1 float32
}

// Font is a font at one pixel size whose glyphs live in an Atlas.
type Font struct {
	// Name is a debug name.
	Name string

	// Size is the font size in pixels.
	Size float32

	// Ascent is the distance from the top of the line to the baseline.
	Ascent float32

	// Descent is the distance from the baseline to the bottom of the line.
	Descent float32

	// FallbackGlyph is drawn for runes missing from the atlas.
	FallbackGlyph *Glyph

	data    []byte
	sfnt    *sfnt.Font
	glyphs  map[sfnt.GlyphIndex]*Glyph
	byRune  map[rune]*Glyph
	atlas   *Atlas
	config  FontConfig
	ordered []*Glyph
}

// Data returns the raw font file the font was loaded from.
func (f *Font) Data() []byte { return f.data }

// Atlas returns the atlas the font belongs to.
func (f *Font) Atlas() *Atlas { return f.atlas }

// Glyphs returns the rasterized glyphs in load order.
func (f *Font) Glyphs() []*Glyph { return f.ordered }

// FindGlyph returns the glyph for r, or the fallback glyph if r is not in
// the atlas.
func (f *Font) FindGlyph(r rune) *Glyph {
	if g, ok := f.byRune[r]; ok {
		return g
	}
	return f.FallbackGlyph
}

// GlyphByIndex returns the glyph with the given font glyph index, or nil.
func (f *Font) GlyphByIndex(index uint16) *Glyph {
	return f.glyphs[sfnt.GlyphIndex(index)]
}

// LineHeight returns the distance between two baselines.
func (f *Font) LineHeight() float32 {
	return f.Ascent + f.Descent
}

// CalcTextSize measures text using per-glyph advances, without shaping.
func (f *Font) CalcTextSize(text string) (width, height float32) {
	lineWidth := float32(0)
	height = f.LineHeight()
	for _, r := range text {
		if r == '\n' {
			width = max(width, lineWidth)
			lineWidth = 0
			height += f.LineHeight()
			continue
		}
		if g := f.FindGlyph(r); g != nil {
			lineWidth += g.AdvanceX
		}
	}
	return max(width, lineWidth), height
}
