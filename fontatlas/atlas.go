// Package fontatlas rasterizes fonts into a single texture atlas.
//
// Glyph outlines are loaded with golang.org/x/image/font/sfnt, scan
// converted with golang.org/x/image/vector and packed on shelves. The atlas
// also reserves a small block of opaque white pixels so that untextured
// geometry can be drawn with the same texture bound.
//
//	atlas := fontatlas.New()
//	font, err := atlas.AddFontDefault()
//	pixels, w, h, err := atlas.TexDataAsRGBA32()
//	// upload pixels, then:
//	atlas.SetTexID(uint64(gpuHandle))
package fontatlas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"slices"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/unicode/rangetable"

	"github.com/gogpu/imrender/internal/rectpack"
)

// Errors returned by the atlas.
var (
	// ErrInvalidSize is returned for a non-positive font size.
	ErrInvalidSize = errors.New("fontatlas: font size must be positive")

	// ErrTooLarge is returned when glyphs do not fit in MaxTextureHeight.
	ErrTooLarge = errors.New("fontatlas: glyphs do not fit in the atlas")
)

const (
	// DefaultFontSize is the pixel size of the default font.
	DefaultFontSize = 13

	// DefaultGlyphPadding is the spacing between packed glyphs.
	DefaultGlyphPadding = 1

	// MaxTextureHeight bounds the atlas height.
	MaxTextureHeight = 16384

	// whitePixelSize is the edge of the opaque block used for untextured draws.
	whitePixelSize = 2
)

// FontConfig configures a font added to the atlas.
type FontConfig struct {
	// Name is a debug name.
	Name string

	// SizePixels is the font size in pixels.
	SizePixels float32

	// GlyphRanges lists the runes to rasterize. Nil means GlyphRangesDefault.
	GlyphRanges *unicode.RangeTable
}

// Atlas owns a set of fonts and the texture their glyphs are packed in.
//
// Atlas is not safe for concurrent use.
type Atlas struct {
	// Fonts lists the fonts in the order they were added.
	Fonts []*Font

	// TexDesiredWidth forces the texture width when positive.
	TexDesiredWidth int

	// TexGlyphPadding is the spacing between glyphs.
	TexGlyphPadding int

	// TexWidth and TexHeight are the texture size after Build.
	TexWidth  int
	TexHeight int

	// TexUvWhitePixel is the texture coordinate of an opaque white texel.
	TexUvWhitePixel [2]float32

	texID       uint64
	pixelsAlpha []byte
	pixelsRGBA  []byte
	built       bool
	generation  uint64
}

// New creates an empty atlas.
func New() *Atlas {
	return &Atlas{TexGlyphPadding: DefaultGlyphPadding}
}

// AddFontDefault adds the Go Regular font at DefaultFontSize.
func (a *Atlas) AddFontDefault() (*Font, error) {
	return a.AddFontFromMemoryTTF(goregular.TTF, FontConfig{
		Name:       "Go Regular, 13px",
		SizePixels: DefaultFontSize,
	})
}

// AddFontFromMemoryTTF parses a TrueType or OpenType font and adds it.
// The atlas must be rebuilt afterwards.
func (a *Atlas) AddFontFromMemoryTTF(data []byte, cfg FontConfig) (*Font, error) {
	if cfg.SizePixels <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.GlyphRanges == nil {
		cfg.GlyphRanges = GlyphRangesDefault()
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fontatlas: parse font: %w", err)
	}
	fnt := &Font{
		Name:   cfg.Name,
		Size:   cfg.SizePixels,
		data:   data,
		sfnt:   f,
		atlas:  a,
		config: cfg,
	}
	a.Fonts = append(a.Fonts, fnt)
	a.built = false
	return fnt, nil
}

// IsBuilt reports whether the texture data is current.
func (a *Atlas) IsBuilt() bool { return a.built }

// Generation counts successful builds. Glyph placement from an older
// generation must not be reused.
func (a *Atlas) Generation() uint64 { return a.generation }

// TexID returns the texture identifier set by the renderer.
func (a *Atlas) TexID() uint64 { return a.texID }

// SetTexID records the texture identifier the renderer uploaded the atlas
// to. Draw commands referencing text carry this identifier.
func (a *Atlas) SetTexID(id uint64) { a.texID = id }

// Clear removes all fonts and texture data.
func (a *Atlas) Clear() {
	a.Fonts = nil
	a.pixelsAlpha = nil
	a.pixelsRGBA = nil
	a.TexWidth, a.TexHeight = 0, 0
	a.built = false
}

// pendingGlyph is a rasterized glyph waiting to be packed.
type pendingGlyph struct {
	font   *Font
	glyph  *Glyph
	mask   *image.Alpha
	region rectpack.Region
}

// Build rasterizes every font and packs the glyphs. A default font is added
// when the atlas is empty.
func (a *Atlas) Build() error {
	if len(a.Fonts) == 0 {
		if _, err := a.AddFontDefault(); err != nil {
			return err
		}
	}

	var pending []*pendingGlyph
	area := whitePixelSize * whitePixelSize
	for _, f := range a.Fonts {
		p, err := a.rasterizeFont(f)
		if err != nil {
			return err
		}
		for _, pg := range p {
			b := pg.mask.Bounds()
			area += (b.Dx() + a.TexGlyphPadding) * (b.Dy() + a.TexGlyphPadding)
		}
		pending = append(pending, p...)
	}

	width := a.TexDesiredWidth
	if width <= 0 {
		width = textureWidthForArea(area)
	}

	packer := rectpack.New(width, MaxTextureHeight, a.TexGlyphPadding)
	white, err := packer.Allocate(whitePixelSize, whitePixelSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTooLarge, err)
	}

	// Tallest first packs shelves tighter.
	order := slices.Clone(pending)
	slices.SortStableFunc(order, func(x, y *pendingGlyph) int {
		return y.mask.Bounds().Dy() - x.mask.Bounds().Dy()
	})
	for _, pg := range order {
		b := pg.mask.Bounds()
		r, err := packer.Allocate(b.Dx(), b.Dy())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTooLarge, err)
		}
		pg.region = r
	}

	a.TexWidth = packer.Width()
	a.TexHeight = upperPowerOfTwo(packer.UsedHeight())
	a.pixelsAlpha = make([]byte, a.TexWidth*a.TexHeight)
	a.pixelsRGBA = nil

	for y := 0; y < whitePixelSize; y++ {
		for x := 0; x < whitePixelSize; x++ {
			a.pixelsAlpha[(white.Y+y)*a.TexWidth+white.X+x] = 0xFF
		}
	}
	uScale := 1 / float32(a.TexWidth)
	vScale := 1 / float32(a.TexHeight)
	a.TexUvWhitePixel = [2]float32{
		(float32(white.X) + 0.5) * uScale,
		(float32(white.Y) + 0.5) * vScale,
	}

	for _, pg := range pending {
		a.blit(pg)
		g, r := pg.glyph, pg.region
		g.U0 = float32(r.X) * uScale
		g.V0 = float32(r.Y) * vScale
		g.U1 = float32(r.X+r.Width) * uScale
		g.V1 = float32(r.Y+r.Height) * vScale
	}

	a.built = true
	a.generation++
	return nil
}

// rasterizeFont loads every glyph of the font's ranges. Glyphs without
// pixels are registered directly; the rest are returned for packing.
func (a *Atlas) rasterizeFont(f *Font) ([]*pendingGlyph, error) {
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(math.Round(float64(f.Size) * 64))

	m, err := f.sfnt.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("fontatlas: metrics: %w", err)
	}
	f.Ascent = fixedToFloat(m.Ascent)
	f.Descent = fixedToFloat(m.Descent)

	f.glyphs = make(map[sfnt.GlyphIndex]*Glyph, countRunes(f.config.GlyphRanges))
	f.byRune = make(map[rune]*Glyph, len(f.glyphs))
	f.ordered = f.ordered[:0]
	f.FallbackGlyph = nil

	var pending []*pendingGlyph
	var loadErr error
	rangetable.Visit(f.config.GlyphRanges, func(r rune) {
		if loadErr != nil {
			return
		}
		gi, err := f.sfnt.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			return
		}
		if g, ok := f.glyphs[gi]; ok {
			f.byRune[r] = g
			return
		}
		g, mask, err := rasterizeGlyph(f.sfnt, &buf, gi, ppem, f.Ascent)
		if err != nil {
			loadErr = fmt.Errorf("fontatlas: glyph %U: %w", r, err)
			return
		}
		g.Codepoint = r
		f.glyphs[gi] = g
		f.byRune[r] = g
		f.ordered = append(f.ordered, g)
		if mask != nil {
			pending = append(pending, &pendingGlyph{font: f, glyph: g, mask: mask})
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}

	for _, r := range []rune{'?', ' '} {
		if g, ok := f.byRune[r]; ok {
			f.FallbackGlyph = g
			break
		}
	}
	if f.FallbackGlyph == nil && len(f.ordered) > 0 {
		f.FallbackGlyph = f.ordered[0]
	}
	return pending, nil
}

// rasterizeGlyph scan converts one glyph outline. The returned mask is nil
// for glyphs without pixels.
func rasterizeGlyph(f *sfnt.Font, buf *sfnt.Buffer, gi sfnt.GlyphIndex, ppem fixed.Int26_6, ascent float32) (*Glyph, *image.Alpha, error) {
	bounds, advance, err := f.GlyphBounds(buf, gi, ppem, font.HintingNone)
	if err != nil {
		return nil, nil, err
	}
	g := &Glyph{Index: gi, AdvanceX: fixedToFloat(advance)}

	x0, y0 := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	x1, y1 := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return g, nil, nil
	}

	segments, err := f.LoadGlyph(buf, gi, ppem, nil)
	if err != nil {
		return nil, nil, err
	}

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src
	ox, oy := float32(x0), float32(y0)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return fixedToFloat(p.X) - ox, fixedToFloat(p.Y) - oy
	}
	for _, s := range segments {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			z.MoveTo(pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			z.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			z.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			dx, dy := pt(s.Args[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	g.Visible = true
	g.X0 = ox
	g.Y0 = oy + ascent
	g.X1 = ox + float32(w)
	g.Y1 = oy + ascent + float32(h)
	return g, mask, nil
}

// blit copies a glyph mask into the alpha texture at its packed region.
func (a *Atlas) blit(pg *pendingGlyph) {
	r := pg.region
	for y := 0; y < r.Height; y++ {
		src := pg.mask.Pix[y*pg.mask.Stride : y*pg.mask.Stride+r.Width]
		dst := a.pixelsAlpha[(r.Y+y)*a.TexWidth+r.X:]
		copy(dst[:r.Width], src)
	}
}

// TexDataAsAlpha8 returns the 8-bit coverage texture, building the atlas if
// needed.
func (a *Atlas) TexDataAsAlpha8() (pixels []byte, width, height int, err error) {
	if !a.built {
		if err := a.Build(); err != nil {
			return nil, 0, 0, err
		}
	}
	return a.pixelsAlpha, a.TexWidth, a.TexHeight, nil
}

// TexDataAsRGBA32 returns the texture as tightly packed RGBA8 rows: white
// texels whose alpha is the glyph coverage.
func (a *Atlas) TexDataAsRGBA32() (pixels []byte, width, height int, err error) {
	alpha, w, h, err := a.TexDataAsAlpha8()
	if err != nil {
		return nil, 0, 0, err
	}
	if a.pixelsRGBA == nil {
		a.pixelsRGBA = make([]byte, len(alpha)*4)
		for i, v := range alpha {
			o := i * 4
			a.pixelsRGBA[o+0] = 0xFF
			a.pixelsRGBA[o+1] = 0xFF
			a.pixelsRGBA[o+2] = 0xFF
			a.pixelsRGBA[o+3] = v
		}
	}
	return a.pixelsRGBA, w, h, nil
}

// Image returns the RGBA texture as an image, for debugging.
func (a *Atlas) Image() (*image.NRGBA, error) {
	pixels, w, h, err := a.TexDataAsRGBA32()
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{Pix: pixels, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// textureWidthForArea picks a texture width from the packed glyph area.
func textureWidthForArea(area int) int {
	side := math.Sqrt(float64(area))
	switch {
	case side >= 4096*0.7:
		return 4096
	case side >= 2048*0.7:
		return 2048
	case side >= 1024*0.7:
		return 1024
	default:
		return 512
	}
}

// upperPowerOfTwo returns the smallest power of two >= v, at least 1.
func upperPowerOfTwo(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
