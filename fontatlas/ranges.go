package fontatlas

import (
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// GlyphRangesDefault returns Basic Latin and Latin-1 Supplement.
func GlyphRangesDefault() *unicode.RangeTable {
	runes := make([]rune, 0, 0xFF-0x20+1)
	for r := rune(0x20); r <= 0xFF; r++ {
		runes = append(runes, r)
	}
	return rangetable.New(runes...)
}

// GlyphRangesCyrillic returns the default ranges plus Cyrillic.
func GlyphRangesCyrillic() *unicode.RangeTable {
	return rangetable.Merge(GlyphRangesDefault(), unicode.Cyrillic)
}

// GlyphRangesGreek returns the default ranges plus Greek.
func GlyphRangesGreek() *unicode.RangeTable {
	return rangetable.Merge(GlyphRangesDefault(), unicode.Greek)
}

// MergeRanges merges several range tables into one.
func MergeRanges(tables ...*unicode.RangeTable) *unicode.RangeTable {
	return rangetable.Merge(tables...)
}

// countRunes returns the number of runes in rt.
func countRunes(rt *unicode.RangeTable) int {
	n := 0
	rangetable.Visit(rt, func(rune) { n++ })
	return n
}
