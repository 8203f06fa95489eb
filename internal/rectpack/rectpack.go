// Package rectpack packs rectangles into a fixed-width area using shelves.
package rectpack

import (
	"errors"
	"fmt"
)

// ErrFull is returned when a rectangle does not fit in the remaining area.
var ErrFull = errors.New("rectpack: area is full")

// MinWidth is the smallest packing width accepted by New.
const MinWidth = 64

// Region is an allocated rectangle.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsValid returns true if the region has positive dimensions.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// shelf is one horizontal row of packed rectangles.
type shelf struct {
	y      int // Top Y coordinate of this shelf
	height int // Height of this shelf (tallest item so far)
	nextX  int // Next available X position on this shelf
}

// Packer allocates rectangles shelf by shelf, left to right.
// Shelves are opened below the previous one until maxHeight is reached.
//
// Packer is not safe for concurrent use; a font atlas is built on one
// goroutine.
type Packer struct {
	width     int
	maxHeight int
	padding   int

	shelves []shelf

	allocCount int
	usedArea   int
}

// New creates a packer for an area width pixels wide and at most maxHeight
// pixels tall. padding is left between neighbouring rectangles.
func New(width, maxHeight, padding int) *Packer {
	if width < MinWidth {
		width = MinWidth
	}
	if maxHeight < 1 {
		maxHeight = 1
	}
	if padding < 0 {
		padding = 0
	}
	return &Packer{
		width:     width,
		maxHeight: maxHeight,
		padding:   padding,
		shelves:   make([]shelf, 0, 16),
	}
}

// Allocate reserves a width x height rectangle.
func (p *Packer) Allocate(width, height int) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, nil
	}

	paddedWidth := width + p.padding
	paddedHeight := height + p.padding
	if paddedWidth > p.width {
		return Region{}, fmt.Errorf("%w: %dx%d wider than %d", ErrFull, width, height, p.width)
	}

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.nextX+paddedWidth > p.width {
			continue
		}
		// Only the open end of the last shelf may grow taller.
		if paddedHeight > s.height && i != len(p.shelves)-1 {
			continue
		}
		if s.y+paddedHeight > p.maxHeight {
			continue
		}
		r := Region{X: s.nextX, Y: s.y, Width: width, Height: height}
		s.nextX += paddedWidth
		if paddedHeight > s.height {
			s.height = paddedHeight
		}
		p.record(r)
		return r, nil
	}

	newY := 0
	if n := len(p.shelves); n > 0 {
		newY = p.shelves[n-1].y + p.shelves[n-1].height
	}
	if newY+paddedHeight > p.maxHeight {
		return Region{}, fmt.Errorf("%w: %dx%d at y=%d", ErrFull, width, height, newY)
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: paddedHeight, nextX: paddedWidth})
	r := Region{X: 0, Y: newY, Width: width, Height: height}
	p.record(r)
	return r, nil
}

func (p *Packer) record(r Region) {
	p.allocCount++
	p.usedArea += r.Width * r.Height
}

// Width returns the packing width.
func (p *Packer) Width() int { return p.width }

// UsedHeight returns the bottom edge of the lowest shelf.
func (p *Packer) UsedHeight() int {
	if n := len(p.shelves); n > 0 {
		return p.shelves[n-1].y + p.shelves[n-1].height
	}
	return 0
}

// AllocCount returns the number of successful allocations.
func (p *Packer) AllocCount() int { return p.allocCount }

// UsedArea returns the total area of allocated rectangles.
func (p *Packer) UsedArea() int { return p.usedArea }

// Reset clears all allocations.
func (p *Packer) Reset() {
	p.shelves = p.shelves[:0]
	p.allocCount = 0
	p.usedArea = 0
}
