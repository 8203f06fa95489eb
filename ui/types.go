// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ui

import "unsafe"

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Vec4 is a 4D vector. Clip rectangles store (minX, minY, maxX, maxY).
type Vec4 struct {
	X, Y, Z, W float32
}

// TextureID is an opaque texture handle minted by the renderer and handed
// back verbatim on draw commands.
type TextureID uint64

// DrawIdx is the index element type of draw lists.
type DrawIdx = uint16

// DrawVert is one vertex of a draw list. Its memory layout is consumed
// directly by renderers:
//
//	offset 0   Pos  2 x float32
//	offset 8   UV   2 x float32
//	offset 16  Col  4 x uint8 (R, G, B, A)
type DrawVert struct {
	Pos Vec2
	UV  Vec2
	Col uint32
}

// Vertex layout of DrawVert, for renderers building input layouts.
const (
	DrawVertPosOffset = unsafe.Offsetof(DrawVert{}.Pos)
	DrawVertUVOffset  = unsafe.Offsetof(DrawVert{}.UV)
	DrawVertColOffset = unsafe.Offsetof(DrawVert{}.Col)
	DrawVertSize      = unsafe.Sizeof(DrawVert{})
	DrawIdxSize       = unsafe.Sizeof(DrawIdx(0))
)

// Color packs 8-bit channels so that the bytes in memory are R, G, B, A.
func Color(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// ColorFloat packs normalized channels, clamping to [0, 1].
func ColorFloat(r, g, b, a float32) uint32 {
	return Color(unorm8(r), unorm8(g), unorm8(b), unorm8(a))
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// Common colors.
var (
	ColorWhite = Color(255, 255, 255, 255)
	ColorBlack = Color(0, 0, 0, 255)
)

// DrawCmdKind distinguishes the variants of a draw command.
type DrawCmdKind uint8

// Draw command kinds.
const (
	// DrawCmdElements draws ElemCount indices with ClipRect and TextureID.
	DrawCmdElements DrawCmdKind = iota

	// DrawCmdResetRenderState asks the renderer to re-apply its render state.
	DrawCmdResetRenderState

	// DrawCmdCallback invokes UserCallback.
	DrawCmdCallback
)

// String returns the kind name.
func (k DrawCmdKind) String() string {
	switch k {
	case DrawCmdElements:
		return "Elements"
	case DrawCmdResetRenderState:
		return "ResetRenderState"
	case DrawCmdCallback:
		return "Callback"
	default:
		return "Unknown"
	}
}

// DrawCallback is invoked by the renderer in command order. The renderer
// does not interpret its effects.
type DrawCallback func(list *DrawList, cmd *DrawCmd)

// DrawCmd is one command of a draw list.
type DrawCmd struct {
	Kind DrawCmdKind

	// ElemCount is the number of indices to draw.
	ElemCount uint32

	// ClipRect is the clip rectangle in display coordinates.
	ClipRect Vec4

	// TextureID is the texture sampled by the draw.
	TextureID TextureID

	// VtxOffset is added to every index of the draw.
	VtxOffset uint32

	// IdxOffset is the first index of the draw within the list.
	IdxOffset uint32

	// UserCallback is set for DrawCmdCallback.
	UserCallback DrawCallback

	// UserCallbackData is passed through to the callback untouched.
	UserCallbackData any
}

// DrawData is the draw output of one frame. Renderers treat it as
// read-only and do not retain it.
type DrawData struct {
	// Valid is set by Context.Render.
	Valid bool

	// DisplayPos is the top-left of the viewport in display coordinates.
	DisplayPos Vec2

	// DisplaySize is the size of the viewport.
	DisplaySize Vec2

	// FramebufferScale is the pixels per display unit.
	FramebufferScale Vec2

	// TotalVtxCount is the sum of the vertex counts of CmdLists.
	TotalVtxCount int

	// TotalIdxCount is the sum of the index counts of CmdLists.
	TotalIdxCount int

	// CmdLists are rendered in order.
	CmdLists []*DrawList
}

// NewDrawData assembles draw data from lists, computing the totals.
func NewDrawData(pos, size Vec2, lists ...*DrawList) *DrawData {
	dd := &DrawData{
		Valid:            true,
		DisplayPos:       pos,
		DisplaySize:      size,
		FramebufferScale: Vec2{1, 1},
		CmdLists:         lists,
	}
	for _, l := range lists {
		dd.TotalVtxCount += len(l.VtxBuffer)
		dd.TotalIdxCount += len(l.IdxBuffer)
	}
	return dd
}
