// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ui

import (
	"math"
	"slices"

	"github.com/gogpu/imrender/fontatlas"
)

// maxVerticesPerCmd is the largest vertex span addressable by DrawIdx.
const maxVerticesPerCmd = 1 << 16

// DrawListSharedData is state shared by the draw lists of a context.
type DrawListSharedData struct {
	// TexUvWhitePixel is the texture coordinate of an opaque white texel
	// in the font atlas.
	TexUvWhitePixel Vec2

	// Font is the font used by AddText.
	Font *fontatlas.Font

	// FontTexID is the texture the font atlas was uploaded to.
	FontTexID TextureID

	// ClipRectFullscreen is the clip rectangle of a fresh list.
	ClipRectFullscreen Vec4

	// HasVtxOffset is set when the renderer honours DrawCmd.VtxOffset,
	// allowing lists larger than the 16-bit index range.
	HasVtxOffset bool

	// CircleSegments is the default tessellation of circles.
	CircleSegments int

	shaper *textShaper
}

// DrawList accumulates vertices, indices and commands for one layer of a
// frame. Consecutive primitives sharing a clip rectangle and texture are
// merged into one command.
type DrawList struct {
	CmdBuffer []DrawCmd
	IdxBuffer []DrawIdx
	VtxBuffer []DrawVert

	shared       *DrawListSharedData
	clipStack    []Vec4
	textureStack []TextureID
	vtxOffset    uint32
}

// NewDrawList creates an empty draw list using shared data.
func NewDrawList(shared *DrawListSharedData) *DrawList {
	dl := &DrawList{
		shared:       shared,
		CmdBuffer:    make([]DrawCmd, 0, 16),
		IdxBuffer:    make([]DrawIdx, 0, 2048),
		VtxBuffer:    make([]DrawVert, 0, 1024),
		clipStack:    make([]Vec4, 0, 8),
		textureStack: make([]TextureID, 0, 4),
	}
	dl.Clear()
	return dl
}

// Clear resets the list for a new frame, retaining capacity.
func (dl *DrawList) Clear() {
	dl.CmdBuffer = dl.CmdBuffer[:0]
	dl.IdxBuffer = dl.IdxBuffer[:0]
	dl.VtxBuffer = dl.VtxBuffer[:0]
	dl.clipStack = append(dl.clipStack[:0], dl.shared.ClipRectFullscreen)
	dl.textureStack = append(dl.textureStack[:0], dl.shared.FontTexID)
	dl.vtxOffset = 0
	dl.addDrawCmd()
}

func (dl *DrawList) currentClip() Vec4 { return dl.clipStack[len(dl.clipStack)-1] }

func (dl *DrawList) currentTexture() TextureID { return dl.textureStack[len(dl.textureStack)-1] }

// addDrawCmd opens a new elements command with the current state.
func (dl *DrawList) addDrawCmd() {
	dl.CmdBuffer = append(dl.CmdBuffer, DrawCmd{
		Kind:      DrawCmdElements,
		ClipRect:  dl.currentClip(),
		TextureID: dl.currentTexture(),
		VtxOffset: dl.vtxOffset,
		IdxOffset: uint32(len(dl.IdxBuffer)),
	})
}

// lastCmd returns the open elements command, adding one if the last
// command is not an elements command.
func (dl *DrawList) lastCmd() *DrawCmd {
	if n := len(dl.CmdBuffer); n == 0 || dl.CmdBuffer[n-1].Kind != DrawCmdElements {
		dl.addDrawCmd()
	}
	return &dl.CmdBuffer[len(dl.CmdBuffer)-1]
}

// onChangedState reuses the open command when it is still empty, and
// starts a new one otherwise.
func (dl *DrawList) onChangedState() {
	cmd := dl.lastCmd()
	if cmd.ElemCount != 0 {
		if cmd.ClipRect != dl.currentClip() || cmd.TextureID != dl.currentTexture() {
			dl.addDrawCmd()
		}
		return
	}
	cmd.ClipRect = dl.currentClip()
	cmd.TextureID = dl.currentTexture()
}

// PushClipRect restricts subsequent primitives to [min, max]. With
// intersect set, the rectangle is intersected with the current one.
func (dl *DrawList) PushClipRect(min, max Vec2, intersect bool) {
	cr := Vec4{min.X, min.Y, max.X, max.Y}
	if intersect {
		cur := dl.currentClip()
		cr.X = float32(math.Max(float64(cr.X), float64(cur.X)))
		cr.Y = float32(math.Max(float64(cr.Y), float64(cur.Y)))
		cr.Z = float32(math.Min(float64(cr.Z), float64(cur.Z)))
		cr.W = float32(math.Min(float64(cr.W), float64(cur.W)))
	}
	cr.Z = float32(math.Max(float64(cr.X), float64(cr.Z)))
	cr.W = float32(math.Max(float64(cr.Y), float64(cr.W)))
	dl.clipStack = append(dl.clipStack, cr)
	dl.onChangedState()
}

// PushClipRectFullScreen pushes the fullscreen clip rectangle.
func (dl *DrawList) PushClipRectFullScreen() {
	dl.clipStack = append(dl.clipStack, dl.shared.ClipRectFullscreen)
	dl.onChangedState()
}

// PopClipRect restores the previous clip rectangle. The initial rectangle
// is never popped.
func (dl *DrawList) PopClipRect() {
	if len(dl.clipStack) <= 1 {
		return
	}
	dl.clipStack = dl.clipStack[:len(dl.clipStack)-1]
	dl.onChangedState()
}

// ClipRect returns the current clip rectangle.
func (dl *DrawList) ClipRect() Vec4 { return dl.currentClip() }

// PushTextureID makes subsequent primitives sample id.
func (dl *DrawList) PushTextureID(id TextureID) {
	dl.textureStack = append(dl.textureStack, id)
	dl.onChangedState()
}

// PopTextureID restores the previous texture.
func (dl *DrawList) PopTextureID() {
	if len(dl.textureStack) <= 1 {
		return
	}
	dl.textureStack = dl.textureStack[:len(dl.textureStack)-1]
	dl.onChangedState()
}

// AddCallback appends a callback command. The renderer invokes it when it
// reaches the command.
func (dl *DrawList) AddCallback(cb DrawCallback, data any) {
	dl.popEmptyCmd()
	dl.CmdBuffer = append(dl.CmdBuffer, DrawCmd{
		Kind:             DrawCmdCallback,
		ClipRect:         dl.currentClip(),
		TextureID:        dl.currentTexture(),
		VtxOffset:        dl.vtxOffset,
		IdxOffset:        uint32(len(dl.IdxBuffer)),
		UserCallback:     cb,
		UserCallbackData: data,
	})
	dl.addDrawCmd()
}

// AddResetRenderState appends a command asking the renderer to re-apply
// its render state, typically after a callback changed it.
func (dl *DrawList) AddResetRenderState() {
	dl.popEmptyCmd()
	dl.CmdBuffer = append(dl.CmdBuffer, DrawCmd{
		Kind:      DrawCmdResetRenderState,
		ClipRect:  dl.currentClip(),
		VtxOffset: dl.vtxOffset,
		IdxOffset: uint32(len(dl.IdxBuffer)),
	})
	dl.addDrawCmd()
}

// popEmptyCmd drops a trailing elements command with no indices.
func (dl *DrawList) popEmptyCmd() {
	if n := len(dl.CmdBuffer); n > 0 {
		last := dl.CmdBuffer[n-1]
		if last.Kind == DrawCmdElements && last.ElemCount == 0 {
			dl.CmdBuffer = dl.CmdBuffer[:n-1]
		}
	}
}

// Finalize drops the trailing empty command. Context.Render calls it.
func (dl *DrawList) Finalize() {
	dl.popEmptyCmd()
}

// primReserve makes room for idxCount indices and vtxCount vertices in the
// open command and returns the index of the first new vertex relative to the
// command's vertex offset.
func (dl *DrawList) primReserve(idxCount, vtxCount int) DrawIdx {
	cmd := dl.lastCmd()
	rel := len(dl.VtxBuffer) - int(dl.vtxOffset)
	if rel+vtxCount > maxVerticesPerCmd && dl.shared.HasVtxOffset {
		dl.vtxOffset = uint32(len(dl.VtxBuffer))
		if cmd.ElemCount == 0 {
			cmd.VtxOffset = dl.vtxOffset
		} else {
			dl.addDrawCmd()
			cmd = &dl.CmdBuffer[len(dl.CmdBuffer)-1]
		}
		rel = 0
	}
	cmd.ElemCount += uint32(idxCount)
	dl.VtxBuffer = slices.Grow(dl.VtxBuffer, vtxCount)
	dl.IdxBuffer = slices.Grow(dl.IdxBuffer, idxCount)
	return DrawIdx(rel)
}

func (dl *DrawList) vtx(pos, uv Vec2, col uint32) {
	dl.VtxBuffer = append(dl.VtxBuffer, DrawVert{Pos: pos, UV: uv, Col: col})
}

// primRectUV writes an axis-aligned textured quad.
func (dl *DrawList) primRectUV(a, c, uvA, uvC Vec2, col uint32) {
	idx := dl.primReserve(6, 4)
	b := Vec2{c.X, a.Y}
	d := Vec2{a.X, c.Y}
	uvB := Vec2{uvC.X, uvA.Y}
	uvD := Vec2{uvA.X, uvC.Y}
	dl.vtx(a, uvA, col)
	dl.vtx(b, uvB, col)
	dl.vtx(c, uvC, col)
	dl.vtx(d, uvD, col)
	dl.IdxBuffer = append(dl.IdxBuffer, idx, idx+1, idx+2, idx, idx+2, idx+3)
}

// primQuad writes an arbitrary untextured quad.
func (dl *DrawList) primQuad(a, b, c, d Vec2, col uint32) {
	uv := dl.shared.TexUvWhitePixel
	idx := dl.primReserve(6, 4)
	dl.vtx(a, uv, col)
	dl.vtx(b, uv, col)
	dl.vtx(c, uv, col)
	dl.vtx(d, uv, col)
	dl.IdxBuffer = append(dl.IdxBuffer, idx, idx+1, idx+2, idx, idx+2, idx+3)
}

// AddRectFilled draws a filled rectangle.
func (dl *DrawList) AddRectFilled(min, max Vec2, col uint32) {
	if col>>24 == 0 {
		return
	}
	uv := dl.shared.TexUvWhitePixel
	dl.primRectUV(min, max, uv, uv, col)
}

// AddRect draws a rectangle outline of the given thickness inside [min, max].
func (dl *DrawList) AddRect(min, max Vec2, col uint32, thickness float32) {
	if col>>24 == 0 || thickness <= 0 {
		return
	}
	t := thickness
	dl.AddRectFilled(min, Vec2{max.X, min.Y + t}, col)
	dl.AddRectFilled(Vec2{min.X, max.Y - t}, max, col)
	dl.AddRectFilled(Vec2{min.X, min.Y + t}, Vec2{min.X + t, max.Y - t}, col)
	dl.AddRectFilled(Vec2{max.X - t, min.Y + t}, Vec2{max.X, max.Y - t}, col)
}

// AddLine draws a line as a quad of the given thickness.
func (dl *DrawList) AddLine(p1, p2 Vec2, col uint32, thickness float32) {
	if col>>24 == 0 {
		return
	}
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	inv := float32(1)
	if dx != 0 || dy != 0 {
		inv = 1 / float32(math.Sqrt(float64(dx*dx+dy*dy)))
	}
	nx := -dy * inv * thickness * 0.5
	ny := dx * inv * thickness * 0.5
	dl.primQuad(
		Vec2{p1.X + nx, p1.Y + ny},
		Vec2{p2.X + nx, p2.Y + ny},
		Vec2{p2.X - nx, p2.Y - ny},
		Vec2{p1.X - nx, p1.Y - ny},
		col,
	)
}

// AddTriangleFilled draws a filled triangle.
func (dl *DrawList) AddTriangleFilled(a, b, c Vec2, col uint32) {
	if col>>24 == 0 {
		return
	}
	uv := dl.shared.TexUvWhitePixel
	idx := dl.primReserve(3, 3)
	dl.vtx(a, uv, col)
	dl.vtx(b, uv, col)
	dl.vtx(c, uv, col)
	dl.IdxBuffer = append(dl.IdxBuffer, idx, idx+1, idx+2)
}

// AddConvexPolyFilled draws a filled convex polygon as a triangle fan.
func (dl *DrawList) AddConvexPolyFilled(points []Vec2, col uint32) {
	if col>>24 == 0 || len(points) < 3 {
		return
	}
	uv := dl.shared.TexUvWhitePixel
	n := len(points)
	idx := dl.primReserve((n-2)*3, n)
	for _, p := range points {
		dl.vtx(p, uv, col)
	}
	for i := 2; i < n; i++ {
		dl.IdxBuffer = append(dl.IdxBuffer, idx, idx+DrawIdx(i-1), idx+DrawIdx(i))
	}
}

// AddCircleFilled draws a filled circle. segments <= 0 uses the shared
// default.
func (dl *DrawList) AddCircleFilled(center Vec2, radius float32, col uint32, segments int) {
	if col>>24 == 0 || radius <= 0 {
		return
	}
	if segments <= 0 {
		segments = dl.shared.CircleSegments
	}
	segments = max(segments, 3)
	points := make([]Vec2, segments)
	for i := range points {
		a := 2 * math.Pi * float64(i) / float64(segments)
		points[i] = Vec2{
			center.X + radius*float32(math.Cos(a)),
			center.Y + radius*float32(math.Sin(a)),
		}
	}
	dl.AddConvexPolyFilled(points, col)
}

// AddImage draws a textured rectangle.
func (dl *DrawList) AddImage(tex TextureID, min, max, uvMin, uvMax Vec2, col uint32) {
	if col>>24 == 0 {
		return
	}
	push := tex != dl.currentTexture()
	if push {
		dl.PushTextureID(tex)
	}
	dl.primRectUV(min, max, uvMin, uvMax, col)
	if push {
		dl.PopTextureID()
	}
}
