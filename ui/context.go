// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ui is the draw-list side of an immediate-mode GUI: a context
// holding the font atlas and backend capabilities, and draw lists that
// accumulate vertices, indices and commands for a frame.
//
// A frame looks like:
//
//	ctx.DisplaySize = ui.Vec2{X: 1280, Y: 720}
//	if err := ctx.NewFrame(); err != nil { ... }
//	dl := ctx.BackgroundDrawList()
//	dl.AddRectFilled(ui.Vec2{X: 10, Y: 10}, ui.Vec2{X: 110, Y: 40}, ui.Color(40, 90, 160, 255))
//	dl.AddText(ui.Vec2{X: 16, Y: 16}, ui.ColorWhite, "Hello")
//	drawData := ctx.Render()
//	// hand drawData to a renderer
package ui

import (
	"errors"

	"github.com/gogpu/imrender/fontatlas"
)

// BackendFlags advertise renderer and platform capabilities.
type BackendFlags uint32

// Backend flags.
const (
	BackendFlagsNone BackendFlags = 0

	// BackendFlagsHasGamepad is set by platform backends with gamepad support.
	BackendFlagsHasGamepad BackendFlags = 1 << 0

	// BackendFlagsHasMouseCursors is set by platform backends that honour
	// cursor shape requests.
	BackendFlagsHasMouseCursors BackendFlags = 1 << 1

	// BackendFlagsRendererHasVtxOffset is set by renderers that honour
	// DrawCmd.VtxOffset, letting draw lists exceed 64K vertices with 16-bit
	// indices.
	BackendFlagsRendererHasVtxOffset BackendFlags = 1 << 3
)

// ErrFontAtlasNotBuilt is returned by NewFrame when the renderer has not
// built and uploaded the font atlas yet.
var ErrFontAtlasNotBuilt = errors.New("ui: font atlas not built")

// Context owns per-application GUI state.
type Context struct {
	// DisplayPos is the top-left of the display in display coordinates.
	DisplayPos Vec2

	// DisplaySize is the display size. Frames with a non-positive size are
	// skipped by renderers.
	DisplaySize Vec2

	// FramebufferScale is pixels per display unit.
	FramebufferScale Vec2

	// BackendFlags are set by the platform and renderer backends.
	BackendFlags BackendFlags

	// BackendRendererName identifies the renderer for diagnostics.
	BackendRendererName string

	// Fonts is the font atlas shared by all draw lists.
	Fonts *fontatlas.Atlas

	shared     DrawListSharedData
	background *DrawList
	foreground *DrawList
	lists      []*DrawList
	drawData   DrawData
	frameCount int
}

// NewContext creates a context with an empty font atlas.
func NewContext() *Context {
	return &Context{
		FramebufferScale: Vec2{1, 1},
		Fonts:            fontatlas.New(),
		shared:           DrawListSharedData{CircleSegments: 24},
	}
}

// FrameCount returns the number of frames started.
func (c *Context) FrameCount() int { return c.frameCount }

// Font returns the default font, or nil before the atlas is built.
func (c *Context) Font() *fontatlas.Font {
	if len(c.Fonts.Fonts) == 0 {
		return nil
	}
	return c.Fonts.Fonts[0]
}

// NewFrame starts a frame. The font atlas must have been built, which the
// renderer does when it creates its device objects.
func (c *Context) NewFrame() error {
	if !c.Fonts.IsBuilt() {
		return ErrFontAtlasNotBuilt
	}
	c.frameCount++

	c.shared.Font = c.Font()
	c.shared.FontTexID = TextureID(c.Fonts.TexID())
	c.shared.TexUvWhitePixel = Vec2{c.Fonts.TexUvWhitePixel[0], c.Fonts.TexUvWhitePixel[1]}
	c.shared.HasVtxOffset = c.BackendFlags&BackendFlagsRendererHasVtxOffset != 0
	c.shared.ClipRectFullscreen = Vec4{
		c.DisplayPos.X, c.DisplayPos.Y,
		c.DisplayPos.X + c.DisplaySize.X, c.DisplayPos.Y + c.DisplaySize.Y,
	}

	c.ensureLists()
	c.background.Clear()
	c.foreground.Clear()
	for _, l := range c.lists {
		l.Clear()
	}
	c.lists = c.lists[:0]
	return nil
}

// BackgroundDrawList returns the list drawn before all others.
func (c *Context) BackgroundDrawList() *DrawList {
	c.ensureLists()
	return c.background
}

// ForegroundDrawList returns the list drawn after all others.
func (c *Context) ForegroundDrawList() *DrawList {
	c.ensureLists()
	return c.foreground
}

// NewDrawList returns a fresh list drawn, in creation order, between the
// background and foreground lists of the current frame.
func (c *Context) NewDrawList() *DrawList {
	c.ensureLists()
	dl := NewDrawList(&c.shared)
	c.lists = append(c.lists, dl)
	return dl
}

func (c *Context) ensureLists() {
	if c.background == nil {
		c.background = NewDrawList(&c.shared)
		c.foreground = NewDrawList(&c.shared)
	}
}

// Render ends the frame and returns its draw data. Empty lists are left
// out. The returned value is owned by the context and valid until the next
// NewFrame.
func (c *Context) Render() *DrawData {
	c.ensureLists()

	lists := make([]*DrawList, 0, len(c.lists)+2)
	for _, l := range append(append([]*DrawList{c.background}, c.lists...), c.foreground) {
		l.Finalize()
		if len(l.CmdBuffer) == 0 {
			continue
		}
		lists = append(lists, l)
	}
	c.drawData = *NewDrawData(c.DisplayPos, c.DisplaySize, lists...)
	c.drawData.FramebufferScale = c.FramebufferScale
	return &c.drawData
}

// DrawData returns the draw data of the last Render.
func (c *Context) DrawData() *DrawData {
	return &c.drawData
}
