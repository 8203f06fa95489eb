package imrender

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

// Renderer records ui draw data into graphics command lists.
//
// Device objects are created lazily by NewFrame. Each frame in flight owns
// its vertex and index buffers, used round robin by RenderDrawData, so the
// caller must not record more frames than framesInFlight before the oldest
// has finished executing on the GPU.
//
// A Renderer is not safe for concurrent use.
type Renderer struct {
	ctx            *ui.Context
	device         gfx.Device
	framesInFlight int
	rtvFormat      gfx.Format
	fontCPU        gfx.CPUDescriptorHandle
	fontGPU        gfx.GPUDescriptorHandle
	opts           options

	objects    *deviceObjects
	frameIndex uint64
	stats      RendererStats
	closed     bool
}

// New creates a renderer drawing ctx into render targets of rtvFormat.
//
// fontCPU and fontGPU address the same shader visible descriptor, which
// receives the font atlas view. The GPU handle becomes the atlas texture
// id. New advertises vertex offset support and the renderer name on ctx
// but creates no device objects.
func New(ctx *ui.Context, device gfx.Device, framesInFlight int, rtvFormat gfx.Format,
	fontCPU gfx.CPUDescriptorHandle, fontGPU gfx.GPUDescriptorHandle, opts ...Option) (*Renderer, error) {
	switch {
	case ctx == nil:
		return nil, ErrNilContext
	case device == nil:
		return nil, ErrNilDevice
	case framesInFlight < 1:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFramesInFlight, framesInFlight)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		ctx:            ctx,
		device:         device,
		framesInFlight: framesInFlight,
		rtvFormat:      rtvFormat,
		fontCPU:        fontCPU,
		fontGPU:        fontGPU,
		opts:           o,
		frameIndex:     math.MaxUint64,
	}
	ctx.BackendFlags |= ui.BackendFlagsRendererHasVtxOffset
	ctx.BackendRendererName = RendererName
	propagateLogger(device, r.log())

	r.log().Debug("imrender: renderer created",
		slog.Int("frames_in_flight", framesInFlight),
		slog.String("rtv_format", rtvFormat.String()))
	return r, nil
}

func (r *Renderer) log() *slog.Logger {
	if r.opts.logger != nil {
		return r.opts.logger
	}
	return Logger()
}

// NewFrame creates the device objects if they do not exist yet.
// Call it before the ui context starts a frame.
func (r *Renderer) NewFrame() error {
	if r.closed {
		return ErrClosed
	}
	if r.objects != nil {
		return nil
	}
	return r.CreateDeviceObjects()
}

// CreateDeviceObjects releases any existing device objects and builds
// them again, uploading the font atlas.
func (r *Renderer) CreateDeviceObjects() error {
	if r.closed {
		return ErrClosed
	}
	r.InvalidateDeviceObjects()

	objs, err := r.createDeviceObjects()
	if err != nil {
		r.log().Warn("imrender: device objects", slog.Any("error", err))
		return err
	}
	r.objects = objs
	r.stats.DeviceObjectBuilds++
	r.log().Info("imrender: device objects created", slog.Int("frames_in_flight", r.framesInFlight))
	return nil
}

// InvalidateDeviceObjects releases every device object and clears the
// font atlas texture id. The next NewFrame rebuilds them.
func (r *Renderer) InvalidateDeviceObjects() {
	r.ctx.Fonts.SetTexID(0)
	if r.objects == nil {
		return
	}
	r.objects.release()
	r.objects = nil
	r.log().Debug("imrender: device objects invalidated")
}

// DeviceObjectsValid reports whether device objects currently exist.
func (r *Renderer) DeviceObjectsValid() bool { return r.objects != nil }

// FontTextureID returns the texture id of the uploaded font atlas, or 0
// when device objects do not exist.
func (r *Renderer) FontTextureID() ui.TextureID {
	return ui.TextureID(r.ctx.Fonts.TexID())
}

// Stats returns a snapshot of the renderer counters.
func (r *Renderer) Stats() RendererStats { return r.stats }

// Close releases the device objects. The renderer cannot be used afterwards.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.InvalidateDeviceObjects()
	r.closed = true
}

// RenderDrawData records dd into list, which must be open and have the
// render target and a shader visible descriptor heap bound.
//
// Draw data with an empty display is ignored. Every other call consumes
// the buffers of the next frame in flight.
func (r *Renderer) RenderDrawData(dd *ui.DrawData, list gfx.GraphicsCommandList) error {
	if r.closed {
		return ErrClosed
	}
	if dd == nil || dd.DisplaySize.X <= 0 || dd.DisplaySize.Y <= 0 {
		r.stats.FramesSkipped++
		return nil
	}
	if r.objects == nil {
		return ErrDeviceObjectsNotBuilt
	}

	r.frameIndex++
	b := &r.objects.buffers[r.frameIndex%uint64(len(r.objects.buffers))]

	vtx, idx := frameCounts(dd)
	if err := b.reserve(r.device, vtx, idx, &r.opts, &r.stats, r.log()); err != nil {
		return err
	}
	if err := b.upload(dd); err != nil {
		return err
	}

	setupRenderState(dd, list, r.objects, b)
	r.renderCommands(dd, list, b)
	r.stats.FramesRendered++
	return nil
}

// renderCommands walks every command of every list. Vertex and index
// offsets of a list are relative to the list, so they are rebased onto the
// concatenated buffers.
func (r *Renderer) renderCommands(dd *ui.DrawData, list gfx.GraphicsCommandList, b *renderBuffers) {
	var globalVtx, globalIdx uint32
	for _, dl := range dd.CmdLists {
		for i := range dl.CmdBuffer {
			cmd := &dl.CmdBuffer[i]
			switch cmd.Kind {
			case ui.DrawCmdResetRenderState:
				setupRenderState(dd, list, r.objects, b)
				r.stats.StateResets++
			case ui.DrawCmdCallback:
				if cmd.UserCallback != nil {
					cmd.UserCallback(dl, cmd)
				}
				r.stats.Callbacks++
			case ui.DrawCmdElements:
				minX := cmd.ClipRect.X - dd.DisplayPos.X
				minY := cmd.ClipRect.Y - dd.DisplayPos.Y
				maxX := cmd.ClipRect.Z - dd.DisplayPos.X
				maxY := cmd.ClipRect.W - dd.DisplayPos.Y
				if maxX <= minX || maxY <= minY {
					r.stats.ClippedCommands++
					continue
				}

				list.SetGraphicsRootDescriptorTable(rootParamTexture, gfx.GPUDescriptorHandle(cmd.TextureID))
				list.RSSetScissorRects([]gfx.Rect{{
					Left:   int32(minX),
					Top:    int32(minY),
					Right:  int32(maxX),
					Bottom: int32(maxY),
				}})
				list.DrawIndexedInstanced(cmd.ElemCount, 1, cmd.IdxOffset+globalIdx,
					int32(cmd.VtxOffset+globalVtx), 0) //nolint:gosec // vertex counts fit in int32
				r.stats.DrawCalls++
			}
		}
		globalIdx += uint32(len(dl.IdxBuffer)) //nolint:gosec // bounded by the index buffer
		globalVtx += uint32(len(dl.VtxBuffer)) //nolint:gosec // bounded by the vertex buffer
	}
}
