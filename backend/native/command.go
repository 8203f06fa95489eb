// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/wgpu/hal"
)

// drawCall is a DrawIndexedInstanced call with the state bound when it
// was recorded.
type drawCall struct {
	indexCount    uint32
	instanceCount uint32
	startIndex    uint32
	baseVertex    int32
	startInstance uint32
	state         boundState
}

// boundState is the state a command list carries between calls.
// Constant slices are replaced, never modified, so draws may share them.
type boundState struct {
	rootSig     *RootSignature
	pipeline    *PipelineState
	viewport    gfx.Viewport
	scissor     gfx.Rect
	hasScissor  bool
	vb          gfx.VertexBufferView
	ib          gfx.IndexBufferView
	blendFactor [4]float32
	constants   map[uint32][]uint32
	tables      map[uint32]gfx.GPUDescriptorHandle
}

func (s *boundState) clone() boundState {
	c := *s
	c.constants = make(map[uint32][]uint32, len(s.constants))
	for k, v := range s.constants {
		c.constants[k] = v
	}
	c.tables = make(map[uint32]gfx.GPUDescriptorHandle, len(s.tables))
	for k, v := range s.tables {
		c.tables[k] = v
	}
	return c
}

// renderTarget is the color attachment draws render into.
type renderTarget struct {
	view          hal.TextureView
	width, height uint32
}

// CommandList records commands replayed by Queue.ExecuteCommandLists into
// a HAL command encoder.
type CommandList struct {
	dev      *Device
	typ      gfx.CommandListType
	open     bool
	released bool
	err      error
	state    boundState
	target   renderTarget
	ops      []func(*replay) error
	calls    []string
	draws    int
}

var _ gfx.GraphicsCommandList = (*CommandList)(nil)

func (l *CommandList) reset(initial gfx.PipelineState) {
	l.open = true
	l.err = nil
	l.ops = l.ops[:0]
	l.calls = l.calls[:0]
	l.draws = 0
	l.state = boundState{
		constants: make(map[uint32][]uint32),
		tables:    make(map[uint32]gfx.GPUDescriptorHandle),
	}
	if p, ok := initial.(*PipelineState); ok {
		l.state.pipeline = p
	}
}

// record notes a call and reports whether the list accepts it.
func (l *CommandList) record(name string) bool {
	if !l.open {
		l.err = errors.Join(l.err, fmt.Errorf("native: %s: %w", name, gfx.ErrListClosed))
		return false
	}
	l.calls = append(l.calls, name)
	return true
}

func (l *CommandList) fail(err error) {
	l.err = errors.Join(l.err, err)
}

// Calls returns the names of the methods recorded since the last reset.
func (l *CommandList) Calls() []string { return slices.Clone(l.calls) }

// SetRenderTarget attaches view, of the given size, as the color target
// of subsequent draws. The target survives Reset.
// Draws recorded without a target are validated but not executed.
func (l *CommandList) SetRenderTarget(view hal.TextureView, width, height uint32) {
	l.target = renderTarget{view: view, width: width, height: height}
}

// ClearRenderTarget records a clear of the attached render target.
func (l *CommandList) ClearRenderTarget(c gputypes.Color) {
	if !l.record("ClearRenderTargetView") {
		return
	}
	l.ops = append(l.ops, func(x *replay) error {
		x.endPass()
		x.clear = &c
		return nil
	})
}

// SetGraphicsRootSignature implements gfx.GraphicsCommandList.
func (l *CommandList) SetGraphicsRootSignature(rs gfx.RootSignature) {
	if !l.record("SetGraphicsRootSignature") {
		return
	}
	r, ok := rs.(*RootSignature)
	if !ok || r == nil {
		l.fail(fmt.Errorf("native: foreign root signature: %w", gfx.ErrInvalidDesc))
		return
	}
	l.state.rootSig = r
	clear(l.state.constants)
	clear(l.state.tables)
}

// SetPipelineState implements gfx.GraphicsCommandList.
func (l *CommandList) SetPipelineState(pso gfx.PipelineState) {
	if !l.record("SetPipelineState") {
		return
	}
	p, ok := pso.(*PipelineState)
	if !ok || p == nil {
		l.fail(fmt.Errorf("native: foreign pipeline state: %w", gfx.ErrInvalidDesc))
		return
	}
	l.state.pipeline = p
}

// SetGraphicsRoot32BitConstants implements gfx.GraphicsCommandList.
func (l *CommandList) SetGraphicsRoot32BitConstants(rootIndex uint32, values []uint32, destOffset uint32) {
	if !l.record("SetGraphicsRoot32BitConstants") {
		return
	}
	rs := l.state.rootSig
	if rs == nil || int(rootIndex) >= len(rs.params) || rs.params[rootIndex].uniformSize == 0 {
		l.fail(fmt.Errorf("native: root parameter %d is not a constants parameter: %w", rootIndex, gfx.ErrInvalidDesc))
		return
	}
	n := rs.desc.Parameters[rootIndex].Constants.Num32BitValues
	if uint64(destOffset)+uint64(len(values)) > uint64(n) {
		l.fail(fmt.Errorf("native: %d constants at %d overflow %d: %w", len(values), destOffset, n, gfx.ErrInvalidDesc))
		return
	}
	next := make([]uint32, n)
	copy(next, l.state.constants[rootIndex])
	copy(next[destOffset:], values)
	l.state.constants[rootIndex] = next
}

// SetGraphicsRootDescriptorTable implements gfx.GraphicsCommandList.
func (l *CommandList) SetGraphicsRootDescriptorTable(rootIndex uint32, base gfx.GPUDescriptorHandle) {
	if !l.record("SetGraphicsRootDescriptorTable") {
		return
	}
	rs := l.state.rootSig
	if rs == nil || int(rootIndex) >= len(rs.params) || rs.params[rootIndex].textures == 0 {
		l.fail(fmt.Errorf("native: root parameter %d is not a descriptor table: %w", rootIndex, gfx.ErrInvalidDesc))
		return
	}
	l.state.tables[rootIndex] = base
}

// RSSetViewports implements gfx.GraphicsCommandList. Only the first
// viewport is used.
func (l *CommandList) RSSetViewports(viewports []gfx.Viewport) {
	if !l.record("RSSetViewports") || len(viewports) == 0 {
		return
	}
	l.state.viewport = viewports[0]
}

// RSSetScissorRects implements gfx.GraphicsCommandList. Only the first
// rectangle is used.
func (l *CommandList) RSSetScissorRects(rects []gfx.Rect) {
	if !l.record("RSSetScissorRects") || len(rects) == 0 {
		return
	}
	l.state.scissor = rects[0]
	l.state.hasScissor = true
}

// IASetVertexBuffers implements gfx.GraphicsCommandList.
func (l *CommandList) IASetVertexBuffers(startSlot uint32, views []gfx.VertexBufferView) {
	if !l.record("IASetVertexBuffers") {
		return
	}
	if startSlot != 0 || len(views) != 1 {
		l.fail(fmt.Errorf("native: %d vertex buffers at slot %d: %w", len(views), startSlot, gfx.ErrInvalidDesc))
		return
	}
	l.state.vb = views[0]
}

// IASetIndexBuffer implements gfx.GraphicsCommandList.
func (l *CommandList) IASetIndexBuffer(v *gfx.IndexBufferView) {
	if !l.record("IASetIndexBuffer") {
		return
	}
	if v == nil {
		l.state.ib = gfx.IndexBufferView{}
		return
	}
	if _, err := indexFormat(v.Format); err != nil {
		l.fail(err)
		return
	}
	l.state.ib = *v
}

// IASetPrimitiveTopology implements gfx.GraphicsCommandList.
func (l *CommandList) IASetPrimitiveTopology(topology gfx.PrimitiveTopology) {
	if !l.record("IASetPrimitiveTopology") {
		return
	}
	if topology != gfx.PrimitiveTopologyTriangleList {
		l.fail(fmt.Errorf("native: topology %d not supported: %w", topology, gfx.ErrInvalidDesc))
	}
}

// OMSetBlendFactor implements gfx.GraphicsCommandList.
func (l *CommandList) OMSetBlendFactor(factor [4]float32) {
	if !l.record("OMSetBlendFactor") {
		return
	}
	l.state.blendFactor = factor
}

// DrawIndexedInstanced implements gfx.GraphicsCommandList.
func (l *CommandList) DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndexLocation uint32,
	baseVertexLocation int32, startInstanceLocation uint32) {
	if !l.record("DrawIndexedInstanced") {
		return
	}
	st := &l.state
	switch {
	case st.rootSig == nil || st.pipeline == nil:
		l.fail(fmt.Errorf("native: draw without root signature or pipeline: %w", gfx.ErrInvalidDesc))
		return
	case st.pipeline.rs != st.rootSig:
		l.fail(fmt.Errorf("native: pipeline built for another root signature: %w", gfx.ErrInvalidDesc))
		return
	case st.vb.Buffer == nil || st.ib.Buffer == nil:
		l.fail(fmt.Errorf("native: draw without vertex or index buffer: %w", gfx.ErrInvalidDesc))
		return
	}
	for i, p := range st.rootSig.params {
		idx := uint32(i) //nolint:gosec // few root parameters
		_, hasConst := st.constants[idx]
		_, hasTable := st.tables[idx]
		if (p.uniformSize != 0 && !hasConst) || (p.textures != 0 && !hasTable) {
			l.fail(fmt.Errorf("native: draw with root parameter %d unbound: %w", i, gfx.ErrInvalidDesc))
			return
		}
	}

	dc := &drawCall{
		indexCount:    indexCountPerInstance,
		instanceCount: instanceCount,
		startIndex:    startIndexLocation,
		baseVertex:    baseVertexLocation,
		startInstance: startInstanceLocation,
		state:         st.clone(),
	}
	l.draws++
	l.ops = append(l.ops, func(x *replay) error { return x.draw(dc) })
}

// CopyTextureRegion implements gfx.GraphicsCommandList. Buffer to texture
// copies are written through the queue, texture to buffer copies through
// the command encoder.
func (l *CommandList) CopyTextureRegion(dst *gfx.TextureCopyLocation, dstX, dstY, dstZ uint32, src *gfx.TextureCopyLocation, srcBox *gfx.Box) {
	if !l.record("CopyTextureRegion") {
		return
	}
	if dst == nil || src == nil || dstZ != 0 {
		l.fail(fmt.Errorf("native: copy locations: %w", gfx.ErrInvalidDesc))
		return
	}
	dr, dok := dst.Resource.(*Resource)
	sr, sok := src.Resource.(*Resource)
	if !dok || !sok {
		l.fail(fmt.Errorf("native: copy of foreign resources: %w", gfx.ErrInvalidDesc))
		return
	}

	switch {
	case dst.Type == gfx.TextureCopyTypeSubresourceIndex && src.Type == gfx.TextureCopyTypePlacedFootprint:
		fp := src.PlacedFootprint
		box := gfx.Box{Right: fp.Footprint.Width, Bottom: fp.Footprint.Height, Back: 1}
		if srcBox != nil {
			box = *srcBox
		}
		l.ops = append(l.ops, func(*replay) error { return writeTexture(dr, dstX, dstY, sr, fp, box) })
	case dst.Type == gfx.TextureCopyTypePlacedFootprint && src.Type == gfx.TextureCopyTypeSubresourceIndex:
		if srcBox != nil || dstX != 0 || dstY != 0 {
			l.fail(fmt.Errorf("native: partial readback copies are not supported: %w", gfx.ErrInvalidDesc))
			return
		}
		fp := dst.PlacedFootprint
		l.ops = append(l.ops, func(x *replay) error { return x.readTexture(dr, sr, fp) })
	default:
		l.fail(fmt.Errorf("native: copy types %d to %d: %w", src.Type, dst.Type, gfx.ErrInvalidDesc))
	}
}

// writeTexture uploads box of the footprint in src to dst at (x, y).
func writeTexture(dst *Resource, x, y uint32, src *Resource, fp gfx.PlacedSubresourceFootprint, box gfx.Box) error {
	if dst.texture == nil || src.shadow == nil {
		return fmt.Errorf("native: copy needs a texture and an upload buffer: %w", gfx.ErrInvalidDesc)
	}
	if src.released || dst.released {
		return gfx.ErrReleased
	}
	bpp := uint64(fp.Footprint.Format.Size())
	w, h := box.Right-box.Left, box.Bottom-box.Top
	if box.Right <= box.Left || box.Bottom <= box.Top || box.Right > fp.Footprint.Width || box.Bottom > fp.Footprint.Height {
		return fmt.Errorf("native: copy box %+v: %w", box, gfx.ErrInvalidDesc)
	}
	pitch := uint64(fp.Footprint.RowPitch)
	start := fp.Offset + uint64(box.Top)*pitch + uint64(box.Left)*bpp
	end := start + uint64(h-1)*pitch + uint64(w)*bpp
	if end > uint64(len(src.shadow)) {
		return fmt.Errorf("native: copy reads past the upload buffer: %w", gfx.ErrInvalidDesc)
	}
	if src.err != nil {
		return fmt.Errorf("native: upload %q: %w", src.name, src.takeErr())
	}
	err := src.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  dst.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: x, Y: y},
			Aspect:   gputypes.TextureAspectAll,
		},
		src.shadow[start:end],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  fp.Footprint.RowPitch,
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture %q: %w", dst.name, err)
	}
	return nil
}

// ResourceBarrier implements gfx.GraphicsCommandList.
func (l *CommandList) ResourceBarrier(barriers []gfx.ResourceBarrier) {
	if !l.record("ResourceBarrier") {
		return
	}
	for _, b := range barriers {
		t := b.Transition
		r, ok := t.Resource.(*Resource)
		if !ok || r == nil {
			l.fail(fmt.Errorf("native: barrier on foreign resource: %w", gfx.ErrInvalidDesc))
			continue
		}
		l.ops = append(l.ops, func(x *replay) error {
			if r.state != t.StateBefore {
				x.dev.log().Warn("native: barrier state mismatch", "resource", r.name, "have", r.state, "want", t.StateBefore)
			}
			if r.texture != nil {
				x.endPass()
				x.encoder.TransitionTextures([]hal.TextureBarrier{{
					Texture: r.texture,
					Usage: hal.TextureUsageTransition{
						OldUsage: textureUsage(t.StateBefore),
						NewUsage: textureUsage(t.StateAfter),
					},
				}})
			}
			r.state = t.StateAfter
			return nil
		})
	}
}

// Close implements gfx.GraphicsCommandList.
func (l *CommandList) Close() error {
	if l.released {
		return gfx.ErrReleased
	}
	if !l.open {
		return errors.Join(l.err, gfx.ErrListClosed)
	}
	l.open = false
	return l.err
}

// Reset implements gfx.GraphicsCommandList.
func (l *CommandList) Reset(allocator gfx.CommandAllocator, initial gfx.PipelineState) error {
	if l.released {
		return gfx.ErrReleased
	}
	if l.open {
		return gfx.ErrListOpen
	}
	if a, ok := allocator.(*Allocator); !ok || a.typ != l.typ {
		return fmt.Errorf("native: reset with mismatched allocator: %w", gfx.ErrInvalidDesc)
	}
	l.reset(initial)
	return nil
}

// Release implements gfx.GraphicsCommandList.
func (l *CommandList) Release() {
	l.released = true
	l.ops = nil
}

// Allocator is a gfx.CommandAllocator. Recorded commands live in their
// command list, so it only carries the list type.
type Allocator struct {
	typ gfx.CommandListType
}

// Reset implements gfx.CommandAllocator.
func (a *Allocator) Reset() error { return nil }

// Release implements gfx.CommandAllocator.
func (a *Allocator) Release() {}

// Queue submits command lists to the HAL queue. Each execution waits for
// its submission to complete.
type Queue struct {
	dev      *Device
	typ      gfx.CommandListType
	mu       sync.Mutex
	last     uint64
	released bool
}

var _ gfx.CommandQueue = (*Queue)(nil)

// ExecuteCommandLists implements gfx.CommandQueue. Lists run in order; the
// first failing list stops execution and its error is returned.
func (q *Queue) ExecuteCommandLists(lists []gfx.GraphicsCommandList) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return gfx.ErrReleased
	}
	for i, gl := range lists {
		l, ok := gl.(*CommandList)
		switch {
		case !ok:
			return fmt.Errorf("native: list %d is foreign: %w", i, gfx.ErrInvalidDesc)
		case l.released:
			return gfx.ErrReleased
		case l.open:
			return fmt.Errorf("native: list %d: %w", i, gfx.ErrListOpen)
		case l.typ != q.typ:
			return fmt.Errorf("native: list type %d on queue type %d: %w", l.typ, q.typ, gfx.ErrInvalidDesc)
		}
		if err := q.execute(l); err != nil {
			q.dev.log().Warn("native: command list execution failed", "list", i, "err", err)
			return fmt.Errorf("native: list %d: %w", i, err)
		}
		q.dev.log().Debug("native: executed command list", "list", i, "ops", len(l.ops), "draws", l.draws)
	}
	return nil
}

func (q *Queue) execute(l *CommandList) error {
	device := q.dev.device
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "imrender commands"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("imrender commands"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	x := newReplay(q.dev, encoder, l.target)
	defer x.release()
	for _, op := range l.ops {
		if err := op(x); err != nil {
			x.endPass()
			encoder.DiscardEncoding()
			return err
		}
	}
	x.finish()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	idx, err := q.dev.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	q.last = idx
	if err := q.dev.waitSubmission(idx); err != nil {
		return err
	}
	if x.skipped > 0 {
		q.dev.log().Debug("native: draws skipped without a render target", "draws", x.skipped)
	}
	return nil
}

// Signal implements gfx.CommandQueue. The fence reaches value once the
// last submission of the queue completes.
func (q *Queue) Signal(fence gfx.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok || f == nil {
		return fmt.Errorf("native: foreign fence: %w", gfx.ErrInvalidDesc)
	}
	q.mu.Lock()
	last := q.last
	q.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return gfx.ErrReleased
	}
	f.pending = value
	f.submission = last
	return nil
}

// Release implements gfx.CommandQueue.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released = true
}

// Fence is a gfx.Fence tracking the HAL submission index its pending
// value was signalled after.
type Fence struct {
	dev        *Device
	mu         sync.Mutex
	completed  atomic.Uint64
	pending    uint64
	submission uint64
	released   bool
}

var _ gfx.Fence = (*Fence)(nil)

// CompletedValue implements gfx.Fence. It reports the last value a Wait
// observed.
func (f *Fence) CompletedValue() uint64 { return f.completed.Load() }

// Wait implements gfx.Fence.
func (f *Fence) Wait(value uint64) error {
	if f.completed.Load() >= value {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return gfx.ErrReleased
	}
	if f.pending < value {
		return fmt.Errorf("native: wait for %d, last signal %d: %w", value, f.pending, ErrIncomplete)
	}
	if err := f.dev.waitSubmission(f.submission); err != nil {
		return err
	}
	f.completed.Store(f.pending)
	return nil
}

// Release implements gfx.Fence.
func (f *Fence) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

// waitSubmission blocks until the HAL queue has completed submission idx.
func (d *Device) waitSubmission(idx uint64) error {
	if d.queue.PollCompleted() >= idx {
		return nil
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait for submission %d: %w", idx, err)
	}
	if done := d.queue.PollCompleted(); done < idx {
		return fmt.Errorf("native: submission %d, completed %d: %w", idx, done, ErrIncomplete)
	}
	return nil
}
