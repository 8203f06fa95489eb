package soft

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/imrender/gfx"
)

// Draw is a DrawIndexedInstanced call together with the state bound when
// it was recorded.
type Draw struct {
	IndexCount    uint32
	InstanceCount uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32

	RootSignature gfx.RootSignature
	Pipeline      gfx.PipelineState
	Topology      gfx.PrimitiveTopology
	Viewport      gfx.Viewport
	Scissor       gfx.Rect
	VertexBuffer  gfx.VertexBufferView
	IndexBuffer   gfx.IndexBufferView
	BlendFactor   [4]float32

	// RootConstants maps root parameter indices to their constants.
	RootConstants map[uint32][]uint32

	// RootTables maps root parameter indices to bound descriptor tables.
	RootTables map[uint32]gfx.GPUDescriptorHandle

	target *image.RGBA
}

// boundState is the state a command list carries between calls.
type boundState struct {
	rootSig     *RootSignature
	pipeline    *PipelineState
	topology    gfx.PrimitiveTopology
	viewports   []gfx.Viewport
	scissors    []gfx.Rect
	vb          gfx.VertexBufferView
	ib          gfx.IndexBufferView
	blendFactor [4]float32
	constants   map[uint32][]uint32
	tables      map[uint32]gfx.GPUDescriptorHandle
	target      *image.RGBA
}

// CommandList records commands as operations executed by a Queue.
type CommandList struct {
	dev      *Device
	typ      gfx.CommandListType
	open     bool
	released bool
	err      error
	state    boundState
	ops      []func() error
	calls    []string
	draws    []Draw
}

var _ gfx.GraphicsCommandList = (*CommandList)(nil)

func (l *CommandList) reset(initial gfx.PipelineState) {
	l.open = true
	l.err = nil
	l.ops = l.ops[:0]
	l.calls = l.calls[:0]
	l.draws = l.draws[:0]
	l.state = boundState{
		constants: make(map[uint32][]uint32),
		tables:    make(map[uint32]gfx.GPUDescriptorHandle),
		target:    l.state.target,
	}
	if p, ok := initial.(*PipelineState); ok {
		l.state.pipeline = p
	}
}

// record notes a call and reports whether the list accepts it.
func (l *CommandList) record(name string) bool {
	if !l.open {
		l.err = errors.Join(l.err, fmt.Errorf("soft: %s: %w", name, gfx.ErrListClosed))
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

// Draws returns the draws recorded since the last reset.
func (l *CommandList) Draws() []Draw { return slices.Clone(l.draws) }

// SetRenderTarget attaches img as render target 0 for subsequent draws.
// Draws recorded without a target are validated but not rasterized.
func (l *CommandList) SetRenderTarget(img *image.RGBA) {
	l.state.target = img
}

// ClearRenderTarget records a clear of the attached render target.
func (l *CommandList) ClearRenderTarget(c [4]uint8) {
	if !l.record("ClearRenderTargetView") {
		return
	}
	img := l.state.target
	if img == nil {
		return
	}
	l.ops = append(l.ops, func() error {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			copy(img.Pix[i:i+4], c[:])
		}
		return nil
	})
}

// SetGraphicsRootSignature implements gfx.GraphicsCommandList.
func (l *CommandList) SetGraphicsRootSignature(rs gfx.RootSignature) {
	if !l.record("SetGraphicsRootSignature") {
		return
	}
	r, ok := rs.(*RootSignature)
	if !ok {
		l.fail(fmt.Errorf("soft: foreign root signature: %w", gfx.ErrInvalidDesc))
		return
	}
	l.state.rootSig = r
}

// SetPipelineState implements gfx.GraphicsCommandList.
func (l *CommandList) SetPipelineState(pso gfx.PipelineState) {
	if !l.record("SetPipelineState") {
		return
	}
	p, ok := pso.(*PipelineState)
	if !ok {
		l.fail(fmt.Errorf("soft: foreign pipeline state: %w", gfx.ErrInvalidDesc))
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
	if rs == nil || int(rootIndex) >= len(rs.desc.Parameters) {
		l.fail(fmt.Errorf("soft: root constants at %d without matching root signature: %w", rootIndex, gfx.ErrInvalidDesc))
		return
	}
	p := rs.desc.Parameters[rootIndex]
	if p.ParameterType != gfx.RootParameterType32BitConstants ||
		destOffset+uint32(len(values)) > p.Constants.Num32BitValues { //nolint:gosec // values is at most 64 long
		l.fail(fmt.Errorf("soft: root parameter %d does not hold %d constants at %d: %w", rootIndex, len(values), destOffset, gfx.ErrInvalidDesc))
		return
	}
	cur := l.state.constants[rootIndex]
	if len(cur) < int(p.Constants.Num32BitValues) {
		cur = make([]uint32, p.Constants.Num32BitValues)
	} else {
		cur = slices.Clone(cur)
	}
	copy(cur[destOffset:], values)
	l.state.constants[rootIndex] = cur
}

// SetGraphicsRootDescriptorTable implements gfx.GraphicsCommandList.
func (l *CommandList) SetGraphicsRootDescriptorTable(rootIndex uint32, base gfx.GPUDescriptorHandle) {
	if !l.record("SetGraphicsRootDescriptorTable") {
		return
	}
	rs := l.state.rootSig
	if rs == nil || int(rootIndex) >= len(rs.desc.Parameters) ||
		rs.desc.Parameters[rootIndex].ParameterType != gfx.RootParameterTypeDescriptorTable {
		l.fail(fmt.Errorf("soft: root parameter %d is not a descriptor table: %w", rootIndex, gfx.ErrInvalidDesc))
		return
	}
	l.state.tables[rootIndex] = base
}

// RSSetViewports implements gfx.GraphicsCommandList.
func (l *CommandList) RSSetViewports(viewports []gfx.Viewport) {
	if l.record("RSSetViewports") {
		l.state.viewports = slices.Clone(viewports)
	}
}

// RSSetScissorRects implements gfx.GraphicsCommandList.
func (l *CommandList) RSSetScissorRects(rects []gfx.Rect) {
	if l.record("RSSetScissorRects") {
		l.state.scissors = slices.Clone(rects)
	}
}

// IASetVertexBuffers implements gfx.GraphicsCommandList.
func (l *CommandList) IASetVertexBuffers(startSlot uint32, views []gfx.VertexBufferView) {
	if !l.record("IASetVertexBuffers") {
		return
	}
	if startSlot != 0 || len(views) != 1 {
		l.fail(fmt.Errorf("soft: only vertex buffer slot 0 is supported: %w", gfx.ErrInvalidDesc))
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
	if v.Format != gfx.FormatR16Uint && v.Format != gfx.FormatR32Uint {
		l.fail(fmt.Errorf("soft: index format %s: %w", v.Format, gfx.ErrInvalidDesc))
		return
	}
	l.state.ib = *v
}

// IASetPrimitiveTopology implements gfx.GraphicsCommandList.
func (l *CommandList) IASetPrimitiveTopology(topology gfx.PrimitiveTopology) {
	if l.record("IASetPrimitiveTopology") {
		l.state.topology = topology
	}
}

// OMSetBlendFactor implements gfx.GraphicsCommandList.
func (l *CommandList) OMSetBlendFactor(factor [4]float32) {
	if l.record("OMSetBlendFactor") {
		l.state.blendFactor = factor
	}
}

// DrawIndexedInstanced implements gfx.GraphicsCommandList.
func (l *CommandList) DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndexLocation uint32,
	baseVertexLocation int32, startInstanceLocation uint32,
) {
	if !l.record("DrawIndexedInstanced") {
		return
	}
	if l.typ == gfx.CommandListTypeCopy {
		l.fail(fmt.Errorf("soft: draw on a copy list: %w", gfx.ErrInvalidDesc))
		return
	}
	s := &l.state
	if s.rootSig == nil || s.pipeline == nil {
		l.fail(fmt.Errorf("soft: draw without root signature or pipeline: %w", gfx.ErrInvalidDesc))
		return
	}
	d := Draw{
		IndexCount:    indexCountPerInstance,
		InstanceCount: instanceCount,
		StartIndex:    startIndexLocation,
		BaseVertex:    baseVertexLocation,
		StartInstance: startInstanceLocation,
		RootSignature: s.rootSig,
		Pipeline:      s.pipeline,
		Topology:      s.topology,
		VertexBuffer:  s.vb,
		IndexBuffer:   s.ib,
		BlendFactor:   s.blendFactor,
		RootConstants: maps.Clone(s.constants),
		RootTables:    maps.Clone(s.tables),
		target:        s.target,
	}
	if len(s.viewports) > 0 {
		d.Viewport = s.viewports[0]
	}
	if len(s.scissors) > 0 {
		d.Scissor = s.scissors[0]
	}
	l.draws = append(l.draws, d)
	l.ops = append(l.ops, func() error {
		l.dev.count(func(st *Stats) { st.DrawsExecuted++ })
		if d.target == nil {
			return nil
		}
		n, err := l.dev.rasterize(&d)
		l.dev.count(func(st *Stats) { st.PixelsWritten += n })
		return err
	})
}

// CopyTextureRegion implements gfx.GraphicsCommandList. The destination
// must be a texture subresource and the source a placed footprint in a
// buffer.
func (l *CommandList) CopyTextureRegion(dst *gfx.TextureCopyLocation, dstX, dstY, dstZ uint32, src *gfx.TextureCopyLocation, srcBox *gfx.Box) {
	if !l.record("CopyTextureRegion") {
		return
	}
	if dst == nil || src == nil ||
		dst.Type != gfx.TextureCopyTypeSubresourceIndex || src.Type != gfx.TextureCopyTypePlacedFootprint ||
		dst.SubresourceIndex != 0 || dstZ != 0 {
		l.fail(fmt.Errorf("soft: unsupported texture copy: %w", gfx.ErrInvalidDesc))
		return
	}
	dr, ok1 := dst.Resource.(*Resource)
	sr, ok2 := src.Resource.(*Resource)
	if !ok1 || !ok2 {
		l.fail(fmt.Errorf("soft: copy with foreign resources: %w", gfx.ErrInvalidDesc))
		return
	}
	fp := src.PlacedFootprint
	box := gfx.Box{Right: fp.Footprint.Width, Bottom: fp.Footprint.Height, Back: 1}
	if srcBox != nil {
		box = *srcBox
	}
	l.ops = append(l.ops, func() error {
		return copyFootprint(dr, dstX, dstY, sr, fp, box)
	})
}

func copyFootprint(dst *Resource, dstX, dstY uint32, src *Resource, fp gfx.PlacedSubresourceFootprint, box gfx.Box) error {
	if dst.released || src.released {
		return gfx.ErrReleased
	}
	if dst.state != gfx.ResourceStateCopyDest {
		return fmt.Errorf("soft: copy into %q in state %#x: %w", dst.name, dst.state, gfx.ErrInvalidDesc)
	}
	bpp := dst.desc.Format.Size()
	if fp.Footprint.Format != dst.desc.Format {
		return fmt.Errorf("soft: footprint format %s into %s texture: %w", fp.Footprint.Format, dst.desc.Format, gfx.ErrInvalidDesc)
	}
	if fp.Footprint.RowPitch%gfx.TextureDataPitchAlignment != 0 || fp.Footprint.RowPitch < fp.Footprint.Width*bpp {
		return fmt.Errorf("soft: row pitch %d: %w", fp.Footprint.RowPitch, gfx.ErrInvalidDesc)
	}
	texW := uint32(dst.desc.Width) //nolint:gosec // texture widths fit uint32
	w, h := box.Right-box.Left, box.Bottom-box.Top
	if dstX+w > texW || dstY+h > dst.desc.Height {
		return fmt.Errorf("soft: copy %dx%d at %d,%d exceeds texture: %w", w, h, dstX, dstY, gfx.ErrInvalidDesc)
	}
	for y := uint32(0); y < h; y++ {
		so := fp.Offset + uint64(box.Top+y)*uint64(fp.Footprint.RowPitch) + uint64(box.Left*bpp)
		do := (uint64(dstY+y)*uint64(texW) + uint64(dstX)) * uint64(bpp)
		if so+uint64(w*bpp) > uint64(len(src.data)) {
			return fmt.Errorf("soft: copy reads past %q: %w", src.name, gfx.ErrInvalidDesc)
		}
		copy(dst.data[do:do+uint64(w*bpp)], src.data[so:so+uint64(w*bpp)])
	}
	return nil
}

// ResourceBarrier implements gfx.GraphicsCommandList.
func (l *CommandList) ResourceBarrier(barriers []gfx.ResourceBarrier) {
	if !l.record("ResourceBarrier") {
		return
	}
	for _, b := range slices.Clone(barriers) {
		t := b.Transition
		r, ok := t.Resource.(*Resource)
		if !ok || b.Type != gfx.ResourceBarrierTypeTransition {
			l.fail(fmt.Errorf("soft: unsupported barrier: %w", gfx.ErrInvalidDesc))
			return
		}
		l.ops = append(l.ops, func() error {
			if r.state != t.StateBefore {
				return fmt.Errorf("soft: barrier on %q expects state %#x, resource is in %#x: %w",
					r.name, t.StateBefore, r.state, gfx.ErrInvalidDesc)
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
		return fmt.Errorf("soft: reset with mismatched allocator: %w", gfx.ErrInvalidDesc)
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

// Queue executes command lists synchronously.
type Queue struct {
	dev *Device
	typ gfx.CommandListType
	mu  sync.Mutex
}

var _ gfx.CommandQueue = (*Queue)(nil)

// ExecuteCommandLists implements gfx.CommandQueue. Lists run in order; the
// first failing operation stops execution and is returned.
func (q *Queue) ExecuteCommandLists(lists []gfx.GraphicsCommandList) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, gl := range lists {
		l, ok := gl.(*CommandList)
		if !ok {
			return fmt.Errorf("soft: list %d is foreign: %w", i, gfx.ErrInvalidDesc)
		}
		if l.released {
			return gfx.ErrReleased
		}
		if l.open {
			return fmt.Errorf("soft: list %d: %w", i, gfx.ErrListOpen)
		}
		if l.typ != q.typ {
			return fmt.Errorf("soft: list type %d on queue type %d: %w", l.typ, q.typ, gfx.ErrInvalidDesc)
		}
		for _, op := range l.ops {
			if err := op(); err != nil {
				q.dev.log().Warn("soft: command list execution failed", "list", i, "err", err)
				return err
			}
		}
		q.dev.count(func(s *Stats) { s.ListsExecuted++ })
		q.dev.log().Debug("soft: executed command list", "list", i, "ops", len(l.ops), "draws", len(l.draws))
	}
	return nil
}

// Signal implements gfx.CommandQueue. Execution is synchronous, so the
// fence completes immediately.
func (q *Queue) Signal(fence gfx.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("soft: foreign fence: %w", gfx.ErrInvalidDesc)
	}
	return f.signal(value)
}

// Release implements gfx.CommandQueue.
func (q *Queue) Release() {}

// Fence is a gfx.Fence.
type Fence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	value    uint64
	released bool
}

var _ gfx.Fence = (*Fence)(nil)

func (f *Fence) signal(v uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return gfx.ErrReleased
	}
	f.value = v
	f.cond.Broadcast()
	return nil
}

// CompletedValue implements gfx.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Wait implements gfx.Fence. It blocks until a Signal reaches value.
func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.value < value && !f.released {
		f.cond.Wait()
	}
	if f.value < value {
		return gfx.ErrReleased
	}
	return nil
}

// Release implements gfx.Fence. Waiters are woken with ErrReleased.
func (f *Fence) Release() {
	f.mu.Lock()
	f.released = true
	f.cond.Broadcast()
	f.mu.Unlock()
}
