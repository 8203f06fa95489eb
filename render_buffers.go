package imrender

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

// renderBuffers are the vertex and index buffers of one frame in flight.
// Capacities count elements, not bytes, and never shrink.
// vbCount and ibCount number the buffers created for the slot and name
// the next one.
type renderBuffers struct {
	index   int
	vb      gfx.Resource
	ib      gfx.Resource
	vbCap   int
	ibCap   int
	vbCount int
	ibCount int
}

func (b *renderBuffers) release() {
	if b.vb != nil {
		b.vb.Release()
		b.vb = nil
	}
	if b.ib != nil {
		b.ib.Release()
		b.ib = nil
	}
	b.vbCap, b.ibCap = 0, 0
}

// reserve makes room for vtx vertices and idx indices, reallocating a
// buffer with the configured slack when it is missing or too small.
func (b *renderBuffers) reserve(dev gfx.Device, vtx, idx int, o *options, st *RendererStats, log *slog.Logger) error {
	if b.vb == nil || b.vbCap < vtx {
		capacity := max(vtx+o.vertexSlack, 1)
		vb, err := createUploadBuffer(dev, capacity*int(ui.DrawVertSize), fmt.Sprintf("imgui VB %d", b.vbCount))
		if err != nil {
			return fmt.Errorf("imrender: grow vertex buffer: %w", err)
		}
		if b.vb != nil {
			b.vb.Release()
		}
		b.vb, b.vbCap = vb, capacity
		b.vbCount++
		st.VertexBufferGrowths++
		log.Debug("imrender: vertex buffer grown", slog.Int("frame", b.index), slog.Int("capacity", capacity))
	}
	if b.ib == nil || b.ibCap < idx {
		capacity := max(idx+o.indexSlack, 1)
		ib, err := createUploadBuffer(dev, capacity*int(ui.DrawIdxSize), fmt.Sprintf("imgui IB %d", b.ibCount))
		if err != nil {
			return fmt.Errorf("imrender: grow index buffer: %w", err)
		}
		if b.ib != nil {
			b.ib.Release()
		}
		b.ib, b.ibCap = ib, capacity
		b.ibCount++
		st.IndexBufferGrowths++
		log.Debug("imrender: index buffer grown", slog.Int("frame", b.index), slog.Int("capacity", capacity))
	}
	return nil
}

// upload concatenates the vertices and indices of every list into the
// mapped buffers.
func (b *renderBuffers) upload(dd *ui.DrawData) error {
	vtxDst, err := b.vb.Map()
	if err != nil {
		return fmt.Errorf("imrender: map vertex buffer: %w", err)
	}
	defer b.vb.Unmap()
	idxDst, err := b.ib.Map()
	if err != nil {
		return fmt.Errorf("imrender: map index buffer: %w", err)
	}
	defer b.ib.Unmap()

	var vo, io int
	for _, dl := range dd.CmdLists {
		vo += copy(vtxDst[vo:], vertexBytes(dl.VtxBuffer))
		io += copy(idxDst[io:], indexBytes(dl.IdxBuffer))
	}
	return nil
}

func (b *renderBuffers) vertexView() gfx.VertexBufferView {
	return gfx.VertexBufferView{
		Buffer:        b.vb,
		SizeInBytes:   uint32(b.vbCap * int(ui.DrawVertSize)), //nolint:gosec // bounded by buffer creation
		StrideInBytes: uint32(ui.DrawVertSize),
	}
}

func (b *renderBuffers) indexView() gfx.IndexBufferView {
	return gfx.IndexBufferView{
		Buffer:      b.ib,
		SizeInBytes: uint32(b.ibCap * int(ui.DrawIdxSize)), //nolint:gosec // bounded by buffer creation
		Format:      indexFormat(),
	}
}

func createUploadBuffer(dev gfx.Device, size int, name string) (gfx.Resource, error) {
	desc := gfx.BufferDesc(uint64(size)) //nolint:gosec // size is positive
	r, err := dev.CreateCommittedResource(gfx.HeapTypeUpload, &desc, gfx.ResourceStateGenericRead)
	if err != nil {
		return nil, err
	}
	r.SetName(name)
	return r, nil
}

func vertexBytes(v []ui.DrawVert) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(ui.DrawVertSize))
}

func indexBytes(v []ui.DrawIdx) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(ui.DrawIdxSize))
}

// frameCounts returns the vertex and index totals of dd, trusting the
// list contents over the cached totals when they disagree.
func frameCounts(dd *ui.DrawData) (vtx, idx int) {
	for _, dl := range dd.CmdLists {
		vtx += len(dl.VtxBuffer)
		idx += len(dl.IdxBuffer)
	}
	return max(vtx, dd.TotalVtxCount), max(idx, dd.TotalIdxCount)
}
