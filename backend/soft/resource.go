package soft

import (
	"fmt"

	"github.com/gogpu/imrender/gfx"
)

// Resource is a committed buffer or texture held in Go memory.
// Textures are stored as tightly packed rows.
type Resource struct {
	dev      *Device
	desc     gfx.ResourceDesc
	heap     gfx.HeapType
	state    gfx.ResourceState
	data     []byte
	name     string
	mapped   bool
	released bool
}

var _ gfx.Resource = (*Resource)(nil)

// Desc implements gfx.Resource.
func (r *Resource) Desc() gfx.ResourceDesc { return r.desc }

// Map implements gfx.Resource. Only upload and readback buffers map.
func (r *Resource) Map() ([]byte, error) {
	if r.released {
		return nil, gfx.ErrReleased
	}
	if r.heap == gfx.HeapTypeDefault || r.desc.Dimension != gfx.ResourceDimensionBuffer {
		return nil, fmt.Errorf("soft: map %q: %w", r.name, gfx.ErrNotMappable)
	}
	r.mapped = true
	r.dev.count(func(s *Stats) { s.Maps++ })
	return r.data, nil
}

// Unmap implements gfx.Resource.
func (r *Resource) Unmap() { r.mapped = false }

// SetName implements gfx.Resource.
func (r *Resource) SetName(name string) { r.name = name }

// Release implements gfx.Resource.
func (r *Resource) Release() {
	if r.released {
		return
	}
	r.released = true
	r.data = nil
	r.dev.count(func(s *Stats) { s.ResourcesLive-- })
}

// Name returns the debug name.
func (r *Resource) Name() string { return r.name }

// Heap returns the heap the resource was created in.
func (r *Resource) Heap() gfx.HeapType { return r.heap }

// State returns the state after the last executed barrier.
func (r *Resource) State() gfx.ResourceState { return r.state }

// Mapped reports whether the resource is between Map and Unmap.
func (r *Resource) Mapped() bool { return r.mapped }

// Released reports whether Release has been called.
func (r *Resource) Released() bool { return r.released }

// Bytes returns the backing memory of the resource.
func (r *Resource) Bytes() []byte { return r.data }

// DescriptorHeap is a range of descriptor handles.
type DescriptorHeap struct {
	dev      *Device
	desc     gfx.DescriptorHeapDesc
	cpu      gfx.CPUDescriptorHandle
	gpu      gfx.GPUDescriptorHandle
	views    []*view
	released bool
}

var _ gfx.DescriptorHeap = (*DescriptorHeap)(nil)

type view struct {
	res  *Resource
	desc gfx.ShaderResourceViewDesc
}

// CPUStart implements gfx.DescriptorHeap.
func (h *DescriptorHeap) CPUStart() gfx.CPUDescriptorHandle { return h.cpu }

// GPUStart implements gfx.DescriptorHeap.
func (h *DescriptorHeap) GPUStart() gfx.GPUDescriptorHandle { return h.gpu }

// Increment implements gfx.DescriptorHeap.
func (h *DescriptorHeap) Increment() uint32 { return descriptorSize }

// Release implements gfx.DescriptorHeap.
func (h *DescriptorHeap) Release() {
	h.dev.mu.Lock()
	h.released = true
	h.dev.mu.Unlock()
}

// slot converts a handle into a descriptor index relative to start.
func (h *DescriptorHeap) slot(handle, start uint64) (int, bool) {
	if handle < start {
		return 0, false
	}
	off := handle - start
	if off%descriptorSize != 0 || off/descriptorSize >= uint64(len(h.views)) {
		return 0, false
	}
	return int(off / descriptorSize), true //nolint:gosec // bounded by len(h.views)
}

// RootSignature is a validated root signature description.
type RootSignature struct {
	desc      gfx.RootSignatureDesc
	constants int
	table     int
}

var _ gfx.RootSignature = (*RootSignature)(nil)

func newRootSignature(desc *gfx.RootSignatureDesc) *RootSignature {
	rs := &RootSignature{desc: *desc, constants: -1, table: -1}
	rs.desc.Parameters = append([]gfx.RootParameter(nil), desc.Parameters...)
	rs.desc.StaticSamplers = append([]gfx.StaticSampler(nil), desc.StaticSamplers...)
	for i, p := range rs.desc.Parameters {
		switch {
		case p.ParameterType == gfx.RootParameterType32BitConstants && rs.constants < 0:
			rs.constants = i
		case p.ParameterType == gfx.RootParameterTypeDescriptorTable && rs.table < 0:
			rs.table = i
		}
	}
	return rs
}

// Desc implements gfx.RootSignature.
func (rs *RootSignature) Desc() gfx.RootSignatureDesc { return rs.desc }

// Release implements gfx.RootSignature.
func (rs *RootSignature) Release() {}

// PipelineState is a validated pipeline description.
type PipelineState struct {
	desc   gfx.GraphicsPipelineStateDesc
	layout vertexLayout
}

var _ gfx.PipelineState = (*PipelineState)(nil)

// Desc implements gfx.PipelineState.
func (p *PipelineState) Desc() gfx.GraphicsPipelineStateDesc { return p.desc }

// Release implements gfx.PipelineState.
func (p *PipelineState) Release() {}

// vertexLayout locates the attributes the fixed pipeline reads.
type vertexLayout struct {
	pos, uv, col gfx.InputElementDesc
}

func newVertexLayout(elems []gfx.InputElementDesc) (vertexLayout, error) {
	var l vertexLayout
	found := map[string]bool{}
	for _, e := range elems {
		if e.InputSlot != 0 {
			return l, fmt.Errorf("soft: input slot %d: %w", e.InputSlot, gfx.ErrInvalidDesc)
		}
		switch e.SemanticName {
		case "POSITION":
			l.pos = e
		case "TEXCOORD":
			l.uv = e
		case "COLOR":
			l.col = e
		default:
			continue
		}
		found[e.SemanticName] = true
	}
	for _, name := range []string{"POSITION", "TEXCOORD", "COLOR"} {
		if !found[name] {
			return l, fmt.Errorf("soft: input layout lacks %s: %w", name, gfx.ErrInvalidDesc)
		}
	}
	return l, nil
}
