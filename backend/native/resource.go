// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/wgpu/hal"
)

// Resource is a committed buffer or texture backed by a HAL object.
//
// Buffers in the upload and readback heaps keep a CPU shadow. Unmap of an
// upload buffer writes the shadow to the GPU; Map of a readback buffer
// reads the GPU contents into it. A failed write is kept and returned by
// the next Map or by the next execution that uploads from the buffer.
type Resource struct {
	dev      *Device
	desc     gfx.ResourceDesc
	heap     gfx.HeapType
	state    gfx.ResourceState
	buffer   hal.Buffer
	texture  hal.Texture
	shadow   []byte
	name     string
	mapped   bool
	released bool
	err      error
}

var _ gfx.Resource = (*Resource)(nil)

// Desc implements gfx.Resource.
func (r *Resource) Desc() gfx.ResourceDesc { return r.desc }

// Map implements gfx.Resource.
func (r *Resource) Map() ([]byte, error) {
	if r.released {
		return nil, gfx.ErrReleased
	}
	if r.shadow == nil {
		return nil, fmt.Errorf("native: map %q: %w", r.name, gfx.ErrNotMappable)
	}
	if r.err != nil {
		return nil, fmt.Errorf("native: map %q: %w", r.name, r.takeErr())
	}
	if r.heap == gfx.HeapTypeReadback {
		if err := r.readBack(); err != nil {
			return nil, fmt.Errorf("native: read back %q: %w", r.name, err)
		}
	}
	r.mapped = true
	return r.shadow[:r.desc.Width], nil
}

// Unmap implements gfx.Resource.
func (r *Resource) Unmap() {
	if !r.mapped || r.released {
		return
	}
	r.mapped = false
	if r.heap != gfx.HeapTypeUpload {
		return
	}
	if err := r.dev.queue.WriteBuffer(r.buffer, 0, r.shadow); err != nil {
		r.err = err
		r.dev.log().Warn("native: upload buffer write failed", "resource", r.name, "err", err)
	}
}

// takeErr returns and clears the pending write error.
func (r *Resource) takeErr() error {
	err := r.err
	r.err = nil
	return err
}

// readBack copies the GPU contents of a readback buffer into the shadow.
func (r *Resource) readBack() error {
	size := uint64(len(r.shadow))
	m, err := r.dev.device.MapBuffer(r.buffer, 0, size)
	if err != nil {
		return err
	}
	if m.Ptr != nil {
		copy(r.shadow, unsafe.Slice((*byte)(m.Ptr), size))
	}
	return r.dev.device.UnmapBuffer(r.buffer)
}

// SetName implements gfx.Resource.
func (r *Resource) SetName(name string) { r.name = name }

// Release implements gfx.Resource.
func (r *Resource) Release() {
	if r.released {
		return
	}
	r.released = true
	r.shadow = nil
	if r.buffer != nil {
		r.dev.device.DestroyBuffer(r.buffer)
		r.buffer = nil
	}
	if r.texture != nil {
		r.dev.device.DestroyTexture(r.texture)
		r.texture = nil
	}
}

// Name returns the debug name.
func (r *Resource) Name() string { return r.name }

// State returns the state after the last executed barrier.
func (r *Resource) State() gfx.ResourceState { return r.state }

// HalBuffer returns the HAL buffer of a buffer resource.
func (r *Resource) HalBuffer() hal.Buffer { return r.buffer }

// HalTexture returns the HAL texture of a texture resource.
func (r *Resource) HalTexture() hal.Texture { return r.texture }

// alignBufferSize rounds a buffer size up to the 4-byte granularity of
// queue writes.
func alignBufferSize(n uint64) uint64 {
	return (n + 3) &^ 3
}

// DescriptorHeap is a range of descriptor handles. Shader resource views
// written into it own a HAL texture view.
type DescriptorHeap struct {
	dev      *Device
	desc     gfx.DescriptorHeapDesc
	cpu      gfx.CPUDescriptorHandle
	gpu      gfx.GPUDescriptorHandle
	views    []*shaderView
	released bool
}

var _ gfx.DescriptorHeap = (*DescriptorHeap)(nil)

type shaderView struct {
	res  *Resource
	view hal.TextureView
}

// CPUStart implements gfx.DescriptorHeap.
func (h *DescriptorHeap) CPUStart() gfx.CPUDescriptorHandle { return h.cpu }

// GPUStart implements gfx.DescriptorHeap.
func (h *DescriptorHeap) GPUStart() gfx.GPUDescriptorHandle { return h.gpu }

// Increment implements gfx.DescriptorHeap.
func (h *DescriptorHeap) Increment() uint32 { return descriptorSize }

// Release implements gfx.DescriptorHeap. Views in the heap are destroyed.
func (h *DescriptorHeap) Release() {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	for i, v := range h.views {
		if v != nil {
			h.dev.device.DestroyTextureView(v.view)
			h.views[i] = nil
		}
	}
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
