// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/wgpu/hal"
)

// descriptorSize is the distance between consecutive descriptor handles.
const descriptorSize = 32

// gpuHandleBit separates GPU descriptor handles from CPU handles.
const gpuHandleBit = 1 << 48

var (
	// ErrNoDevice is returned when a HAL device or queue is missing.
	ErrNoDevice = errors.New("native: HAL device and queue are required")

	// ErrNoHALProvider is returned when a device provider does not expose
	// its HAL device and queue.
	ErrNoHALProvider = errors.New("native: provider does not expose HAL objects")

	// ErrIncomplete is returned when a wait cannot reach the requested
	// fence value or submission.
	ErrIncomplete = errors.New("native: work did not complete")
)

// halProvider is implemented by device providers that expose their HAL
// device and queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device is a gfx.Device backed by a HAL device and queue.
// The HAL objects are borrowed and never destroyed by Device.
type Device struct {
	device hal.Device
	queue  hal.Queue

	mu       sync.Mutex
	heaps    []*DescriptorHeap
	nextBase uint64
	logger   atomic.Pointer[slog.Logger]
}

var _ gfx.Device = (*Device)(nil)

// New wraps a HAL device and its queue.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	d := &Device{device: device, queue: queue, nextBase: 1 << 16}
	d.logger.Store(slog.New(nopHandler{}))
	return d, nil
}

// NewFromProvider wraps the HAL device and queue of a host application's
// device provider.
func NewFromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	if p == nil {
		return nil, ErrNoDevice
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrNoHALProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: queue is %T", ErrNoHALProvider, hp.HalQueue())
	}
	return New(device, queue)
}

// SetLogger sets the logger used for execution diagnostics.
// Pass nil to disable logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.logger.Store(l)
}

func (d *Device) log() *slog.Logger { return d.logger.Load() }

// HalDevice returns the wrapped HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// CreateCommittedResource implements gfx.Device.
func (d *Device) CreateCommittedResource(heap gfx.HeapType, desc *gfx.ResourceDesc, initialState gfx.ResourceState) (gfx.Resource, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil resource desc: %w", gfx.ErrInvalidDesc)
	}
	switch heap {
	case gfx.HeapTypeDefault, gfx.HeapTypeUpload, gfx.HeapTypeReadback:
	default:
		return nil, fmt.Errorf("native: heap type %d: %w", heap, gfx.ErrInvalidDesc)
	}
	r := &Resource{dev: d, desc: *desc, heap: heap, state: initialState}
	switch desc.Dimension {
	case gfx.ResourceDimensionBuffer:
		if err := d.createBuffer(r); err != nil {
			return nil, err
		}
	case gfx.ResourceDimensionTexture2D:
		if err := d.createTexture(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("native: resource dimension %d: %w", desc.Dimension, gfx.ErrInvalidDesc)
	}
	return r, nil
}

func (d *Device) createBuffer(r *Resource) error {
	desc := &r.desc
	if desc.Width == 0 || desc.Height != 1 || desc.Layout != gfx.TextureLayoutRowMajor {
		return fmt.Errorf("native: buffer %dx%d: %w", desc.Width, desc.Height, gfx.ErrInvalidDesc)
	}
	size := alignBufferSize(desc.Width)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "imrender buffer",
		Size:  size,
		Usage: bufferUsage(r.heap),
	})
	if err != nil {
		return fmt.Errorf("native: create buffer of %d bytes: %w", size, err)
	}
	r.buffer = buf
	if r.heap != gfx.HeapTypeDefault {
		r.shadow = make([]byte, size)
	}
	return nil
}

func (d *Device) createTexture(r *Resource) error {
	desc := &r.desc
	format, err := textureFormat(desc.Format)
	if err != nil {
		return err
	}
	switch {
	case desc.Width == 0 || desc.Height == 0 || desc.MipLevels != 1:
		return fmt.Errorf("native: texture %dx%d: %w", desc.Width, desc.Height, gfx.ErrInvalidDesc)
	case r.heap != gfx.HeapTypeDefault:
		return fmt.Errorf("native: textures must live in the default heap: %w", gfx.ErrInvalidDesc)
	}
	samples := desc.SampleDesc.Count
	if samples == 0 {
		samples = 1
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: "imrender texture",
		Size: hal.Extent3D{
			Width:              uint32(desc.Width), //nolint:gosec // texture widths fit in uint32
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("native: create %dx%d %s texture: %w", desc.Width, desc.Height, desc.Format, err)
	}
	r.texture = tex
	return nil
}

// CreateRootSignature implements gfx.Device.
func (d *Device) CreateRootSignature(desc *gfx.RootSignatureDesc) (gfx.RootSignature, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil root signature desc: %w", gfx.ErrInvalidDesc)
	}
	return newRootSignature(d.device, desc)
}

// CreateGraphicsPipelineState implements gfx.Device.
func (d *Device) CreateGraphicsPipelineState(desc *gfx.GraphicsPipelineStateDesc) (gfx.PipelineState, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil pipeline desc: %w", gfx.ErrInvalidDesc)
	}
	return newPipelineState(d.device, desc)
}

// CreateCommandQueue implements gfx.Device.
func (d *Device) CreateCommandQueue(typ gfx.CommandListType) (gfx.CommandQueue, error) {
	return &Queue{dev: d, typ: typ}, nil
}

// CreateCommandAllocator implements gfx.Device.
func (d *Device) CreateCommandAllocator(typ gfx.CommandListType) (gfx.CommandAllocator, error) {
	return &Allocator{typ: typ}, nil
}

// CreateCommandList implements gfx.Device.
func (d *Device) CreateCommandList(typ gfx.CommandListType, allocator gfx.CommandAllocator, initial gfx.PipelineState) (gfx.GraphicsCommandList, error) {
	a, ok := allocator.(*Allocator)
	if !ok || a.typ != typ {
		return nil, fmt.Errorf("native: command list needs a %d allocator: %w", typ, gfx.ErrInvalidDesc)
	}
	l := &CommandList{dev: d, typ: typ}
	l.reset(initial)
	return l, nil
}

// CreateFence implements gfx.Device.
func (d *Device) CreateFence(initialValue uint64) (gfx.Fence, error) {
	f := &Fence{dev: d}
	f.completed.Store(initialValue)
	return f, nil
}

// CreateDescriptorHeap implements gfx.Device.
func (d *Device) CreateDescriptorHeap(desc *gfx.DescriptorHeapDesc) (gfx.DescriptorHeap, error) {
	if desc == nil || desc.NumDescriptors == 0 {
		return nil, fmt.Errorf("native: empty descriptor heap: %w", gfx.ErrInvalidDesc)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	base := d.nextBase
	d.nextBase += uint64(desc.NumDescriptors)*descriptorSize + 1<<16
	h := &DescriptorHeap{
		dev:   d,
		desc:  *desc,
		cpu:   gfx.CPUDescriptorHandle(base),
		views: make([]*shaderView, desc.NumDescriptors),
	}
	if desc.Flags&gfx.DescriptorHeapFlagShaderVisible != 0 {
		h.gpu = gfx.GPUDescriptorHandle(base | gpuHandleBit)
	}
	d.heaps = append(d.heaps, h)
	return h, nil
}

// CreateShaderResourceView implements gfx.Device. It creates a HAL
// texture view that draws bind through descriptor tables.
func (d *Device) CreateShaderResourceView(r gfx.Resource, desc *gfx.ShaderResourceViewDesc, dest gfx.CPUDescriptorHandle) error {
	res, ok := r.(*Resource)
	if !ok || res == nil || res.released {
		return fmt.Errorf("native: shader resource view of foreign resource: %w", gfx.ErrInvalidDesc)
	}
	if res.texture == nil {
		return fmt.Errorf("native: shader resource view of a buffer: %w", gfx.ErrInvalidDesc)
	}
	if desc == nil || desc.ViewDimension != gfx.SRVDimensionTexture2D || desc.Format != res.desc.Format {
		return fmt.Errorf("native: shader resource view desc: %w", gfx.ErrInvalidDesc)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, slot, ok := d.lookupCPU(dest)
	if !ok {
		return fmt.Errorf("native: cpu handle %#x: %w", uint64(dest), gfx.ErrUnknownDescriptor)
	}
	if h.desc.Type != gfx.DescriptorHeapTypeCBVSRVUAV {
		return fmt.Errorf("native: shader resource view in a %d heap: %w", h.desc.Type, gfx.ErrInvalidDesc)
	}
	view, err := d.device.CreateTextureView(res.texture, &hal.TextureViewDescriptor{
		Label:         "imrender srv",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("native: create texture view: %w", err)
	}
	if old := h.views[slot]; old != nil {
		d.device.DestroyTextureView(old.view)
	}
	h.views[slot] = &shaderView{res: res, view: view}
	return nil
}

// ResolveGPUHandle returns the resource viewed by the descriptor at h.
func (d *Device) ResolveGPUHandle(h gfx.GPUDescriptorHandle) (gfx.Resource, error) {
	v, err := d.resolve(h)
	if err != nil {
		return nil, err
	}
	return v.res, nil
}

func (d *Device) resolve(h gfx.GPUDescriptorHandle) (*shaderView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, heap := range d.heaps {
		if heap.gpu == 0 || heap.released {
			continue
		}
		if slot, ok := heap.slot(uint64(h), uint64(heap.gpu)); ok {
			if v := heap.views[slot]; v != nil && !v.res.released {
				return v, nil
			}
			break
		}
	}
	return nil, fmt.Errorf("native: gpu handle %#x: %w", uint64(h), gfx.ErrUnknownDescriptor)
}

// lookupCPU finds the heap and slot of a CPU handle. d.mu must be held.
func (d *Device) lookupCPU(h gfx.CPUDescriptorHandle) (*DescriptorHeap, int, bool) {
	for _, heap := range d.heaps {
		if heap.released {
			continue
		}
		if slot, ok := heap.slot(uint64(h), uint64(heap.cpu)); ok {
			return heap, slot, true
		}
	}
	return nil, 0, false
}

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
