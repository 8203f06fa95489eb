package soft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/imrender/gfx"
)

// descriptorSize is the distance between consecutive descriptor handles.
const descriptorSize = 32

// gpuHandleBit separates GPU descriptor handles from CPU handles.
const gpuHandleBit = 1 << 48

// Stats counts device activity.
type Stats struct {
	// ResourcesCreated is the number of committed resources ever created.
	ResourcesCreated int

	// ResourcesLive is the number of committed resources not yet released.
	ResourcesLive int

	// Maps is the number of successful Map calls.
	Maps int

	// ListsExecuted is the number of command lists executed.
	ListsExecuted int

	// DrawsExecuted is the number of DrawIndexedInstanced calls executed.
	DrawsExecuted int

	// PixelsWritten is the number of render target pixels blended.
	PixelsWritten int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("resources", s.ResourcesLive),
		slog.Int("maps", s.Maps),
		slog.Int("lists", s.ListsExecuted),
		slog.Int("draws", s.DrawsExecuted),
		slog.Int("pixels", s.PixelsWritten),
	)
}

// Device is a CPU gfx.Device.
type Device struct {
	// FailHook, when set, is consulted before every object creation with
	// the name of the creating method. A non-nil return fails the call.
	FailHook func(op string) error

	mu       sync.Mutex
	stats    Stats
	heaps    []*DescriptorHeap
	nextBase uint64
	logger   atomic.Pointer[slog.Logger]
}

var _ gfx.Device = (*Device)(nil)

// New creates a CPU device.
func New() *Device {
	d := &Device{nextBase: 1 << 16}
	d.logger.Store(slog.New(nopHandler{}))
	return d
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

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) count(f func(*Stats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

func (d *Device) fail(op string) error {
	if d.FailHook == nil {
		return nil
	}
	if err := d.FailHook(op); err != nil {
		return fmt.Errorf("soft: %s: %w", op, err)
	}
	return nil
}

// CreateCommittedResource implements gfx.Device.
func (d *Device) CreateCommittedResource(heap gfx.HeapType, desc *gfx.ResourceDesc, initialState gfx.ResourceState) (gfx.Resource, error) {
	if err := d.fail("CreateCommittedResource"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("soft: nil resource desc: %w", gfx.ErrInvalidDesc)
	}

	var size uint64
	switch desc.Dimension {
	case gfx.ResourceDimensionBuffer:
		if desc.Width == 0 || desc.Height != 1 || desc.Layout != gfx.TextureLayoutRowMajor {
			return nil, fmt.Errorf("soft: buffer %dx%d: %w", desc.Width, desc.Height, gfx.ErrInvalidDesc)
		}
		size = desc.Width
	case gfx.ResourceDimensionTexture2D:
		bpp := desc.Format.Size()
		if desc.Width == 0 || desc.Height == 0 || bpp == 0 || desc.MipLevels != 1 {
			return nil, fmt.Errorf("soft: texture %dx%d %s: %w", desc.Width, desc.Height, desc.Format, gfx.ErrInvalidDesc)
		}
		if heap != gfx.HeapTypeDefault {
			return nil, fmt.Errorf("soft: textures must live in the default heap: %w", gfx.ErrInvalidDesc)
		}
		size = desc.Width * uint64(desc.Height) * uint64(bpp)
	default:
		return nil, fmt.Errorf("soft: resource dimension %d: %w", desc.Dimension, gfx.ErrInvalidDesc)
	}

	switch heap {
	case gfx.HeapTypeDefault, gfx.HeapTypeUpload, gfx.HeapTypeReadback:
	default:
		return nil, fmt.Errorf("soft: heap type %d: %w", heap, gfx.ErrInvalidDesc)
	}

	d.count(func(s *Stats) {
		s.ResourcesCreated++
		s.ResourcesLive++
	})
	return &Resource{
		dev:   d,
		desc:  *desc,
		heap:  heap,
		state: initialState,
		data:  make([]byte, size),
	}, nil
}

// CreateRootSignature implements gfx.Device.
func (d *Device) CreateRootSignature(desc *gfx.RootSignatureDesc) (gfx.RootSignature, error) {
	if err := d.fail("CreateRootSignature"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("soft: nil root signature desc: %w", gfx.ErrInvalidDesc)
	}
	for i, p := range desc.Parameters {
		switch p.ParameterType {
		case gfx.RootParameterType32BitConstants:
			if p.Constants.Num32BitValues == 0 || p.Constants.Num32BitValues > 64 {
				return nil, fmt.Errorf("soft: root parameter %d: %d constants: %w", i, p.Constants.Num32BitValues, gfx.ErrInvalidDesc)
			}
		case gfx.RootParameterTypeDescriptorTable:
			if len(p.Ranges) == 0 {
				return nil, fmt.Errorf("soft: root parameter %d: empty descriptor table: %w", i, gfx.ErrInvalidDesc)
			}
		default:
			return nil, fmt.Errorf("soft: root parameter %d: type %d: %w", i, p.ParameterType, gfx.ErrInvalidDesc)
		}
	}
	return newRootSignature(desc), nil
}

// CreateGraphicsPipelineState implements gfx.Device.
func (d *Device) CreateGraphicsPipelineState(desc *gfx.GraphicsPipelineStateDesc) (gfx.PipelineState, error) {
	if err := d.fail("CreateGraphicsPipelineState"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("soft: nil pipeline desc: %w", gfx.ErrInvalidDesc)
	}
	switch {
	case desc.RootSignature == nil:
		return nil, fmt.Errorf("soft: pipeline without root signature: %w", gfx.ErrInvalidDesc)
	case len(desc.VS.Code) == 0 || len(desc.PS.Code) == 0:
		return nil, fmt.Errorf("soft: pipeline without shader code: %w", gfx.ErrInvalidDesc)
	case desc.NumRenderTargets == 0 || desc.NumRenderTargets > 8:
		return nil, fmt.Errorf("soft: %d render targets: %w", desc.NumRenderTargets, gfx.ErrInvalidDesc)
	case desc.PrimitiveTopologyType != gfx.PrimitiveTopologyTypeTriangle:
		return nil, fmt.Errorf("soft: topology type %d not supported: %w", desc.PrimitiveTopologyType, gfx.ErrInvalidDesc)
	}
	layout, err := newVertexLayout(desc.InputLayout)
	if err != nil {
		return nil, err
	}
	return &PipelineState{desc: *desc, layout: layout}, nil
}

// CreateCommandQueue implements gfx.Device.
func (d *Device) CreateCommandQueue(typ gfx.CommandListType) (gfx.CommandQueue, error) {
	if err := d.fail("CreateCommandQueue"); err != nil {
		return nil, err
	}
	return &Queue{dev: d, typ: typ}, nil
}

// CreateCommandAllocator implements gfx.Device.
func (d *Device) CreateCommandAllocator(typ gfx.CommandListType) (gfx.CommandAllocator, error) {
	if err := d.fail("CreateCommandAllocator"); err != nil {
		return nil, err
	}
	return &Allocator{typ: typ}, nil
}

// CreateCommandList implements gfx.Device.
func (d *Device) CreateCommandList(typ gfx.CommandListType, allocator gfx.CommandAllocator, initial gfx.PipelineState) (gfx.GraphicsCommandList, error) {
	if err := d.fail("CreateCommandList"); err != nil {
		return nil, err
	}
	a, ok := allocator.(*Allocator)
	if !ok || a.typ != typ {
		return nil, fmt.Errorf("soft: command list needs a %d allocator: %w", typ, gfx.ErrInvalidDesc)
	}
	l := &CommandList{dev: d, typ: typ}
	l.reset(initial)
	return l, nil
}

// CreateFence implements gfx.Device.
func (d *Device) CreateFence(initialValue uint64) (gfx.Fence, error) {
	if err := d.fail("CreateFence"); err != nil {
		return nil, err
	}
	f := &Fence{value: initialValue}
	f.cond = sync.NewCond(&f.mu)
	return f, nil
}

// CreateDescriptorHeap implements gfx.Device.
func (d *Device) CreateDescriptorHeap(desc *gfx.DescriptorHeapDesc) (gfx.DescriptorHeap, error) {
	if err := d.fail("CreateDescriptorHeap"); err != nil {
		return nil, err
	}
	if desc == nil || desc.NumDescriptors == 0 {
		return nil, fmt.Errorf("soft: empty descriptor heap: %w", gfx.ErrInvalidDesc)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	base := d.nextBase
	d.nextBase += uint64(desc.NumDescriptors)*descriptorSize + 1<<16
	h := &DescriptorHeap{
		dev:   d,
		desc:  *desc,
		cpu:   gfx.CPUDescriptorHandle(base),
		views: make([]*view, desc.NumDescriptors),
	}
	if desc.Flags&gfx.DescriptorHeapFlagShaderVisible != 0 {
		h.gpu = gfx.GPUDescriptorHandle(base | gpuHandleBit)
	}
	d.heaps = append(d.heaps, h)
	return h, nil
}

// CreateShaderResourceView implements gfx.Device.
func (d *Device) CreateShaderResourceView(r gfx.Resource, desc *gfx.ShaderResourceViewDesc, dest gfx.CPUDescriptorHandle) error {
	res, ok := r.(*Resource)
	if !ok || res == nil {
		return fmt.Errorf("soft: shader resource view of foreign resource: %w", gfx.ErrInvalidDesc)
	}
	if res.desc.Dimension != gfx.ResourceDimensionTexture2D {
		return fmt.Errorf("soft: shader resource view of a buffer: %w", gfx.ErrInvalidDesc)
	}
	if desc == nil || desc.ViewDimension != gfx.SRVDimensionTexture2D || desc.Format != res.desc.Format {
		return fmt.Errorf("soft: shader resource view desc: %w", gfx.ErrInvalidDesc)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, slot, ok := d.lookupCPU(dest)
	if !ok {
		return fmt.Errorf("soft: cpu handle %#x: %w", uint64(dest), gfx.ErrUnknownDescriptor)
	}
	if h.desc.Type != gfx.DescriptorHeapTypeCBVSRVUAV {
		return fmt.Errorf("soft: shader resource view in a %d heap: %w", h.desc.Type, gfx.ErrInvalidDesc)
	}
	h.views[slot] = &view{res: res, desc: *desc}
	return nil
}

// ReadTexture returns a copy of the tightly packed texels of a texture.
func (d *Device) ReadTexture(r gfx.Resource) ([]byte, error) {
	res, ok := r.(*Resource)
	if !ok || res == nil {
		return nil, fmt.Errorf("soft: read of foreign resource: %w", gfx.ErrInvalidDesc)
	}
	if res.released {
		return nil, gfx.ErrReleased
	}
	return append([]byte(nil), res.data...), nil
}

// ResolveGPUHandle returns the resource viewed by the descriptor at h.
func (d *Device) ResolveGPUHandle(h gfx.GPUDescriptorHandle) (gfx.Resource, error) {
	v, err := d.resolve(h)
	if err != nil {
		return nil, err
	}
	return v.res, nil
}

func (d *Device) resolve(h gfx.GPUDescriptorHandle) (*view, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, heap := range d.heaps {
		if heap.gpu == 0 || heap.released {
			continue
		}
		if slot, ok := heap.slot(uint64(h), uint64(heap.gpu)); ok {
			if v := heap.views[slot]; v != nil {
				return v, nil
			}
			break
		}
	}
	return nil, fmt.Errorf("soft: gpu handle %#x: %w", uint64(h), gfx.ErrUnknownDescriptor)
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
