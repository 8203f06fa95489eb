package gfx

import "errors"

// Common errors returned by backends.
var (
	// ErrNotMappable is returned when mapping a resource outside an upload or
	// readback heap.
	ErrNotMappable = errors.New("gfx: resource is not CPU mappable")

	// ErrReleased is returned when using a released object.
	ErrReleased = errors.New("gfx: object already released")

	// ErrListClosed is returned when recording into a closed command list.
	ErrListClosed = errors.New("gfx: command list is closed")

	// ErrListOpen is returned when executing a command list that was not closed.
	ErrListOpen = errors.New("gfx: command list is not closed")

	// ErrInvalidDesc is returned when a descriptor fails validation.
	ErrInvalidDesc = errors.New("gfx: invalid descriptor")

	// ErrUnknownDescriptor is returned when a descriptor handle does not
	// address a written descriptor.
	ErrUnknownDescriptor = errors.New("gfx: unknown descriptor handle")

	// ErrDeviceLost is returned after the device has been removed.
	ErrDeviceLost = errors.New("gfx: device lost")
)

// Device creates GPU objects.
//
// The device itself is owned by the host application; consumers of this
// interface never destroy it.
type Device interface {
	// CreateCommittedResource creates a resource with its own heap.
	CreateCommittedResource(heap HeapType, desc *ResourceDesc, initialState ResourceState) (Resource, error)

	// CreateRootSignature creates a root signature.
	CreateRootSignature(desc *RootSignatureDesc) (RootSignature, error)

	// CreateGraphicsPipelineState creates a pipeline state object.
	CreateGraphicsPipelineState(desc *GraphicsPipelineStateDesc) (PipelineState, error)

	// CreateCommandQueue creates a command queue.
	CreateCommandQueue(typ CommandListType) (CommandQueue, error)

	// CreateCommandAllocator creates a command allocator.
	CreateCommandAllocator(typ CommandListType) (CommandAllocator, error)

	// CreateCommandList creates an open command list.
	CreateCommandList(typ CommandListType, allocator CommandAllocator, initial PipelineState) (GraphicsCommandList, error)

	// CreateFence creates a fence with the given initial value.
	CreateFence(initialValue uint64) (Fence, error)

	// CreateDescriptorHeap creates a descriptor heap.
	CreateDescriptorHeap(desc *DescriptorHeapDesc) (DescriptorHeap, error)

	// CreateShaderResourceView writes a shader resource view of r at dest.
	CreateShaderResourceView(r Resource, desc *ShaderResourceViewDesc, dest CPUDescriptorHandle) error
}
