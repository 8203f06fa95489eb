package gfx

// HeapType selects the memory pool a committed resource is placed in.
type HeapType uint8

// Heap types.
const (
	// HeapTypeDefault is GPU-local memory, not CPU accessible.
	HeapTypeDefault HeapType = iota + 1

	// HeapTypeUpload is CPU-writable memory read by the GPU.
	HeapTypeUpload

	// HeapTypeReadback is GPU-writable memory read by the CPU.
	HeapTypeReadback
)

// String returns the heap type name.
func (h HeapType) String() string {
	switch h {
	case HeapTypeDefault:
		return "Default"
	case HeapTypeUpload:
		return "Upload"
	case HeapTypeReadback:
		return "Readback"
	default:
		return "Unknown"
	}
}

// ResourceState is a bitmask describing how a resource is being used.
// Transitions between states are declared with resource barriers.
type ResourceState uint32

// Resource states.
const (
	// ResourceStateCommon is the state for CPU access and implicit promotion.
	ResourceStateCommon ResourceState = 0

	// ResourceStateVertexAndConstantBuffer is used for vertex and constant buffers.
	ResourceStateVertexAndConstantBuffer ResourceState = 1 << 0

	// ResourceStateIndexBuffer is used for index buffers.
	ResourceStateIndexBuffer ResourceState = 1 << 1

	// ResourceStateRenderTarget is used for render targets.
	ResourceStateRenderTarget ResourceState = 1 << 2

	// ResourceStateNonPixelShaderResource is used for textures read outside the pixel stage.
	ResourceStateNonPixelShaderResource ResourceState = 1 << 6

	// ResourceStatePixelShaderResource is used for textures read by the pixel stage.
	ResourceStatePixelShaderResource ResourceState = 1 << 7

	// ResourceStateCopyDest is used for copy destinations.
	ResourceStateCopyDest ResourceState = 1 << 10

	// ResourceStateCopySource is used for copy sources.
	ResourceStateCopySource ResourceState = 1 << 11

	// ResourceStateGenericRead is the required state for upload heap resources.
	ResourceStateGenericRead = ResourceStateVertexAndConstantBuffer |
		ResourceStateIndexBuffer | ResourceStateNonPixelShaderResource |
		ResourceStatePixelShaderResource | ResourceStateCopySource | 1<<3 | 1<<9
)

// ResourceDimension is the kind of a resource.
type ResourceDimension uint8

// Resource dimensions.
const (
	// ResourceDimensionBuffer is a linear buffer.
	ResourceDimensionBuffer ResourceDimension = iota + 1

	// ResourceDimensionTexture2D is a two-dimensional texture.
	ResourceDimensionTexture2D
)

// TextureLayout is the memory layout of a texture.
type TextureLayout uint8

// Texture layouts.
const (
	// TextureLayoutUnknown lets the driver choose an opaque layout.
	TextureLayoutUnknown TextureLayout = iota

	// TextureLayoutRowMajor is the linear layout required for buffers.
	TextureLayoutRowMajor
)

// SampleDesc describes multisampling.
type SampleDesc struct {
	Count   uint32
	Quality uint32
}

// ResourceDesc describes a committed resource.
type ResourceDesc struct {
	// Dimension is the resource kind.
	Dimension ResourceDimension

	// Alignment is the placement alignment, 0 for the default.
	Alignment uint64

	// Width is the size in bytes for buffers, in texels for textures.
	Width uint64

	// Height is 1 for buffers.
	Height uint32

	// DepthOrArraySize is 1 for buffers and 2D textures.
	DepthOrArraySize uint16

	// MipLevels is 1 for buffers.
	MipLevels uint16

	// Format is FormatUnknown for buffers.
	Format Format

	// SampleDesc is {1, 0} for non-multisampled resources.
	SampleDesc SampleDesc

	// Layout is TextureLayoutRowMajor for buffers.
	Layout TextureLayout
}

// BufferDesc returns the description of a buffer of size bytes.
func BufferDesc(size uint64) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionBuffer,
		Width:            size,
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           FormatUnknown,
		SampleDesc:       SampleDesc{Count: 1},
		Layout:           TextureLayoutRowMajor,
	}
}

// Texture2DDesc returns the description of a single-mip 2D texture.
func Texture2DDesc(format Format, width, height uint32) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionTexture2D,
		Width:            uint64(width),
		Height:           height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           format,
		SampleDesc:       SampleDesc{Count: 1},
		Layout:           TextureLayoutUnknown,
	}
}

// Resource is a committed buffer or texture.
type Resource interface {
	// Desc returns the description the resource was created with.
	Desc() ResourceDesc

	// Map returns CPU-visible memory of a buffer in an upload or readback
	// heap. The slice is valid until Unmap.
	Map() ([]byte, error)

	// Unmap makes CPU writes since Map visible to the GPU.
	Unmap()

	// SetName attaches a debug name.
	SetName(name string)

	// Release frees the resource.
	Release()
}

// DescriptorHeapType is the kind of descriptors a heap holds.
type DescriptorHeapType uint8

// Descriptor heap types.
const (
	// DescriptorHeapTypeCBVSRVUAV holds constant buffer, shader resource and
	// unordered access views.
	DescriptorHeapTypeCBVSRVUAV DescriptorHeapType = iota + 1

	// DescriptorHeapTypeSampler holds samplers.
	DescriptorHeapTypeSampler

	// DescriptorHeapTypeRTV holds render target views.
	DescriptorHeapTypeRTV
)

// DescriptorHeapFlags modify descriptor heap creation.
type DescriptorHeapFlags uint8

// DescriptorHeapFlagShaderVisible makes the heap addressable from shaders
// through GPU descriptor handles.
const DescriptorHeapFlagShaderVisible DescriptorHeapFlags = 1

// DescriptorHeapDesc describes a descriptor heap.
type DescriptorHeapDesc struct {
	Type           DescriptorHeapType
	NumDescriptors uint32
	Flags          DescriptorHeapFlags
}

// CPUDescriptorHandle addresses a descriptor for CPU-side writes.
type CPUDescriptorHandle uint64

// Offset returns the handle n descriptors further, for a heap whose
// descriptor increment is increment.
func (h CPUDescriptorHandle) Offset(n, increment uint32) CPUDescriptorHandle {
	return h + CPUDescriptorHandle(uint64(n)*uint64(increment))
}

// GPUDescriptorHandle addresses a descriptor from a shader-visible table.
type GPUDescriptorHandle uint64

// Offset returns the handle n descriptors further, for a heap whose
// descriptor increment is increment.
func (h GPUDescriptorHandle) Offset(n, increment uint32) GPUDescriptorHandle {
	return h + GPUDescriptorHandle(uint64(n)*uint64(increment))
}

// DescriptorHeap is a contiguous array of descriptors.
type DescriptorHeap interface {
	// CPUStart returns the CPU handle of the first descriptor.
	CPUStart() CPUDescriptorHandle

	// GPUStart returns the GPU handle of the first descriptor. It is zero
	// for heaps without DescriptorHeapFlagShaderVisible.
	GPUStart() GPUDescriptorHandle

	// Increment returns the distance between consecutive handles.
	Increment() uint32

	// Release frees the heap.
	Release()
}

// SRVDimension is the view dimension of a shader resource view.
type SRVDimension uint8

// SRVDimensionTexture2D views a 2D texture.
const SRVDimensionTexture2D SRVDimension = 1

// DefaultShader4ComponentMapping maps texel channels to shader channels
// without swizzling.
const DefaultShader4ComponentMapping uint32 = 0x1688

// ShaderResourceViewDesc describes a shader resource view.
type ShaderResourceViewDesc struct {
	Format                  Format
	ViewDimension           SRVDimension
	Shader4ComponentMapping uint32
	MostDetailedMip         uint32
	MipLevels               uint32
}
