package gfx

// CommandListType is the kind of work a command list or queue carries.
type CommandListType uint8

// Command list types.
const (
	// CommandListTypeDirect accepts draw, copy and state commands.
	CommandListTypeDirect CommandListType = iota

	// CommandListTypeCopy accepts copy commands only.
	CommandListTypeCopy CommandListType = 3
)

// PrimitiveTopology is the input-assembler primitive topology.
type PrimitiveTopology uint8

// Primitive topologies.
const (
	PrimitiveTopologyUndefined PrimitiveTopology = iota
	PrimitiveTopologyPointList
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyTriangleList
	PrimitiveTopologyTriangleStrip
)

// Viewport maps clip space to render target coordinates.
type Viewport struct {
	TopLeftX float32
	TopLeftY float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// Rect is an integer rectangle with exclusive right and bottom edges.
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// VertexBufferView binds a range of a buffer as vertex data.
type VertexBufferView struct {
	Buffer        Resource
	Offset        uint64
	SizeInBytes   uint32
	StrideInBytes uint32
}

// IndexBufferView binds a range of a buffer as index data.
type IndexBufferView struct {
	Buffer      Resource
	Offset      uint64
	SizeInBytes uint32
	Format      Format
}

// TextureCopyType selects how a TextureCopyLocation addresses its resource.
type TextureCopyType uint8

// Texture copy types.
const (
	// TextureCopyTypeSubresourceIndex addresses a texture subresource.
	TextureCopyTypeSubresourceIndex TextureCopyType = iota

	// TextureCopyTypePlacedFootprint addresses texture data laid out in a buffer.
	TextureCopyTypePlacedFootprint
)

// SubresourceFootprint describes texture data placed in a buffer.
type SubresourceFootprint struct {
	Format   Format
	Width    uint32
	Height   uint32
	Depth    uint32
	RowPitch uint32
}

// PlacedSubresourceFootprint is a footprint at a byte offset in a buffer.
type PlacedSubresourceFootprint struct {
	Offset    uint64
	Footprint SubresourceFootprint
}

// TextureCopyLocation is the source or destination of CopyTextureRegion.
type TextureCopyLocation struct {
	Resource         Resource
	Type             TextureCopyType
	SubresourceIndex uint32
	PlacedFootprint  PlacedSubresourceFootprint
}

// Box is a 3D region with exclusive right, bottom and back edges.
type Box struct {
	Left, Top, Front, Right, Bottom, Back uint32
}

// ResourceBarrierType is the kind of a resource barrier.
type ResourceBarrierType uint8

// ResourceBarrierTypeTransition declares a resource state change.
const ResourceBarrierTypeTransition ResourceBarrierType = 0

// BarrierAllSubresources addresses every subresource of a resource.
const BarrierAllSubresources = 0xffffffff

// ResourceTransitionBarrier describes a state change of a resource.
type ResourceTransitionBarrier struct {
	Resource    Resource
	Subresource uint32
	StateBefore ResourceState
	StateAfter  ResourceState
}

// ResourceBarrier synchronizes resource usage on the GPU timeline.
type ResourceBarrier struct {
	Type       ResourceBarrierType
	Transition ResourceTransitionBarrier
}

// TransitionBarrier returns a barrier moving every subresource of r from
// before to after.
func TransitionBarrier(r Resource, before, after ResourceState) ResourceBarrier {
	return ResourceBarrier{
		Type: ResourceBarrierTypeTransition,
		Transition: ResourceTransitionBarrier{
			Resource:    r,
			Subresource: BarrierAllSubresources,
			StateBefore: before,
			StateAfter:  after,
		},
	}
}

// GraphicsCommandList records commands for later execution on a queue.
//
// A command list is opened when created or reset and closed with Close.
// Commands recorded on a closed list are dropped and reported by the next
// Close.
type GraphicsCommandList interface {
	// SetGraphicsRootSignature binds the root signature for draws.
	SetGraphicsRootSignature(rs RootSignature)

	// SetPipelineState binds a pipeline state object.
	SetPipelineState(pso PipelineState)

	// SetGraphicsRoot32BitConstants writes values into the root constants
	// parameter rootIndex, starting at destOffset.
	SetGraphicsRoot32BitConstants(rootIndex uint32, values []uint32, destOffset uint32)

	// SetGraphicsRootDescriptorTable binds the descriptor table parameter
	// rootIndex to the descriptors starting at base.
	SetGraphicsRootDescriptorTable(rootIndex uint32, base GPUDescriptorHandle)

	// RSSetViewports sets the viewports.
	RSSetViewports(viewports []Viewport)

	// RSSetScissorRects sets the scissor rectangles.
	RSSetScissorRects(rects []Rect)

	// IASetVertexBuffers binds vertex buffers starting at startSlot.
	IASetVertexBuffers(startSlot uint32, views []VertexBufferView)

	// IASetIndexBuffer binds the index buffer.
	IASetIndexBuffer(view *IndexBufferView)

	// IASetPrimitiveTopology sets the primitive topology.
	IASetPrimitiveTopology(topology PrimitiveTopology)

	// OMSetBlendFactor sets the constant blend factor.
	OMSetBlendFactor(factor [4]float32)

	// DrawIndexedInstanced draws indexed, instanced primitives.
	DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndexLocation uint32,
		baseVertexLocation int32, startInstanceLocation uint32)

	// CopyTextureRegion copies a region from src to dst at (dstX, dstY, dstZ).
	// A nil srcBox copies the whole source.
	CopyTextureRegion(dst *TextureCopyLocation, dstX, dstY, dstZ uint32, src *TextureCopyLocation, srcBox *Box)

	// ResourceBarrier records resource barriers.
	ResourceBarrier(barriers []ResourceBarrier)

	// Close finishes recording.
	Close() error

	// Reset reopens a closed list for recording with the given allocator.
	Reset(allocator CommandAllocator, initial PipelineState) error

	// Release frees the list.
	Release()
}

// CommandAllocator backs the memory of recorded commands.
type CommandAllocator interface {
	// Reset reclaims memory of lists whose execution has completed.
	Reset() error

	Release()
}

// CommandQueue executes command lists in submission order.
type CommandQueue interface {
	// ExecuteCommandLists submits closed command lists.
	ExecuteCommandLists(lists []GraphicsCommandList) error

	// Signal sets fence to value once all previously submitted work has
	// completed on the GPU.
	Signal(fence Fence, value uint64) error

	Release()
}

// Fence is a monotonically increasing GPU/CPU synchronization counter.
type Fence interface {
	// CompletedValue returns the last value the GPU has reached.
	CompletedValue() uint64

	// Wait blocks until the fence reaches value.
	Wait(value uint64) error

	Release()
}
