package gfx

// ShaderVisibility selects the shader stages a root parameter is visible to.
type ShaderVisibility uint8

// Shader visibilities.
const (
	ShaderVisibilityAll ShaderVisibility = iota
	ShaderVisibilityVertex
	ShaderVisibilityHull
	ShaderVisibilityDomain
	ShaderVisibilityGeometry
	ShaderVisibilityPixel
)

// RootParameterType is the kind of a root parameter.
type RootParameterType uint8

// Root parameter types.
const (
	// RootParameterTypeDescriptorTable is a table of descriptors in a heap.
	RootParameterTypeDescriptorTable RootParameterType = iota

	// RootParameterType32BitConstants is a block of inline 32-bit values.
	RootParameterType32BitConstants
)

// DescriptorRangeType is the kind of descriptors in a table range.
type DescriptorRangeType uint8

// Descriptor range types.
const (
	DescriptorRangeTypeSRV DescriptorRangeType = iota
	DescriptorRangeTypeUAV
	DescriptorRangeTypeCBV
	DescriptorRangeTypeSampler
)

// DescriptorRange is one range of a descriptor table.
type DescriptorRange struct {
	RangeType                         DescriptorRangeType
	NumDescriptors                    uint32
	BaseShaderRegister                uint32
	RegisterSpace                     uint32
	OffsetInDescriptorsFromTableStart uint32
}

// RootConstants describes inline root constants.
type RootConstants struct {
	ShaderRegister uint32
	RegisterSpace  uint32
	Num32BitValues uint32
}

// RootParameter is one slot of a root signature.
type RootParameter struct {
	ParameterType    RootParameterType
	ShaderVisibility ShaderVisibility

	// Constants is used when ParameterType is RootParameterType32BitConstants.
	Constants RootConstants

	// Ranges is used when ParameterType is RootParameterTypeDescriptorTable.
	Ranges []DescriptorRange
}

// Filter is a texture sampling filter.
type Filter uint8

// Filters.
const (
	FilterMinMagMipPoint Filter = iota
	FilterMinMagMipLinear
)

// TextureAddressMode resolves texture coordinates outside [0, 1].
type TextureAddressMode uint8

// Texture address modes.
const (
	TextureAddressModeWrap TextureAddressMode = iota + 1
	TextureAddressModeMirror
	TextureAddressModeClamp
	TextureAddressModeBorder
)

// ComparisonFunc compares a source value against a destination value.
type ComparisonFunc uint8

// Comparison functions.
const (
	ComparisonFuncNever ComparisonFunc = iota + 1
	ComparisonFuncLess
	ComparisonFuncEqual
	ComparisonFuncLessEqual
	ComparisonFuncGreater
	ComparisonFuncNotEqual
	ComparisonFuncGreaterEqual
	ComparisonFuncAlways
)

// StaticBorderColor is the border color of a static sampler.
type StaticBorderColor uint8

// Static border colors.
const (
	StaticBorderColorTransparentBlack StaticBorderColor = iota
	StaticBorderColorOpaqueBlack
	StaticBorderColorOpaqueWhite
)

// StaticSampler is a sampler baked into a root signature.
type StaticSampler struct {
	Filter           Filter
	AddressU         TextureAddressMode
	AddressV         TextureAddressMode
	AddressW         TextureAddressMode
	MipLODBias       float32
	MaxAnisotropy    uint32
	ComparisonFunc   ComparisonFunc
	BorderColor      StaticBorderColor
	MinLOD           float32
	MaxLOD           float32
	ShaderRegister   uint32
	RegisterSpace    uint32
	ShaderVisibility ShaderVisibility
}

// RootSignatureFlags modify root signature creation.
type RootSignatureFlags uint32

// Root signature flags.
const (
	RootSignatureFlagNone                           RootSignatureFlags = 0
	RootSignatureFlagAllowInputAssemblerInputLayout RootSignatureFlags = 1 << 0
	RootSignatureFlagDenyVertexShaderRootAccess     RootSignatureFlags = 1 << 1
	RootSignatureFlagDenyHullShaderRootAccess       RootSignatureFlags = 1 << 2
	RootSignatureFlagDenyDomainShaderRootAccess     RootSignatureFlags = 1 << 3
	RootSignatureFlagDenyGeometryShaderRootAccess   RootSignatureFlags = 1 << 4
	RootSignatureFlagDenyPixelShaderRootAccess      RootSignatureFlags = 1 << 5
)

// RootSignatureDesc describes the bindings a pipeline expects.
type RootSignatureDesc struct {
	Parameters     []RootParameter
	StaticSamplers []StaticSampler
	Flags          RootSignatureFlags
}

// RootSignature is a created root signature.
type RootSignature interface {
	// Desc returns the description the root signature was created with.
	Desc() RootSignatureDesc

	Release()
}

// ShaderBytecode is a compiled shader program.
type ShaderBytecode struct {
	// Code is the compiled program.
	Code []byte

	// EntryPoint is the name of the entry function.
	EntryPoint string
}

// Blend is a blend factor.
type Blend uint8

// Blend factors.
const (
	BlendZero Blend = iota + 1
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
	BlendBlendFactor
	BlendInvBlendFactor
)

// BlendOp combines the weighted source and destination.
type BlendOp uint8

// Blend operations.
const (
	BlendOpAdd BlendOp = iota + 1
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

// ColorWriteEnable is a mask of channels written to a render target.
type ColorWriteEnable uint8

// Color write masks.
const (
	ColorWriteEnableRed   ColorWriteEnable = 1
	ColorWriteEnableGreen ColorWriteEnable = 2
	ColorWriteEnableBlue  ColorWriteEnable = 4
	ColorWriteEnableAlpha ColorWriteEnable = 8
	ColorWriteEnableAll                    = ColorWriteEnableRed | ColorWriteEnableGreen |
		ColorWriteEnableBlue | ColorWriteEnableAlpha
)

// RenderTargetBlendDesc is the blend state of one render target.
type RenderTargetBlendDesc struct {
	BlendEnable           bool
	LogicOpEnable         bool
	SrcBlend              Blend
	DestBlend             Blend
	BlendOp               BlendOp
	SrcBlendAlpha         Blend
	DestBlendAlpha        Blend
	BlendOpAlpha          BlendOp
	RenderTargetWriteMask ColorWriteEnable
}

// BlendDesc is the output-merger blend state.
type BlendDesc struct {
	AlphaToCoverageEnable  bool
	IndependentBlendEnable bool
	RenderTarget           [8]RenderTargetBlendDesc
}

// FillMode selects how triangles are filled.
type FillMode uint8

// Fill modes.
const (
	FillModeWireframe FillMode = iota + 2
	FillModeSolid
)

// CullMode selects which triangles are discarded.
type CullMode uint8

// Cull modes.
const (
	CullModeNone CullMode = iota + 1
	CullModeFront
	CullModeBack
)

// RasterizerDesc is the rasterizer state.
type RasterizerDesc struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	MultisampleEnable     bool
	AntialiasedLineEnable bool
	ForcedSampleCount     uint32
	ConservativeRaster    bool
}

// DepthWriteMask enables or disables depth writes.
type DepthWriteMask uint8

// Depth write masks.
const (
	DepthWriteMaskZero DepthWriteMask = iota
	DepthWriteMaskAll
)

// StencilOp is a stencil buffer operation.
type StencilOp uint8

// Stencil operations.
const (
	StencilOpKeep StencilOp = iota + 1
	StencilOpZero
	StencilOpReplace
)

// DepthStencilOpDesc is the stencil state of one triangle face.
type DepthStencilOpDesc struct {
	StencilFailOp      StencilOp
	StencilDepthFailOp StencilOp
	StencilPassOp      StencilOp
	StencilFunc        ComparisonFunc
}

// DepthStencilDesc is the depth-stencil state.
type DepthStencilDesc struct {
	DepthEnable      bool
	DepthWriteMask   DepthWriteMask
	DepthFunc        ComparisonFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        DepthStencilOpDesc
	BackFace         DepthStencilOpDesc
}

// InputClassification selects per-vertex or per-instance attribute data.
type InputClassification uint8

// Input classifications.
const (
	InputClassificationPerVertexData InputClassification = iota
	InputClassificationPerInstanceData
)

// InputElementDesc describes one vertex attribute.
type InputElementDesc struct {
	SemanticName         string
	SemanticIndex        uint32
	Format               Format
	InputSlot            uint32
	AlignedByteOffset    uint32
	InputSlotClass       InputClassification
	InstanceDataStepRate uint32
}

// InputLayoutStride returns the byte size of a vertex described by elements
// in slot 0, assuming attributes are packed without trailing padding.
func InputLayoutStride(elements []InputElementDesc) uint32 {
	var stride uint32
	for _, e := range elements {
		if e.InputSlot != 0 {
			continue
		}
		if end := e.AlignedByteOffset + e.Format.Size(); end > stride {
			stride = end
		}
	}
	return stride
}

// PrimitiveTopologyType is the class of primitives a pipeline rasterizes.
type PrimitiveTopologyType uint8

// Primitive topology types.
const (
	PrimitiveTopologyTypeUndefined PrimitiveTopologyType = iota
	PrimitiveTopologyTypePoint
	PrimitiveTopologyTypeLine
	PrimitiveTopologyTypeTriangle
)

// GraphicsPipelineStateDesc describes a graphics pipeline state object.
type GraphicsPipelineStateDesc struct {
	RootSignature         RootSignature
	VS                    ShaderBytecode
	PS                    ShaderBytecode
	BlendState            BlendDesc
	SampleMask            uint32
	RasterizerState       RasterizerDesc
	DepthStencilState     DepthStencilDesc
	InputLayout           []InputElementDesc
	PrimitiveTopologyType PrimitiveTopologyType
	NumRenderTargets      uint32
	RTVFormats            [8]Format
	DSVFormat             Format
	SampleDesc            SampleDesc
	NodeMask              uint32
}

// PipelineState is a created graphics pipeline state object.
type PipelineState interface {
	// Desc returns the description the pipeline was created with.
	Desc() GraphicsPipelineStateDesc

	Release()
}
