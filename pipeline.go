package imrender

import (
	"fmt"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

// Root parameter slots of the draw list root signature.
const (
	rootParamProjection = 0
	rootParamTexture    = 1
)

// projectionConstants is the number of 32-bit root constants of the
// projection matrix.
const projectionConstants = 16

// drawVertLayout describes ui.DrawVert to the input assembler.
var drawVertLayout = []gfx.InputElementDesc{
	{SemanticName: "POSITION", Format: gfx.FormatR32G32Float, AlignedByteOffset: uint32(ui.DrawVertPosOffset)},
	{SemanticName: "TEXCOORD", Format: gfx.FormatR32G32Float, AlignedByteOffset: uint32(ui.DrawVertUVOffset)},
	{SemanticName: "COLOR", Format: gfx.FormatR8G8B8A8Unorm, AlignedByteOffset: uint32(ui.DrawVertColOffset)},
}

// indexFormat returns the index buffer format matching ui.DrawIdx.
func indexFormat() gfx.Format {
	if ui.DrawIdxSize == 4 {
		return gfx.FormatR32Uint
	}
	return gfx.FormatR16Uint
}

func rootSignatureDesc() *gfx.RootSignatureDesc {
	return &gfx.RootSignatureDesc{
		Parameters: []gfx.RootParameter{
			rootParamProjection: {
				ParameterType:    gfx.RootParameterType32BitConstants,
				ShaderVisibility: gfx.ShaderVisibilityVertex,
				Constants:        gfx.RootConstants{Num32BitValues: projectionConstants},
			},
			rootParamTexture: {
				ParameterType:    gfx.RootParameterTypeDescriptorTable,
				ShaderVisibility: gfx.ShaderVisibilityPixel,
				Ranges: []gfx.DescriptorRange{
					{RangeType: gfx.DescriptorRangeTypeSRV, NumDescriptors: 1},
				},
			},
		},
		// The baked font atlas needs bilinear filtering.
		StaticSamplers: []gfx.StaticSampler{{
			Filter:           gfx.FilterMinMagMipLinear,
			AddressU:         gfx.TextureAddressModeWrap,
			AddressV:         gfx.TextureAddressModeWrap,
			AddressW:         gfx.TextureAddressModeWrap,
			ComparisonFunc:   gfx.ComparisonFuncAlways,
			BorderColor:      gfx.StaticBorderColorTransparentBlack,
			ShaderVisibility: gfx.ShaderVisibilityPixel,
		}},
		Flags: gfx.RootSignatureFlagAllowInputAssemblerInputLayout |
			gfx.RootSignatureFlagDenyHullShaderRootAccess |
			gfx.RootSignatureFlagDenyDomainShaderRootAccess |
			gfx.RootSignatureFlagDenyGeometryShaderRootAccess,
	}
}

func pipelineStateDesc(rs gfx.RootSignature, vs, ps []byte, rtvFormat gfx.Format) *gfx.GraphicsPipelineStateDesc {
	keep := gfx.DepthStencilOpDesc{
		StencilFailOp:      gfx.StencilOpKeep,
		StencilDepthFailOp: gfx.StencilOpKeep,
		StencilPassOp:      gfx.StencilOpKeep,
		StencilFunc:        gfx.ComparisonFuncAlways,
	}
	desc := &gfx.GraphicsPipelineStateDesc{
		RootSignature: rs,
		VS:            gfx.ShaderBytecode{Code: vs, EntryPoint: VertexEntryPoint},
		PS:            gfx.ShaderBytecode{Code: ps, EntryPoint: PixelEntryPoint},
		SampleMask:    ^uint32(0),
		RasterizerState: gfx.RasterizerDesc{
			FillMode:        gfx.FillModeSolid,
			CullMode:        gfx.CullModeNone,
			DepthClipEnable: true,
		},
		DepthStencilState: gfx.DepthStencilDesc{
			DepthWriteMask: gfx.DepthWriteMaskAll,
			DepthFunc:      gfx.ComparisonFuncAlways,
			FrontFace:      keep,
			BackFace:       keep,
		},
		InputLayout:           drawVertLayout,
		PrimitiveTopologyType: gfx.PrimitiveTopologyTypeTriangle,
		NumRenderTargets:      1,
		SampleDesc:            gfx.SampleDesc{Count: 1},
	}
	desc.BlendState.RenderTarget[0] = gfx.RenderTargetBlendDesc{
		BlendEnable:           true,
		SrcBlend:              gfx.BlendSrcAlpha,
		DestBlend:             gfx.BlendInvSrcAlpha,
		BlendOp:               gfx.BlendOpAdd,
		SrcBlendAlpha:         gfx.BlendOne,
		DestBlendAlpha:        gfx.BlendInvSrcAlpha,
		BlendOpAlpha:          gfx.BlendOpAdd,
		RenderTargetWriteMask: gfx.ColorWriteEnableAll,
	}
	desc.RTVFormats[0] = rtvFormat
	return desc
}

// createPipeline builds the root signature and the pipeline state.
// On error nothing stays allocated.
func createPipeline(dev gfx.Device, c ShaderCompiler, rtvFormat gfx.Format) (gfx.RootSignature, gfx.PipelineState, error) {
	rs, err := dev.CreateRootSignature(rootSignatureDesc())
	if err != nil {
		return nil, nil, fmt.Errorf("imrender: create root signature: %w", err)
	}
	vs, ps, err := compileShaders(c)
	if err != nil {
		rs.Release()
		return nil, nil, err
	}
	pso, err := dev.CreateGraphicsPipelineState(pipelineStateDesc(rs, vs, ps, rtvFormat))
	if err != nil {
		rs.Release()
		return nil, nil, fmt.Errorf("imrender: create pipeline state: %w", err)
	}
	return rs, pso, nil
}
