// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/imrender/gfx"
)

func textureFormat(f gfx.Format) (gputypes.TextureFormat, error) {
	switch f {
	case gfx.FormatR8G8B8A8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gfx.FormatB8G8R8A8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gfx.FormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("native: texture format %s: %w", f, gfx.ErrInvalidDesc)
	}
}

func vertexFormat(f gfx.Format) (gputypes.VertexFormat, error) {
	switch f {
	case gfx.FormatR32G32Float:
		return gputypes.VertexFormatFloat32x2, nil
	case gfx.FormatR32G32B32A32Float:
		return gputypes.VertexFormatFloat32x4, nil
	case gfx.FormatR8G8B8A8Unorm:
		return gputypes.VertexFormatUnorm8x4, nil
	default:
		return 0, fmt.Errorf("native: vertex format %s: %w", f, gfx.ErrInvalidDesc)
	}
}

func indexFormat(f gfx.Format) (gputypes.IndexFormat, error) {
	switch f {
	case gfx.FormatR16Uint:
		return gputypes.IndexFormatUint16, nil
	case gfx.FormatR32Uint:
		return gputypes.IndexFormatUint32, nil
	default:
		return 0, fmt.Errorf("native: index format %s: %w", f, gfx.ErrInvalidDesc)
	}
}

func bufferUsage(heap gfx.HeapType) gputypes.BufferUsage {
	switch heap {
	case gfx.HeapTypeReadback:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageIndex |
			gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	}
}

func shaderStages(v gfx.ShaderVisibility) (gputypes.ShaderStage, error) {
	switch v {
	case gfx.ShaderVisibilityAll:
		return gputypes.ShaderStageVertex | gputypes.ShaderStageFragment, nil
	case gfx.ShaderVisibilityVertex:
		return gputypes.ShaderStageVertex, nil
	case gfx.ShaderVisibilityPixel:
		return gputypes.ShaderStageFragment, nil
	default:
		return 0, fmt.Errorf("native: shader visibility %d: %w", v, gfx.ErrInvalidDesc)
	}
}

func blendFactor(b gfx.Blend) gputypes.BlendFactor {
	switch b {
	case gfx.BlendZero:
		return gputypes.BlendFactorZero
	case gfx.BlendSrcColor:
		return gputypes.BlendFactorSrc
	case gfx.BlendInvSrcColor:
		return gputypes.BlendFactorOneMinusSrc
	case gfx.BlendSrcAlpha:
		return gputypes.BlendFactorSrcAlpha
	case gfx.BlendInvSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case gfx.BlendDestAlpha:
		return gputypes.BlendFactorDstAlpha
	case gfx.BlendInvDestAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case gfx.BlendDestColor:
		return gputypes.BlendFactorDst
	case gfx.BlendInvDestColor:
		return gputypes.BlendFactorOneMinusDst
	case gfx.BlendBlendFactor:
		return gputypes.BlendFactorConstant
	case gfx.BlendInvBlendFactor:
		return gputypes.BlendFactorOneMinusConstant
	default:
		return gputypes.BlendFactorOne
	}
}

func blendOperation(op gfx.BlendOp) gputypes.BlendOperation {
	switch op {
	case gfx.BlendOpSubtract:
		return gputypes.BlendOperationSubtract
	case gfx.BlendOpRevSubtract:
		return gputypes.BlendOperationReverseSubtract
	case gfx.BlendOpMin:
		return gputypes.BlendOperationMin
	case gfx.BlendOpMax:
		return gputypes.BlendOperationMax
	default:
		return gputypes.BlendOperationAdd
	}
}

// blendState returns nil when blending is disabled.
func blendState(rt *gfx.RenderTargetBlendDesc) *gputypes.BlendState {
	if !rt.BlendEnable {
		return nil
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: blendFactor(rt.SrcBlend),
			DstFactor: blendFactor(rt.DestBlend),
			Operation: blendOperation(rt.BlendOp),
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: blendFactor(rt.SrcBlendAlpha),
			DstFactor: blendFactor(rt.DestBlendAlpha),
			Operation: blendOperation(rt.BlendOpAlpha),
		},
	}
}

func colorWriteMask(m gfx.ColorWriteEnable) gputypes.ColorWriteMask {
	var mask gputypes.ColorWriteMask
	if m&gfx.ColorWriteEnableRed != 0 {
		mask |= gputypes.ColorWriteMaskRed
	}
	if m&gfx.ColorWriteEnableGreen != 0 {
		mask |= gputypes.ColorWriteMaskGreen
	}
	if m&gfx.ColorWriteEnableBlue != 0 {
		mask |= gputypes.ColorWriteMaskBlue
	}
	if m&gfx.ColorWriteEnableAlpha != 0 {
		mask |= gputypes.ColorWriteMaskAlpha
	}
	return mask
}

func cullMode(c gfx.CullMode) gputypes.CullMode {
	switch c {
	case gfx.CullModeFront:
		return gputypes.CullModeFront
	case gfx.CullModeBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

func addressMode(m gfx.TextureAddressMode) gputypes.AddressMode {
	switch m {
	case gfx.TextureAddressModeWrap:
		return gputypes.AddressModeRepeat
	case gfx.TextureAddressModeMirror:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func filterMode(f gfx.Filter) gputypes.FilterMode {
	if f == gfx.FilterMinMagMipPoint {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// textureUsage maps a resource state to the HAL usage a texture
// transitions into.
func textureUsage(s gfx.ResourceState) gputypes.TextureUsage {
	switch {
	case s&gfx.ResourceStateRenderTarget != 0:
		return gputypes.TextureUsageRenderAttachment
	case s&gfx.ResourceStateCopyDest != 0:
		return gputypes.TextureUsageCopyDst
	case s&gfx.ResourceStateCopySource != 0 && s&gfx.ResourceStatePixelShaderResource == 0:
		return gputypes.TextureUsageCopySrc
	default:
		return gputypes.TextureUsageTextureBinding
	}
}
