// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/wgpu/hal"
)

// uniformAlignment is the size granularity of uniform buffer bindings.
const uniformAlignment = 16

// RootSignature maps each root parameter to the bind group of the same
// index. Static samplers are bound after the textures of the first
// descriptor table.
type RootSignature struct {
	device   hal.Device
	desc     gfx.RootSignatureDesc
	layouts  []hal.BindGroupLayout
	params   []paramBinding
	samplers []hal.Sampler
	layout   hal.PipelineLayout
}

var _ gfx.RootSignature = (*RootSignature)(nil)

// paramBinding is the bind group shape of one root parameter.
type paramBinding struct {
	// uniformSize is the uniform buffer size of a constants parameter.
	uniformSize uint64

	// textures is the number of texture bindings of a table parameter.
	textures uint32

	// samplers reports whether the static samplers follow the textures.
	samplers bool
}

func newRootSignature(device hal.Device, desc *gfx.RootSignatureDesc) (_ *RootSignature, err error) {
	rs := &RootSignature{device: device, desc: *desc}
	rs.desc.Parameters = append([]gfx.RootParameter(nil), desc.Parameters...)
	rs.desc.StaticSamplers = append([]gfx.StaticSampler(nil), desc.StaticSamplers...)
	defer func() {
		if err != nil {
			rs.Release()
		}
	}()

	for _, s := range desc.StaticSamplers {
		sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
			Label:        "imrender static sampler",
			AddressModeU: addressMode(s.AddressU),
			AddressModeV: addressMode(s.AddressV),
			AddressModeW: addressMode(s.AddressW),
			MagFilter:    filterMode(s.Filter),
			MinFilter:    filterMode(s.Filter),
			MipmapFilter: filterMode(s.Filter),
		})
		if err != nil {
			return nil, fmt.Errorf("native: create sampler: %w", err)
		}
		rs.samplers = append(rs.samplers, sampler)
	}

	samplersPlaced := len(desc.StaticSamplers) == 0
	for i, p := range desc.Parameters {
		stages, err := shaderStages(p.ShaderVisibility)
		if err != nil {
			return nil, fmt.Errorf("native: root parameter %d: %w", i, err)
		}
		var (
			entries []gputypes.BindGroupLayoutEntry
			pb      paramBinding
		)
		switch p.ParameterType {
		case gfx.RootParameterType32BitConstants:
			n := p.Constants.Num32BitValues
			if n == 0 || n > 64 {
				return nil, fmt.Errorf("native: root parameter %d: %d constants: %w", i, n, gfx.ErrInvalidDesc)
			}
			pb.uniformSize = alignUniform(uint64(n) * 4)
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    0,
				Visibility: stages,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			})
		case gfx.RootParameterTypeDescriptorTable:
			for _, r := range p.Ranges {
				if r.RangeType != gfx.DescriptorRangeTypeSRV {
					return nil, fmt.Errorf("native: root parameter %d: range type %d: %w", i, r.RangeType, gfx.ErrInvalidDesc)
				}
				pb.textures += r.NumDescriptors
			}
			if pb.textures == 0 {
				return nil, fmt.Errorf("native: root parameter %d: empty descriptor table: %w", i, gfx.ErrInvalidDesc)
			}
			for b := uint32(0); b < pb.textures; b++ {
				entries = append(entries, gputypes.BindGroupLayoutEntry{
					Binding:    b,
					Visibility: stages,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				})
			}
			if !samplersPlaced {
				samplersPlaced = true
				pb.samplers = true
				for j := range desc.StaticSamplers {
					entries = append(entries, gputypes.BindGroupLayoutEntry{
						Binding:    pb.textures + uint32(j), //nolint:gosec // few static samplers
						Visibility: gputypes.ShaderStageFragment,
						Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
					})
				}
			}
		default:
			return nil, fmt.Errorf("native: root parameter %d: type %d: %w", i, p.ParameterType, gfx.ErrInvalidDesc)
		}

		layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("imrender root parameter %d", i),
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("native: root parameter %d: %w", i, err)
		}
		rs.layouts = append(rs.layouts, layout)
		rs.params = append(rs.params, pb)
	}
	if !samplersPlaced {
		return nil, fmt.Errorf("native: static samplers need a descriptor table: %w", gfx.ErrInvalidDesc)
	}

	rs.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "imrender pipeline layout",
		BindGroupLayouts: rs.layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create pipeline layout: %w", err)
	}
	return rs, nil
}

func alignUniform(n uint64) uint64 {
	return (n + uniformAlignment - 1) &^ (uniformAlignment - 1)
}

// Desc implements gfx.RootSignature.
func (rs *RootSignature) Desc() gfx.RootSignatureDesc { return rs.desc }

// Release implements gfx.RootSignature.
func (rs *RootSignature) Release() {
	if rs.layout != nil {
		rs.device.DestroyPipelineLayout(rs.layout)
		rs.layout = nil
	}
	for _, l := range rs.layouts {
		rs.device.DestroyBindGroupLayout(l)
	}
	rs.layouts = nil
	for _, s := range rs.samplers {
		rs.device.DestroySampler(s)
	}
	rs.samplers = nil
}

// PipelineState is a HAL render pipeline built from SPIR-V bytecode.
type PipelineState struct {
	desc   gfx.GraphicsPipelineStateDesc
	rs     *RootSignature
	stride uint32
	objs   pipelineObjects
}

var _ gfx.PipelineState = (*PipelineState)(nil)

func newPipelineState(device hal.Device, desc *gfx.GraphicsPipelineStateDesc) (*PipelineState, error) {
	rs, ok := desc.RootSignature.(*RootSignature)
	switch {
	case !ok || rs == nil || rs.layout == nil:
		return nil, fmt.Errorf("native: pipeline without native root signature: %w", gfx.ErrInvalidDesc)
	case desc.NumRenderTargets != 1:
		return nil, fmt.Errorf("native: %d render targets: %w", desc.NumRenderTargets, gfx.ErrInvalidDesc)
	case desc.PrimitiveTopologyType != gfx.PrimitiveTopologyTypeTriangle:
		return nil, fmt.Errorf("native: topology type %d not supported: %w", desc.PrimitiveTopologyType, gfx.ErrInvalidDesc)
	case desc.DepthStencilState.DepthEnable || desc.DepthStencilState.StencilEnable:
		return nil, fmt.Errorf("native: depth and stencil are not supported: %w", gfx.ErrInvalidDesc)
	}
	target, err := textureFormat(desc.RTVFormats[0])
	if err != nil {
		return nil, err
	}

	stride := gfx.InputLayoutStride(desc.InputLayout)
	attrs := make([]gputypes.VertexAttribute, 0, len(desc.InputLayout))
	for i, e := range desc.InputLayout {
		if e.InputSlot != 0 {
			return nil, fmt.Errorf("native: input slot %d: %w", e.InputSlot, gfx.ErrInvalidDesc)
		}
		format, err := vertexFormat(e.Format)
		if err != nil {
			return nil, fmt.Errorf("native: %s: %w", e.SemanticName, err)
		}
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         format,
			Offset:         uint64(e.AlignedByteOffset),
			ShaderLocation: uint32(i), //nolint:gosec // input layouts are short
		})
	}

	p := &PipelineState{desc: *desc, rs: rs, stride: stride}
	p.desc.InputLayout = append([]gfx.InputElementDesc(nil), desc.InputLayout...)
	p.objs.device = device
	if p.objs.vs, err = createShaderModule(device, "imrender vertex shader", desc.VS.Code); err != nil {
		return nil, fmt.Errorf("native: vertex shader: %w", err)
	}
	if p.objs.ps, err = createShaderModule(device, "imrender pixel shader", desc.PS.Code); err != nil {
		p.objs.destroy()
		return nil, fmt.Errorf("native: pixel shader: %w", err)
	}

	samples := desc.SampleDesc.Count
	if samples == 0 {
		samples = 1
	}
	rt := &desc.BlendState.RenderTarget[0]
	p.objs.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "imrender pipeline",
		Layout: rs.layout,
		Vertex: hal.VertexState{
			Module:     p.objs.vs,
			EntryPoint: desc.VS.EntryPoint,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: uint64(stride),
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  attrs,
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     p.objs.ps,
			EntryPoint: desc.PS.EntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    target,
				Blend:     blendState(rt),
				WriteMask: colorWriteMask(rt.RenderTargetWriteMask),
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: cullMode(desc.RasterizerState.CullMode),
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.objs.destroy()
		return nil, fmt.Errorf("native: create render pipeline: %w", err)
	}
	return p, nil
}

// Desc implements gfx.PipelineState.
func (p *PipelineState) Desc() gfx.GraphicsPipelineStateDesc { return p.desc }

// Release implements gfx.PipelineState.
func (p *PipelineState) Release() { p.objs.destroy() }
