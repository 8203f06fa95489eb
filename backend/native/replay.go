// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/wgpu/hal"
)

// groupKey identifies a bind group built during one execution. Constant
// snapshots are shared between draws, so their first element identifies
// them.
type groupKey struct {
	param     uint32
	rs        *RootSignature
	constants *uint32
	table     gfx.GPUDescriptorHandle
}

// replay is the state of one command list execution.
type replay struct {
	dev     *Device
	encoder hal.CommandEncoder
	target  renderTarget
	pass    hal.RenderPassEncoder
	clear   *gputypes.Color
	groups  map[groupKey]hal.BindGroup
	buffers []hal.Buffer
	skipped int
}

func newReplay(dev *Device, encoder hal.CommandEncoder, target renderTarget) *replay {
	return &replay{
		dev:     dev,
		encoder: encoder,
		target:  target,
		groups:  make(map[groupKey]hal.BindGroup),
	}
}

// beginPass returns the open render pass, beginning one on the target.
func (x *replay) beginPass() hal.RenderPassEncoder {
	if x.pass != nil {
		return x.pass
	}
	att := hal.RenderPassColorAttachment{
		View:    x.target.view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if x.clear != nil {
		att.LoadOp = gputypes.LoadOpClear
		att.ClearValue = *x.clear
		x.clear = nil
	}
	x.pass = x.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "imrender pass",
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
	return x.pass
}

func (x *replay) endPass() {
	if x.pass != nil {
		x.pass.End()
		x.pass = nil
	}
}

// finish ends the open pass and performs a clear no draw consumed.
func (x *replay) finish() {
	if x.clear != nil && x.target.view != nil {
		x.beginPass()
	}
	x.endPass()
}

// release destroys the bind groups and buffers created for the execution.
func (x *replay) release() {
	device := x.dev.device
	for _, bg := range x.groups {
		device.DestroyBindGroup(bg)
	}
	x.groups = nil
	for _, b := range x.buffers {
		device.DestroyBuffer(b)
	}
	x.buffers = nil
}

func (x *replay) draw(dc *drawCall) error {
	if x.target.view == nil {
		x.skipped++
		return nil
	}
	st := &dc.state
	sc, ok := x.scissor(st)
	if !ok {
		return nil
	}
	vb, ok := st.vb.Buffer.(*Resource)
	if !ok || vb.buffer == nil {
		return fmt.Errorf("native: vertex buffer is not a native buffer: %w", gfx.ErrInvalidDesc)
	}
	ib, ok := st.ib.Buffer.(*Resource)
	if !ok || ib.buffer == nil {
		return fmt.Errorf("native: index buffer is not a native buffer: %w", gfx.ErrInvalidDesc)
	}
	format, err := indexFormat(st.ib.Format)
	if err != nil {
		return err
	}

	groups := make([]hal.BindGroup, len(st.rootSig.params))
	for i := range st.rootSig.params {
		idx := uint32(i) //nolint:gosec // few root parameters
		if vals, ok := st.constants[idx]; ok {
			groups[i], err = x.constantsGroup(st.rootSig, idx, vals)
		} else {
			groups[i], err = x.tableGroup(st.rootSig, idx, st.tables[idx])
		}
		if err != nil {
			return err
		}
	}

	pass := x.beginPass()
	pass.SetPipeline(st.pipeline.objs.pipeline)
	for i, bg := range groups {
		pass.SetBindGroup(uint32(i), bg, nil) //nolint:gosec // few root parameters
	}
	vp := st.viewport
	pass.SetViewport(vp.TopLeftX, vp.TopLeftY, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	pass.SetScissorRect(sc[0], sc[1], sc[2], sc[3])
	pass.SetBlendConstant(&gputypes.Color{
		R: float64(st.blendFactor[0]),
		G: float64(st.blendFactor[1]),
		B: float64(st.blendFactor[2]),
		A: float64(st.blendFactor[3]),
	})
	pass.SetVertexBuffer(0, vb.buffer, st.vb.Offset)
	pass.SetIndexBuffer(ib.buffer, format, st.ib.Offset)
	pass.DrawIndexed(dc.indexCount, dc.instanceCount, dc.startIndex, dc.baseVertex, dc.startInstance)
	return nil
}

// scissor clamps the bound scissor to the target as x, y, width and
// height. It reports false when nothing remains to draw.
func (x *replay) scissor(st *boundState) ([4]uint32, bool) {
	w, h := int64(x.target.width), int64(x.target.height)
	left, top, right, bottom := int64(0), int64(0), w, h
	if st.hasScissor {
		left = max(int64(st.scissor.Left), 0)
		top = max(int64(st.scissor.Top), 0)
		right = min(int64(st.scissor.Right), w)
		bottom = min(int64(st.scissor.Bottom), h)
	}
	if right <= left || bottom <= top {
		return [4]uint32{}, false
	}
	//nolint:gosec // clamped to the target size
	return [4]uint32{uint32(left), uint32(top), uint32(right - left), uint32(bottom - top)}, true
}

// constantsGroup returns a bind group holding vals in a uniform buffer.
func (x *replay) constantsGroup(rs *RootSignature, idx uint32, vals []uint32) (hal.BindGroup, error) {
	key := groupKey{param: idx, rs: rs, constants: &vals[0]}
	if bg, ok := x.groups[key]; ok {
		return bg, nil
	}
	size := rs.params[idx].uniformSize
	device := x.dev.device
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "imrender root constants",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create constants buffer: %w", err)
	}
	x.buffers = append(x.buffers, buf)

	data := make([]byte, size)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	if err := x.dev.queue.WriteBuffer(buf, 0, data); err != nil {
		return nil, fmt.Errorf("native: write root constants: %w", err)
	}

	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "imrender root constants",
		Layout: rs.layouts[idx],
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: size}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create constants bind group: %w", err)
	}
	x.groups[key] = bg
	return bg, nil
}

// tableGroup returns a bind group holding the texture views of the
// descriptors starting at base, followed by the static samplers.
func (x *replay) tableGroup(rs *RootSignature, idx uint32, base gfx.GPUDescriptorHandle) (hal.BindGroup, error) {
	key := groupKey{param: idx, rs: rs, table: base}
	if bg, ok := x.groups[key]; ok {
		return bg, nil
	}
	p := rs.params[idx]
	entries := make([]gputypes.BindGroupEntry, 0, int(p.textures)+len(rs.samplers))
	for i := uint32(0); i < p.textures; i++ {
		v, err := x.dev.resolve(base.Offset(i, descriptorSize))
		if err != nil {
			return nil, err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  i,
			Resource: gputypes.TextureViewBinding{TextureView: v.view.NativeHandle()},
		})
	}
	if p.samplers {
		for j, s := range rs.samplers {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  p.textures + uint32(j), //nolint:gosec // few static samplers
				Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
			})
		}
	}
	bg, err := x.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "imrender descriptor table",
		Layout:  rs.layouts[idx],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create descriptor table bind group: %w", err)
	}
	x.groups[key] = bg
	return bg, nil
}

// readTexture copies src into the readback buffer dst laid out as fp.
func (x *replay) readTexture(dst, src *Resource, fp gfx.PlacedSubresourceFootprint) error {
	if src.texture == nil || dst.buffer == nil || dst.heap != gfx.HeapTypeReadback {
		return fmt.Errorf("native: readback needs a texture and a readback buffer: %w", gfx.ErrInvalidDesc)
	}
	if src.released || dst.released {
		return gfx.ErrReleased
	}
	f := fp.Footprint
	if f.RowPitch%gfx.TextureDataPitchAlignment != 0 {
		return fmt.Errorf("native: readback row pitch %d is not aligned: %w", f.RowPitch, gfx.ErrInvalidDesc)
	}
	x.endPass()
	x.encoder.CopyTextureToBuffer(src.texture, dst.buffer, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: fp.Offset, BytesPerRow: f.RowPitch, RowsPerImage: f.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: src.texture, MipLevel: 0},
		Size:         hal.Extent3D{Width: f.Width, Height: f.Height, DepthOrArrayLayers: 1},
	}})
	return nil
}
