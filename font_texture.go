package imrender

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/imrender/fontatlas"
	"github.com/gogpu/imrender/gfx"
)

const fontTextureName = "imgui font texture"

// uploadFontTexture rasterizes the atlas, copies it into a new default heap
// texture and writes a shader resource view for it at cpu. On success the
// atlas texture id becomes gpu. The copy has completed when it returns.
func uploadFontTexture(dev gfx.Device, atlas *fontatlas.Atlas, cpu gfx.CPUDescriptorHandle, gpu gfx.GPUDescriptorHandle, log *slog.Logger) (gfx.Resource, error) {
	pixels, w, h, err := atlas.TexDataAsRGBA32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFontUpload, err)
	}
	width, height := uint32(w), uint32(h) //nolint:gosec // atlas dimensions are positive

	texDesc := gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, width, height)
	tex, err := dev.CreateCommittedResource(gfx.HeapTypeDefault, &texDesc, gfx.ResourceStateCopyDest)
	if err != nil {
		return nil, fmt.Errorf("%w: create texture: %w", ErrFontUpload, err)
	}
	tex.SetName(fontTextureName)

	if err := copyToTexture(dev, tex, pixels, width, height); err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: %w", ErrFontUpload, err)
	}

	srv := &gfx.ShaderResourceViewDesc{
		Format:                  gfx.FormatR8G8B8A8Unorm,
		ViewDimension:           gfx.SRVDimensionTexture2D,
		Shader4ComponentMapping: gfx.DefaultShader4ComponentMapping,
		MipLevels:               1,
	}
	if err := dev.CreateShaderResourceView(tex, srv, cpu); err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: shader resource view: %w", ErrFontUpload, err)
	}

	atlas.SetTexID(uint64(gpu))
	log.Info("imrender: font texture uploaded",
		slog.Int("width", w), slog.Int("height", h), slog.Uint64("tex_id", uint64(gpu)))
	return tex, nil
}

// copyToTexture stages pixels in an upload buffer with 256-byte aligned
// rows, copies them into tex and waits for the copy. tex must be in the
// copy destination state; it ends up readable by pixel shaders.
func copyToTexture(dev gfx.Device, tex gfx.Resource, pixels []byte, width, height uint32) error {
	srcPitch := width * 4
	pitch := gfx.AlignUp(srcPitch, gfx.TextureDataPitchAlignment)

	bufDesc := gfx.BufferDesc(uint64(pitch) * uint64(height))
	upload, err := dev.CreateCommittedResource(gfx.HeapTypeUpload, &bufDesc, gfx.ResourceStateGenericRead)
	if err != nil {
		return fmt.Errorf("create upload buffer: %w", err)
	}
	defer upload.Release()

	staging, err := upload.Map()
	if err != nil {
		return fmt.Errorf("map upload buffer: %w", err)
	}
	for y := range height {
		copy(staging[y*pitch:y*pitch+srcPitch], pixels[y*srcPitch:(y+1)*srcPitch])
	}
	upload.Unmap()

	fence, err := dev.CreateFence(0)
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer fence.Release()

	queue, err := dev.CreateCommandQueue(gfx.CommandListTypeDirect)
	if err != nil {
		return fmt.Errorf("create command queue: %w", err)
	}
	defer queue.Release()

	alloc, err := dev.CreateCommandAllocator(gfx.CommandListTypeDirect)
	if err != nil {
		return fmt.Errorf("create command allocator: %w", err)
	}
	defer alloc.Release()

	list, err := dev.CreateCommandList(gfx.CommandListTypeDirect, alloc, nil)
	if err != nil {
		return fmt.Errorf("create command list: %w", err)
	}
	defer list.Release()

	dst := &gfx.TextureCopyLocation{
		Resource:         tex,
		Type:             gfx.TextureCopyTypeSubresourceIndex,
		SubresourceIndex: 0,
	}
	src := &gfx.TextureCopyLocation{
		Resource: upload,
		Type:     gfx.TextureCopyTypePlacedFootprint,
		PlacedFootprint: gfx.PlacedSubresourceFootprint{
			Footprint: gfx.SubresourceFootprint{
				Format:   gfx.FormatR8G8B8A8Unorm,
				Width:    width,
				Height:   height,
				Depth:    1,
				RowPitch: pitch,
			},
		},
	}
	list.CopyTextureRegion(dst, 0, 0, 0, src, nil)
	list.ResourceBarrier([]gfx.ResourceBarrier{
		gfx.TransitionBarrier(tex, gfx.ResourceStateCopyDest, gfx.ResourceStatePixelShaderResource),
	})
	if err := list.Close(); err != nil {
		return fmt.Errorf("close command list: %w", err)
	}

	if err := queue.ExecuteCommandLists([]gfx.GraphicsCommandList{list}); err != nil {
		return fmt.Errorf("execute copy: %w", err)
	}
	if err := queue.Signal(fence, 1); err != nil {
		return fmt.Errorf("signal fence: %w", err)
	}
	if err := fence.Wait(1); err != nil {
		return fmt.Errorf("wait for copy: %w", err)
	}
	return nil
}
