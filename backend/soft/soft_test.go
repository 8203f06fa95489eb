package soft

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/imrender/backend"
	"github.com/gogpu/imrender/gfx"
)

func mustResource(t *testing.T, d *Device, heap gfx.HeapType, desc gfx.ResourceDesc, state gfx.ResourceState) *Resource {
	t.Helper()
	r, err := d.CreateCommittedResource(heap, &desc, state)
	if err != nil {
		t.Fatalf("CreateCommittedResource: %v", err)
	}
	return r.(*Resource)
}

func mustList(t *testing.T, d *Device, typ gfx.CommandListType) (*CommandList, gfx.CommandQueue) {
	t.Helper()
	alloc, err := d.CreateCommandAllocator(typ)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	l, err := d.CreateCommandList(typ, alloc, nil)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	q, err := d.CreateCommandQueue(typ)
	if err != nil {
		t.Fatalf("CreateCommandQueue: %v", err)
	}
	return l.(*CommandList), q
}

func TestRegistered(t *testing.T) {
	dev, err := backend.Open(backend.BackendSoft, backend.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := dev.(*Device); !ok {
		t.Errorf("Open returned %T, want *Device", dev)
	}
}

func TestMap(t *testing.T) {
	d := New()

	tests := []struct {
		name    string
		heap    gfx.HeapType
		desc    gfx.ResourceDesc
		wantErr error
	}{
		{"upload buffer", gfx.HeapTypeUpload, gfx.BufferDesc(64), nil},
		{"readback buffer", gfx.HeapTypeReadback, gfx.BufferDesc(64), nil},
		{"default buffer", gfx.HeapTypeDefault, gfx.BufferDesc(64), gfx.ErrNotMappable},
		{"texture", gfx.HeapTypeDefault, gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, 4, 4), gfx.ErrNotMappable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustResource(t, d, tt.heap, tt.desc, gfx.ResourceStateGenericRead)
			data, err := r.Map()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Map() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				if len(data) != 64 {
					t.Errorf("len = %d, want 64", len(data))
				}
				if !r.Mapped() {
					t.Error("Mapped() = false after Map")
				}
				r.Unmap()
			}
		})
	}

	if got := d.Stats().Maps; got != 2 {
		t.Errorf("Stats().Maps = %d, want 2", got)
	}
}

func TestResourceLifecycle(t *testing.T) {
	d := New()
	r := mustResource(t, d, gfx.HeapTypeUpload, gfx.BufferDesc(16), gfx.ResourceStateGenericRead)
	r.SetName("scratch")
	if r.Name() != "scratch" {
		t.Errorf("Name() = %q", r.Name())
	}
	if s := d.Stats(); s.ResourcesCreated != 1 || s.ResourcesLive != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	r.Release()
	r.Release()
	if s := d.Stats(); s.ResourcesLive != 0 {
		t.Errorf("ResourcesLive = %d after release, want 0", s.ResourcesLive)
	}
	if _, err := r.Map(); !errors.Is(err, gfx.ErrReleased) {
		t.Errorf("Map() after release = %v, want ErrReleased", err)
	}
}

func TestCreateInvalid(t *testing.T) {
	d := New()
	bad := gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, 0, 4)
	if _, err := d.CreateCommittedResource(gfx.HeapTypeDefault, &bad, 0); !errors.Is(err, gfx.ErrInvalidDesc) {
		t.Errorf("zero width texture: %v", err)
	}
	tex := gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, 4, 4)
	if _, err := d.CreateCommittedResource(gfx.HeapTypeUpload, &tex, 0); !errors.Is(err, gfx.ErrInvalidDesc) {
		t.Errorf("upload texture: %v", err)
	}

	boom := errors.New("boom")
	d.FailHook = func(op string) error {
		if op == "CreateFence" {
			return boom
		}
		return nil
	}
	if _, err := d.CreateFence(0); !errors.Is(err, boom) {
		t.Errorf("CreateFence with hook = %v, want boom", err)
	}
}

func TestCopyTextureRegion(t *testing.T) {
	d := New()
	const w, h = 3, 2
	pitch := gfx.AlignUp(w*4, gfx.TextureDataPitchAlignment)

	tex := mustResource(t, d, gfx.HeapTypeDefault, gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, w, h), gfx.ResourceStateCopyDest)
	up := mustResource(t, d, gfx.HeapTypeUpload, gfx.BufferDesc(uint64(pitch*h)), gfx.ResourceStateGenericRead)
	data, err := up.Map()
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w*4; x++ {
			data[y*int(pitch)+x] = byte(y*16 + x)
		}
		// Padding must not reach the texture.
		data[y*int(pitch)+w*4] = 0xEE
	}
	up.Unmap()

	l, q := mustList(t, d, gfx.CommandListTypeDirect)
	l.CopyTextureRegion(
		&gfx.TextureCopyLocation{Resource: tex, Type: gfx.TextureCopyTypeSubresourceIndex},
		0, 0, 0,
		&gfx.TextureCopyLocation{Resource: up, Type: gfx.TextureCopyTypePlacedFootprint, PlacedFootprint: gfx.PlacedSubresourceFootprint{
			Footprint: gfx.SubresourceFootprint{Format: gfx.FormatR8G8B8A8Unorm, Width: w, Height: h, Depth: 1, RowPitch: pitch},
		}},
		nil,
	)
	l.ResourceBarrier([]gfx.ResourceBarrier{
		gfx.TransitionBarrier(tex, gfx.ResourceStateCopyDest, gfx.ResourceStatePixelShaderResource),
	})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.ExecuteCommandLists([]gfx.GraphicsCommandList{l}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := d.ReadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w*4; x++ {
			if want := byte(y*16 + x); got[y*w*4+x] != want {
				t.Fatalf("texel byte (%d,%d) = %#x, want %#x", x, y, got[y*w*4+x], want)
			}
		}
	}
	if tex.State() != gfx.ResourceStatePixelShaderResource {
		t.Errorf("State() = %#x, want PixelShaderResource", tex.State())
	}
	if want := []string{"CopyTextureRegion", "ResourceBarrier"}; strings.Join(l.Calls(), ",") != strings.Join(want, ",") {
		t.Errorf("Calls() = %v, want %v", l.Calls(), want)
	}
}

func TestBarrierStateMismatch(t *testing.T) {
	d := New()
	tex := mustResource(t, d, gfx.HeapTypeDefault, gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, 1, 1), gfx.ResourceStateCommon)
	l, q := mustList(t, d, gfx.CommandListTypeDirect)
	l.ResourceBarrier([]gfx.ResourceBarrier{
		gfx.TransitionBarrier(tex, gfx.ResourceStateCopyDest, gfx.ResourceStatePixelShaderResource),
	})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.ExecuteCommandLists([]gfx.GraphicsCommandList{l}); !errors.Is(err, gfx.ErrInvalidDesc) {
		t.Errorf("Execute() = %v, want ErrInvalidDesc", err)
	}
}

func TestCommandListLifecycle(t *testing.T) {
	d := New()
	l, q := mustList(t, d, gfx.CommandListTypeDirect)

	if err := q.ExecuteCommandLists([]gfx.GraphicsCommandList{l}); !errors.Is(err, gfx.ErrListOpen) {
		t.Errorf("executing an open list = %v, want ErrListOpen", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l.IASetPrimitiveTopology(gfx.PrimitiveTopologyTriangleList)
	if err := l.Close(); !errors.Is(err, gfx.ErrListClosed) {
		t.Errorf("Close() after recording on a closed list = %v, want ErrListClosed", err)
	}

	alloc, _ := d.CreateCommandAllocator(gfx.CommandListTypeDirect)
	if err := l.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(l.Calls()) != 0 {
		t.Errorf("Calls() after Reset = %v", l.Calls())
	}
	if err := l.Reset(alloc, nil); !errors.Is(err, gfx.ErrListOpen) {
		t.Errorf("Reset() on an open list = %v, want ErrListOpen", err)
	}
}

func TestFence(t *testing.T) {
	d := New()
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatal(err)
	}
	_, q := mustList(t, d, gfx.CommandListTypeDirect)

	done := make(chan error, 1)
	go func() { done <- f.Wait(3) }()
	if err := q.Signal(f, 3); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if f.CompletedValue() != 3 {
		t.Errorf("CompletedValue() = %d, want 3", f.CompletedValue())
	}

	go func() { done <- f.Wait(10) }()
	f.Release()
	if err := <-done; !errors.Is(err, gfx.ErrReleased) {
		t.Errorf("Wait() after Release = %v, want ErrReleased", err)
	}
}

// quadScene holds a minimal textured pipeline drawing into an 8x8 target.
type quadScene struct {
	dev  *Device
	rs   gfx.RootSignature
	pso  gfx.PipelineState
	vb   *Resource
	ib   *Resource
	srv  gfx.GPUDescriptorHandle
	img  *image.RGBA
	list *CommandList
	q    gfx.CommandQueue
}

func ortho(l, r, t, b float32) []uint32 {
	m := [16]float32{
		2 / (r - l), 0, 0, 0,
		0, 2 / (t - b), 0, 0,
		0, 0, 0.5, 0,
		(r + l) / (l - r), (t + b) / (b - t), 0.5, 1,
	}
	out := make([]uint32, 16)
	for i, v := range m {
		out[i] = math.Float32bits(v)
	}
	return out
}

func newQuadScene(t *testing.T, texel [4]byte) *quadScene {
	t.Helper()
	d := New()
	s := &quadScene{dev: d, img: image.NewRGBA(image.Rect(0, 0, 8, 8))}

	rs, err := d.CreateRootSignature(&gfx.RootSignatureDesc{
		Parameters: []gfx.RootParameter{
			{ParameterType: gfx.RootParameterType32BitConstants, ShaderVisibility: gfx.ShaderVisibilityVertex,
				Constants: gfx.RootConstants{Num32BitValues: 16}},
			{ParameterType: gfx.RootParameterTypeDescriptorTable, ShaderVisibility: gfx.ShaderVisibilityPixel,
				Ranges: []gfx.DescriptorRange{{RangeType: gfx.DescriptorRangeTypeSRV, NumDescriptors: 1}}},
		},
		StaticSamplers: []gfx.StaticSampler{{
			Filter: gfx.FilterMinMagMipPoint, AddressU: gfx.TextureAddressModeWrap,
			AddressV: gfx.TextureAddressModeWrap, AddressW: gfx.TextureAddressModeWrap,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	s.rs = rs

	desc := gfx.GraphicsPipelineStateDesc{
		RootSignature: rs,
		VS:            gfx.ShaderBytecode{Code: []byte{1}},
		PS:            gfx.ShaderBytecode{Code: []byte{1}},
		InputLayout: []gfx.InputElementDesc{
			{SemanticName: "POSITION", Format: gfx.FormatR32G32Float, AlignedByteOffset: 0},
			{SemanticName: "TEXCOORD", Format: gfx.FormatR32G32Float, AlignedByteOffset: 8},
			{SemanticName: "COLOR", Format: gfx.FormatR8G8B8A8Unorm, AlignedByteOffset: 16},
		},
		PrimitiveTopologyType: gfx.PrimitiveTopologyTypeTriangle,
		NumRenderTargets:      1,
		SampleMask:            math.MaxUint32,
	}
	desc.RTVFormats[0] = gfx.FormatR8G8B8A8Unorm
	desc.BlendState.RenderTarget[0] = gfx.RenderTargetBlendDesc{
		BlendEnable: true,
		SrcBlend:    gfx.BlendSrcAlpha, DestBlend: gfx.BlendInvSrcAlpha, BlendOp: gfx.BlendOpAdd,
		SrcBlendAlpha: gfx.BlendOne, DestBlendAlpha: gfx.BlendInvSrcAlpha, BlendOpAlpha: gfx.BlendOpAdd,
		RenderTargetWriteMask: gfx.ColorWriteEnableAll,
	}
	pso, err := d.CreateGraphicsPipelineState(&desc)
	if err != nil {
		t.Fatal(err)
	}
	s.pso = pso

	tex := mustResource(t, d, gfx.HeapTypeDefault, gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, 1, 1), gfx.ResourceStatePixelShaderResource)
	copy(tex.Bytes(), texel[:])
	heap, err := d.CreateDescriptorHeap(&gfx.DescriptorHeapDesc{
		Type: gfx.DescriptorHeapTypeCBVSRVUAV, NumDescriptors: 4, Flags: gfx.DescriptorHeapFlagShaderVisible,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.CreateShaderResourceView(tex, &gfx.ShaderResourceViewDesc{
		Format: gfx.FormatR8G8B8A8Unorm, ViewDimension: gfx.SRVDimensionTexture2D,
		Shader4ComponentMapping: gfx.DefaultShader4ComponentMapping, MipLevels: 1,
	}, heap.CPUStart().Offset(1, heap.Increment())); err != nil {
		t.Fatal(err)
	}
	s.srv = heap.GPUStart().Offset(1, heap.Increment())

	s.vb = mustResource(t, d, gfx.HeapTypeUpload, gfx.BufferDesc(20*4), gfx.ResourceStateGenericRead)
	s.ib = mustResource(t, d, gfx.HeapTypeUpload, gfx.BufferDesc(2*6), gfx.ResourceStateGenericRead)
	s.list, s.q = mustList(t, d, gfx.CommandListTypeDirect)
	s.list.SetRenderTarget(s.img)
	return s
}

// quad writes an axis-aligned quad in display units.
func (s *quadScene) quad(x0, y0, x1, y1 float32, col [4]byte) {
	vb := s.vb.Bytes()
	pts := [4][2]float32{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	for i, p := range pts {
		o := i * 20
		binary.LittleEndian.PutUint32(vb[o:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(vb[o+4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(vb[o+8:], 0)
		binary.LittleEndian.PutUint32(vb[o+12:], 0)
		copy(vb[o+16:o+20], col[:])
	}
	ib := s.ib.Bytes()
	for i, idx := range []uint16{0, 1, 2, 0, 2, 3} {
		binary.LittleEndian.PutUint16(ib[i*2:], idx)
	}
}

func (s *quadScene) draw(t *testing.T, scissor gfx.Rect) {
	t.Helper()
	l := s.list
	l.RSSetViewports([]gfx.Viewport{{Width: 8, Height: 8, MaxDepth: 1}})
	l.IASetVertexBuffers(0, []gfx.VertexBufferView{{Buffer: s.vb, SizeInBytes: 80, StrideInBytes: 20}})
	l.IASetIndexBuffer(&gfx.IndexBufferView{Buffer: s.ib, SizeInBytes: 12, Format: gfx.FormatR16Uint})
	l.IASetPrimitiveTopology(gfx.PrimitiveTopologyTriangleList)
	l.SetGraphicsRootSignature(s.rs)
	l.SetPipelineState(s.pso)
	l.SetGraphicsRoot32BitConstants(0, ortho(0, 8, 0, 8), 0)
	l.SetGraphicsRootDescriptorTable(1, s.srv)
	l.RSSetScissorRects([]gfx.Rect{scissor})
	l.DrawIndexedInstanced(6, 1, 0, 0, 0)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.q.ExecuteCommandLists([]gfx.GraphicsCommandList{l}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestRasterizeQuad(t *testing.T) {
	s := newQuadScene(t, [4]byte{255, 255, 255, 255})
	s.quad(2, 2, 6, 5, [4]byte{255, 0, 0, 255})
	s.draw(t, gfx.Rect{Right: 8, Bottom: 8})

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := s.img.RGBAAt(x, y)
			inside := x >= 2 && x < 6 && y >= 2 && y < 5
			if inside && (c.R != 255 || c.G != 0 || c.A != 255) {
				t.Errorf("pixel (%d,%d) = %v, want opaque red", x, y, c)
			}
			if !inside && c.A != 0 {
				t.Errorf("pixel (%d,%d) = %v, want untouched", x, y, c)
			}
		}
	}
	if got := s.dev.Stats().PixelsWritten; got != 12 {
		t.Errorf("PixelsWritten = %d, want 12 (shared diagonal filled once)", got)
	}

	draws := s.list.Draws()
	if len(draws) != 1 {
		t.Fatalf("Draws() = %d, want 1", len(draws))
	}
	if draws[0].RootTables[1] != s.srv || len(draws[0].RootConstants[0]) != 16 {
		t.Errorf("draw snapshot = %+v", draws[0])
	}
}

func TestRasterizeScissorAndTexture(t *testing.T) {
	// A mid-grey opaque texel scales the vertex color.
	s := newQuadScene(t, [4]byte{128, 128, 128, 255})
	s.quad(0, 0, 8, 8, [4]byte{255, 255, 255, 255})
	s.draw(t, gfx.Rect{Left: 4, Top: 0, Right: 8, Bottom: 2})

	if got := s.dev.Stats().PixelsWritten; got != 8 {
		t.Errorf("PixelsWritten = %d, want 8", got)
	}
	c := s.img.RGBAAt(5, 1)
	if c.R != 128 || c.A != 255 {
		t.Errorf("pixel (5,1) = %v, want R=128 A=255", c)
	}
	if c := s.img.RGBAAt(3, 1); c.A != 0 {
		t.Errorf("pixel (3,1) outside scissor = %v", c)
	}
}

func TestRasterizeBlend(t *testing.T) {
	s := newQuadScene(t, [4]byte{255, 255, 255, 255})
	for i := range s.img.Pix {
		s.img.Pix[i] = 255
	}
	s.quad(0, 0, 8, 8, [4]byte{0, 0, 0, 128})
	s.draw(t, gfx.Rect{Right: 8, Bottom: 8})

	// 0*0.502 + 1*(1-0.502) = 0.498 -> 127
	c := s.img.RGBAAt(4, 4)
	if c.R != 127 || c.A != 255 {
		t.Errorf("blended pixel = %v, want R=127 A=255", c)
	}
}

func TestRasterizeUnknownTexture(t *testing.T) {
	s := newQuadScene(t, [4]byte{255, 255, 255, 255})
	s.srv = 12345
	s.quad(0, 0, 8, 8, [4]byte{255, 255, 255, 255})
	l := s.list
	l.RSSetViewports([]gfx.Viewport{{Width: 8, Height: 8, MaxDepth: 1}})
	l.IASetVertexBuffers(0, []gfx.VertexBufferView{{Buffer: s.vb, SizeInBytes: 80, StrideInBytes: 20}})
	l.IASetIndexBuffer(&gfx.IndexBufferView{Buffer: s.ib, SizeInBytes: 12, Format: gfx.FormatR16Uint})
	l.IASetPrimitiveTopology(gfx.PrimitiveTopologyTriangleList)
	l.SetGraphicsRootSignature(s.rs)
	l.SetPipelineState(s.pso)
	l.SetGraphicsRoot32BitConstants(0, ortho(0, 8, 0, 8), 0)
	l.SetGraphicsRootDescriptorTable(1, s.srv)
	l.RSSetScissorRects([]gfx.Rect{{Right: 8, Bottom: 8}})
	l.DrawIndexedInstanced(6, 1, 0, 0, 0)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	err := s.q.ExecuteCommandLists([]gfx.GraphicsCommandList{l})
	if !errors.Is(err, gfx.ErrUnknownDescriptor) {
		t.Errorf("Execute() = %v, want ErrUnknownDescriptor", err)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		i, n   int
		mode   gfx.TextureAddressMode
		want   int
		wantOK bool
	}{
		{5, 4, gfx.TextureAddressModeWrap, 1, true},
		{-1, 4, gfx.TextureAddressModeWrap, 3, true},
		{5, 4, gfx.TextureAddressModeClamp, 3, true},
		{-2, 4, gfx.TextureAddressModeClamp, 0, true},
		{4, 4, gfx.TextureAddressModeMirror, 3, true},
		{4, 4, gfx.TextureAddressModeBorder, 0, false},
	}
	for _, tt := range tests {
		got, ok := address(tt.i, tt.n, tt.mode)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("address(%d, %d, %d) = %d, %v; want %d, %v", tt.i, tt.n, tt.mode, got, ok, tt.want, tt.wantOK)
		}
	}
}
