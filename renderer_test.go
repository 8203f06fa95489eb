package imrender

import (
	"bytes"
	"errors"
	"image"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/imrender/backend/soft"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

// stubCompiler returns fake bytecode, failing one stage when err is set.
type stubCompiler struct {
	failStage ShaderStage
	err       error
}

func (c stubCompiler) Compile(stage ShaderStage, _, entry string) ([]byte, error) {
	if c.err != nil && stage == c.failStage {
		return nil, c.err
	}
	return []byte("bytecode:" + entry), nil
}

type fixture struct {
	ctx  *ui.Context
	dev  *soft.Device
	heap gfx.DescriptorHeap
	r    *Renderer
}

func newFixture(t *testing.T, framesInFlight int, opts ...Option) *fixture {
	t.Helper()
	ctx := ui.NewContext()
	ctx.DisplaySize = ui.Vec2{X: 64, Y: 48}
	dev := soft.New()
	heap, err := dev.CreateDescriptorHeap(&gfx.DescriptorHeapDesc{
		Type:           gfx.DescriptorHeapTypeCBVSRVUAV,
		NumDescriptors: 4,
		Flags:          gfx.DescriptorHeapFlagShaderVisible,
	})
	if err != nil {
		t.Fatalf("CreateDescriptorHeap: %v", err)
	}
	opts = append([]Option{WithShaderCompiler(stubCompiler{})}, opts...)
	r, err := New(ctx, dev, framesInFlight, gfx.FormatR8G8B8A8Unorm, heap.CPUStart(), heap.GPUStart(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{ctx: ctx, dev: dev, heap: heap, r: r}
}

func (f *fixture) list(t *testing.T) *soft.CommandList {
	t.Helper()
	alloc, err := f.dev.CreateCommandAllocator(gfx.CommandListTypeDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	l, err := f.dev.CreateCommandList(gfx.CommandListTypeDirect, alloc, nil)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	return l.(*soft.CommandList)
}

// frame runs one ui frame and returns its draw data.
func (f *fixture) frame(t *testing.T, draw func(dl *ui.DrawList)) *ui.DrawData {
	t.Helper()
	if err := f.r.NewFrame(); err != nil {
		t.Fatalf("Renderer.NewFrame: %v", err)
	}
	if err := f.ctx.NewFrame(); err != nil {
		t.Fatalf("Context.NewFrame: %v", err)
	}
	draw(f.ctx.BackgroundDrawList())
	return f.ctx.Render()
}

// render records dd into a fresh list.
func (f *fixture) render(t *testing.T, dd *ui.DrawData) *soft.CommandList {
	t.Helper()
	l := f.list(t)
	if err := f.r.RenderDrawData(dd, l); err != nil {
		t.Fatalf("RenderDrawData: %v", err)
	}
	return l
}

func quads(n int) func(dl *ui.DrawList) {
	return func(dl *ui.DrawList) {
		for i := range n {
			x := float32(i % 8 * 8)
			dl.AddRectFilled(ui.Vec2{X: x, Y: 0}, ui.Vec2{X: x + 4, Y: 4}, ui.ColorWhite)
		}
	}
}

// rawDrawData builds draw data from hand-made lists.
func rawDrawData(pos, size ui.Vec2, lists ...*ui.DrawList) *ui.DrawData {
	return ui.NewDrawData(pos, size, lists...)
}

func quadList(cmds ...ui.DrawCmd) *ui.DrawList {
	return &ui.DrawList{
		CmdBuffer: cmds,
		VtxBuffer: make([]ui.DrawVert, 4),
		IdxBuffer: []ui.DrawIdx{0, 1, 2, 0, 2, 3},
	}
}

func elements(count uint32, clip ui.Vec4, tex ui.TextureID) ui.DrawCmd {
	return ui.DrawCmd{Kind: ui.DrawCmdElements, ElemCount: count, ClipRect: clip, TextureID: tex}
}

func TestNewValidation(t *testing.T) {
	dev := soft.New()
	tests := []struct {
		name   string
		ctx    *ui.Context
		dev    gfx.Device
		frames int
		want   error
	}{
		{"nil context", nil, dev, 2, ErrNilContext},
		{"nil device", ui.NewContext(), nil, 2, ErrNilDevice},
		{"zero frames", ui.NewContext(), dev, 0, ErrInvalidFramesInFlight},
		{"negative frames", ui.NewContext(), dev, -3, ErrInvalidFramesInFlight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ctx, tt.dev, tt.frames, gfx.FormatR8G8B8A8Unorm, 0, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewAdvertisesBackend(t *testing.T) {
	f := newFixture(t, 2)
	if f.ctx.BackendFlags&ui.BackendFlagsRendererHasVtxOffset == 0 {
		t.Error("RendererHasVtxOffset not set")
	}
	if f.ctx.BackendRendererName != "imrender "+Version {
		t.Errorf("BackendRendererName = %q", f.ctx.BackendRendererName)
	}
	if f.r.DeviceObjectsValid() {
		t.Error("device objects created by New")
	}
	if got := f.dev.Stats().ResourcesCreated; got != 0 {
		t.Errorf("ResourcesCreated = %d, want 0", got)
	}
}

func TestNewFrameIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	for range 3 {
		if err := f.r.NewFrame(); err != nil {
			t.Fatalf("NewFrame: %v", err)
		}
	}
	if got := f.r.Stats().DeviceObjectBuilds; got != 1 {
		t.Errorf("DeviceObjectBuilds = %d, want 1", got)
	}
	if got := f.r.FontTextureID(); uint64(got) != uint64(f.heap.GPUStart()) {
		t.Errorf("FontTextureID = %#x, want %#x", uint64(got), uint64(f.heap.GPUStart()))
	}
	if len(f.r.objects.buffers) != 2 {
		t.Errorf("%d frame buffers, want 2", len(f.r.objects.buffers))
	}
	for i, b := range f.r.objects.buffers {
		if b.vb != nil || b.ib != nil {
			t.Errorf("frame %d buffers allocated before the first render", i)
		}
	}
}

func TestFontTextureUpload(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	tex := f.r.objects.fontTexture.(*soft.Resource)
	if tex.Name() != fontTextureName {
		t.Errorf("name = %q", tex.Name())
	}
	if tex.Heap() != gfx.HeapTypeDefault {
		t.Errorf("heap = %v, want Default", tex.Heap())
	}
	if tex.State() != gfx.ResourceStatePixelShaderResource {
		t.Errorf("state = %#x, want pixel shader resource", tex.State())
	}

	want, w, h, err := f.ctx.Fonts.TexDataAsRGBA32()
	if err != nil {
		t.Fatal(err)
	}
	if d := tex.Desc(); d.Width != uint64(w) || d.Height != uint32(h) || d.Format != gfx.FormatR8G8B8A8Unorm {
		t.Errorf("desc = %+v, want %dx%d RGBA8", d, w, h)
	}
	got, err := f.dev.ReadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("uploaded texels differ from the atlas")
	}

	viewed, err := f.dev.ResolveGPUHandle(f.heap.GPUStart())
	if err != nil {
		t.Fatalf("ResolveGPUHandle: %v", err)
	}
	if viewed != f.r.objects.fontTexture {
		t.Error("font descriptor does not view the font texture")
	}

	// The staging buffer is gone once the upload returns.
	if got := f.dev.Stats().ResourcesLive; got != 1 {
		t.Errorf("ResourcesLive = %d, want 1", got)
	}
}

func TestCopyToTexturePadsRows(t *testing.T) {
	dev := soft.New()
	const w, h = 3, 2
	desc := gfx.Texture2DDesc(gfx.FormatR8G8B8A8Unorm, w, h)
	tex, err := dev.CreateCommittedResource(gfx.HeapTypeDefault, &desc, gfx.ResourceStateCopyDest)
	if err != nil {
		t.Fatal(err)
	}
	pixels := make([]byte, w*h*4)
	for i := range pixels {
		pixels[i] = byte(i + 1)
	}
	if err := copyToTexture(dev, tex, pixels, w, h); err != nil {
		t.Fatalf("copyToTexture: %v", err)
	}
	got, err := dev.ReadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pixels) {
		t.Errorf("texels = %v, want %v", got, pixels)
	}
}

func TestInvalidateDeviceObjects(t *testing.T) {
	f := newFixture(t, 2)
	f.render(t, f.frame(t, quads(1)))

	f.r.InvalidateDeviceObjects()
	if f.r.DeviceObjectsValid() {
		t.Error("device objects still valid")
	}
	if got := f.ctx.Fonts.TexID(); got != 0 {
		t.Errorf("font TexID = %#x, want 0", got)
	}
	if got := f.dev.Stats().ResourcesLive; got != 0 {
		t.Errorf("ResourcesLive = %d, want 0", got)
	}
	err := f.r.RenderDrawData(f.ctx.DrawData(), f.list(t))
	if !errors.Is(err, ErrDeviceObjectsNotBuilt) {
		t.Errorf("RenderDrawData = %v, want ErrDeviceObjectsNotBuilt", err)
	}

	if err := f.r.NewFrame(); err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if got := f.r.Stats().DeviceObjectBuilds; got != 2 {
		t.Errorf("DeviceObjectBuilds = %d, want 2", got)
	}
}

func TestCreateDeviceObjectsRebuilds(t *testing.T) {
	f := newFixture(t, 1)
	for range 2 {
		if err := f.r.CreateDeviceObjects(); err != nil {
			t.Fatalf("CreateDeviceObjects: %v", err)
		}
	}
	if got := f.r.Stats().DeviceObjectBuilds; got != 2 {
		t.Errorf("DeviceObjectBuilds = %d, want 2", got)
	}
	if got := f.dev.Stats().ResourcesLive; got != 1 {
		t.Errorf("ResourcesLive = %d, want 1", got)
	}
}

func TestRenderSkipsEmptyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		size    ui.Vec2
		nilData bool
	}{
		{"zero width", ui.Vec2{X: 0, Y: 48}, false},
		{"zero height", ui.Vec2{X: 64, Y: 0}, false},
		{"negative", ui.Vec2{X: -1, Y: 10}, false},
		{"nil draw data", ui.Vec2{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			dd := f.frame(t, quads(1))
			dd.DisplaySize = tt.size
			if tt.nilData {
				dd = nil
			}
			maps := f.dev.Stats().Maps
			l := f.render(t, dd)
			if calls := l.Calls(); len(calls) != 0 {
				t.Errorf("recorded %v", calls)
			}
			if got := f.dev.Stats().Maps; got != maps {
				t.Errorf("Maps = %d, want %d", got, maps)
			}
			if f.r.frameIndex != math.MaxUint64 {
				t.Errorf("frame counter advanced to %d", f.r.frameIndex)
			}
			if got := f.r.Stats().FramesSkipped; got != 1 {
				t.Errorf("FramesSkipped = %d, want 1", got)
			}
		})
	}
}

func TestRenderBeforeNewFrame(t *testing.T) {
	f := newFixture(t, 2)
	dd := rawDrawData(ui.Vec2{}, ui.Vec2{X: 64, Y: 48}, quadList(elements(6, ui.Vec4{Z: 64, W: 48}, 1)))
	l := f.list(t)
	if err := f.r.RenderDrawData(dd, l); !errors.Is(err, ErrDeviceObjectsNotBuilt) {
		t.Errorf("RenderDrawData = %v, want ErrDeviceObjectsNotBuilt", err)
	}
	if len(l.Calls()) != 0 || f.r.frameIndex != math.MaxUint64 {
		t.Error("skipped frame recorded commands or advanced the counter")
	}
}

func TestRenderSingleQuad(t *testing.T) {
	f := newFixture(t, 2)
	dd := f.frame(t, func(dl *ui.DrawList) {
		dl.AddRectFilled(ui.Vec2{X: 8, Y: 8}, ui.Vec2{X: 24, Y: 16}, ui.ColorWhite)
	})
	l := f.render(t, dd)

	draws := l.Draws()
	if len(draws) != 1 {
		t.Fatalf("%d draws, want 1", len(draws))
	}
	d := draws[0]
	if d.IndexCount != 6 || d.InstanceCount != 1 || d.StartIndex != 0 || d.BaseVertex != 0 || d.StartInstance != 0 {
		t.Errorf("draw = %d/%d/%d/%d/%d, want 6/1/0/0/0",
			d.IndexCount, d.InstanceCount, d.StartIndex, d.BaseVertex, d.StartInstance)
	}
	if d.VertexBuffer.StrideInBytes != 20 || d.VertexBuffer.SizeInBytes != (4+DefaultVertexSlack)*20 {
		t.Errorf("vertex view = %+v", d.VertexBuffer)
	}
	if d.IndexBuffer.Format != gfx.FormatR16Uint || d.IndexBuffer.SizeInBytes != (6+DefaultIndexSlack)*2 {
		t.Errorf("index view = %+v", d.IndexBuffer)
	}
	if d.Topology != gfx.PrimitiveTopologyTriangleList {
		t.Errorf("topology = %v", d.Topology)
	}
	if want := (gfx.Viewport{Width: 64, Height: 48, MaxDepth: 1}); d.Viewport != want {
		t.Errorf("viewport = %+v, want %+v", d.Viewport, want)
	}
	if want := (gfx.Rect{Right: 64, Bottom: 48}); d.Scissor != want {
		t.Errorf("scissor = %+v, want %+v", d.Scissor, want)
	}
	if d.RootTables[rootParamTexture] != f.heap.GPUStart() {
		t.Errorf("texture table = %#x, want font texture", uint64(d.RootTables[rootParamTexture]))
	}
	if d.BlendFactor != [4]float32{} {
		t.Errorf("blend factor = %v", d.BlendFactor)
	}
	if d.Pipeline != f.r.objects.pipelineState || d.RootSignature != f.r.objects.rootSignature {
		t.Error("draw does not use the renderer pipeline")
	}

	vb := d.VertexBuffer.Buffer.(*soft.Resource)
	ib := d.IndexBuffer.Buffer.(*soft.Resource)
	if vb.Name() != "imgui VB 0" || ib.Name() != "imgui IB 0" {
		t.Errorf("names = %q, %q", vb.Name(), ib.Name())
	}
	if vb.Mapped() || ib.Mapped() {
		t.Error("buffers left mapped")
	}
	if want := vertexBytes(dd.CmdLists[0].VtxBuffer); !bytes.Equal(vb.Bytes()[:len(want)], want) {
		t.Error("vertex buffer contents differ from the draw list")
	}
	if want := indexBytes(dd.CmdLists[0].IdxBuffer); !bytes.Equal(ib.Bytes()[:len(want)], want) {
		t.Error("index buffer contents differ from the draw list")
	}
}

func TestRenderCallOrder(t *testing.T) {
	f := newFixture(t, 1)
	l := f.render(t, f.frame(t, quads(1)))
	want := []string{
		"RSSetViewports",
		"IASetVertexBuffers",
		"IASetIndexBuffer",
		"IASetPrimitiveTopology",
		"SetGraphicsRootSignature",
		"SetPipelineState",
		"SetGraphicsRoot32BitConstants",
		"OMSetBlendFactor",
		"SetGraphicsRootDescriptorTable",
		"RSSetScissorRects",
		"DrawIndexedInstanced",
	}
	if got := l.Calls(); !slices.Equal(got, want) {
		t.Errorf("calls:\n got %s\nwant %s", strings.Join(got, " "), strings.Join(want, " "))
	}
}

func TestOrthoProjection(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatal(err)
	}
	pos, size := ui.Vec2{X: 100, Y: 50}, ui.Vec2{X: 200, Y: 100}
	dd := rawDrawData(pos, size, quadList(elements(6, ui.Vec4{X: 100, Y: 50, Z: 300, W: 150}, 1)))
	d := f.render(t, dd).Draws()[0]

	got := d.RootConstants[rootParamProjection]
	want := []float32{
		2.0 / 200, 0, 0, 0,
		0, 2.0 / -100, 0, 0,
		0, 0, 0.5, 0,
		400.0 / -200, 200.0 / 100, 0.5, 1,
	}
	if len(got) != 16 {
		t.Fatalf("%d constants, want 16", len(got))
	}
	for i, w := range want {
		if g := math.Float32frombits(got[i]); math.Abs(float64(g-w)) > 1e-6 {
			t.Errorf("m[%d] = %v, want %v", i, g, w)
		}
	}
}

func TestScissorRelativeToDisplayPos(t *testing.T) {
	tests := []struct {
		name string
		clip ui.Vec4
		want gfx.Rect
	}{
		{"inside", ui.Vec4{X: 110, Y: 60, Z: 150, W: 90}, gfx.Rect{Left: 10, Top: 10, Right: 50, Bottom: 40}},
		{"truncated", ui.Vec4{X: 110.7, Y: 60.2, Z: 150.9, W: 90.5}, gfx.Rect{Left: 10, Top: 10, Right: 50, Bottom: 40}},
		{"full display", ui.Vec4{X: 100, Y: 50, Z: 300, W: 150}, gfx.Rect{Right: 200, Bottom: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			if err := f.r.NewFrame(); err != nil {
				t.Fatal(err)
			}
			dd := rawDrawData(ui.Vec2{X: 100, Y: 50}, ui.Vec2{X: 200, Y: 100}, quadList(elements(6, tt.clip, 1)))
			draws := f.render(t, dd).Draws()
			if len(draws) != 1 {
				t.Fatalf("%d draws, want 1", len(draws))
			}
			if draws[0].Scissor != tt.want {
				t.Errorf("scissor = %+v, want %+v", draws[0].Scissor, tt.want)
			}
		})
	}
}

func TestClippedCommandsSkipped(t *testing.T) {
	tests := []struct {
		name string
		clip ui.Vec4
	}{
		{"zero width", ui.Vec4{X: 10, Y: 0, Z: 10, W: 20}},
		{"zero height", ui.Vec4{X: 0, Y: 5, Z: 20, W: 5}},
		{"inverted", ui.Vec4{X: 30, Y: 30, Z: 10, W: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			if err := f.r.NewFrame(); err != nil {
				t.Fatal(err)
			}
			dd := rawDrawData(ui.Vec2{}, ui.Vec2{X: 64, Y: 48}, quadList(
				elements(3, tt.clip, 1),
				ui.DrawCmd{Kind: ui.DrawCmdElements, ElemCount: 3, IdxOffset: 3, ClipRect: ui.Vec4{Z: 64, W: 48}, TextureID: 1},
			))
			l := f.render(t, dd)
			draws := l.Draws()
			if len(draws) != 1 || draws[0].StartIndex != 3 {
				t.Fatalf("draws = %+v, want one draw starting at index 3", draws)
			}
			if n := strings.Count(strings.Join(l.Calls(), " "), "RSSetScissorRects"); n != 1 {
				t.Errorf("%d scissor calls, want 1", n)
			}
			if got := f.r.Stats().ClippedCommands; got != 1 {
				t.Errorf("ClippedCommands = %d, want 1", got)
			}
		})
	}
}

func TestMultipleListsRebaseOffsets(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatal(err)
	}
	full := ui.Vec4{Z: 64, W: 48}
	first := quadList(elements(6, full, 1))
	second := &ui.DrawList{
		CmdBuffer: []ui.DrawCmd{
			elements(3, full, 2),
			{Kind: ui.DrawCmdElements, ElemCount: 3, IdxOffset: 3, VtxOffset: 2, ClipRect: full, TextureID: 3},
		},
		VtxBuffer: make([]ui.DrawVert, 5),
		IdxBuffer: []ui.DrawIdx{0, 1, 2, 0, 1, 2},
	}
	draws := f.render(t, rawDrawData(ui.Vec2{}, ui.Vec2{X: 64, Y: 48}, first, second)).Draws()

	want := []struct {
		start uint32
		base  int32
		tex   gfx.GPUDescriptorHandle
	}{
		{0, 0, 1},
		{6, 4, 2},
		{9, 6, 3},
	}
	if len(draws) != len(want) {
		t.Fatalf("%d draws, want %d", len(draws), len(want))
	}
	for i, w := range want {
		d := draws[i]
		if d.StartIndex != w.start || d.BaseVertex != w.base || d.RootTables[rootParamTexture] != w.tex {
			t.Errorf("draw %d = start %d base %d tex %d, want %d/%d/%d",
				i, d.StartIndex, d.BaseVertex, d.RootTables[rootParamTexture], w.start, w.base, w.tex)
		}
	}
}

func TestCallbackAndResetRenderState(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatal(err)
	}
	full := ui.Vec4{Z: 64, W: 48}

	var gotList *ui.DrawList
	var gotData any
	dl := quadList(
		elements(3, full, 1),
		ui.DrawCmd{Kind: ui.DrawCmdCallback, UserCallback: func(list *ui.DrawList, cmd *ui.DrawCmd) {
			gotList, gotData = list, cmd.UserCallbackData
		}, UserCallbackData: "payload"},
		ui.DrawCmd{Kind: ui.DrawCmdResetRenderState},
		ui.DrawCmd{Kind: ui.DrawCmdElements, ElemCount: 3, IdxOffset: 3, ClipRect: full, TextureID: 1},
	)
	l := f.render(t, rawDrawData(ui.Vec2{}, ui.Vec2{X: 64, Y: 48}, dl))

	if gotList != dl || gotData != "payload" {
		t.Errorf("callback got list %p data %v", gotList, gotData)
	}
	calls := strings.Join(l.Calls(), " ")
	if n := strings.Count(calls, "RSSetViewports"); n != 2 {
		t.Errorf("render state set up %d times, want 2", n)
	}
	st := f.r.Stats()
	if st.DrawCalls != 2 || st.Callbacks != 1 || st.StateResets != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestUnknownCommandKindSkipped(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatal(err)
	}
	full := ui.Vec4{Z: 64, W: 48}
	dl := quadList(
		ui.DrawCmd{Kind: ui.DrawCmdKind(99), ElemCount: 3, ClipRect: full, TextureID: 1},
		elements(6, full, 1),
	)
	l := f.render(t, rawDrawData(ui.Vec2{}, ui.Vec2{X: 64, Y: 48}, dl))
	if n := len(l.Draws()); n != 1 {
		t.Errorf("%d draws, want 1", n)
	}
	st := f.r.Stats()
	if st.DrawCalls != 1 || st.ClippedCommands != 0 || st.Callbacks != 0 || st.StateResets != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFrameRotation(t *testing.T) {
	f := newFixture(t, 2)
	var vbs []gfx.Resource
	for range 3 {
		d := f.render(t, f.frame(t, quads(1))).Draws()[0]
		vbs = append(vbs, d.VertexBuffer.Buffer)
	}
	if vbs[0] == vbs[1] {
		t.Error("frames 0 and 1 share a vertex buffer")
	}
	if vbs[0] != vbs[2] {
		t.Error("frame 2 does not reuse the buffers of frame 0")
	}
	for i, b := range f.r.objects.buffers {
		if got := b.vb.(*soft.Resource).Name(); got != "imgui VB 0" {
			t.Errorf("slot %d vertex buffer name = %q, want %q", i, got, "imgui VB 0")
		}
		if got := b.ib.(*soft.Resource).Name(); got != "imgui IB 0" {
			t.Errorf("slot %d index buffer name = %q, want %q", i, got, "imgui IB 0")
		}
	}
}

func TestBufferNames(t *testing.T) {
	f := newFixture(t, 1, WithVertexSlack(0), WithIndexSlack(0))
	steps := []struct {
		quads  int
		vb, ib string
	}{
		{1, "imgui VB 0", "imgui IB 0"},
		{1, "imgui VB 0", "imgui IB 0"},
		{2, "imgui VB 1", "imgui IB 1"},
		{3, "imgui VB 2", "imgui IB 2"},
	}
	for i, s := range steps {
		f.render(t, f.frame(t, quads(s.quads)))
		b := f.r.objects.buffers[0]
		if got := b.vb.(*soft.Resource).Name(); got != s.vb {
			t.Errorf("step %d: vertex buffer name = %q, want %q", i, got, s.vb)
		}
		if got := b.ib.(*soft.Resource).Name(); got != s.ib {
			t.Errorf("step %d: index buffer name = %q, want %q", i, got, s.ib)
		}
	}
}

func TestBufferGrowth(t *testing.T) {
	f := newFixture(t, 1, WithVertexSlack(2), WithIndexSlack(3))
	steps := []struct {
		quads          int
		vbCap, ibCap   int
		vbGrow, ibGrow int
	}{
		{1, 6, 9, 1, 1},
		{1, 6, 9, 1, 1},
		{2, 10, 15, 2, 2},
		{1, 10, 15, 2, 2},
	}
	for i, s := range steps {
		f.render(t, f.frame(t, quads(s.quads)))
		b := f.r.objects.buffers[0]
		st := f.r.Stats()
		if b.vbCap != s.vbCap || b.ibCap != s.ibCap {
			t.Errorf("step %d: capacity %d/%d, want %d/%d", i, b.vbCap, b.ibCap, s.vbCap, s.ibCap)
		}
		if st.VertexBufferGrowths != s.vbGrow || st.IndexBufferGrowths != s.ibGrow {
			t.Errorf("step %d: growths %d/%d, want %d/%d", i, st.VertexBufferGrowths, st.IndexBufferGrowths, s.vbGrow, s.ibGrow)
		}
		if got := b.vb.Desc().Width; got != uint64(s.vbCap*20) {
			t.Errorf("step %d: vertex buffer %d bytes, want %d", i, got, s.vbCap*20)
		}
	}
	// Font texture plus one vertex and one index buffer.
	if got := f.dev.Stats().ResourcesLive; got != 3 {
		t.Errorf("ResourcesLive = %d, want 3", got)
	}
}

func TestShaderCompileError(t *testing.T) {
	boom := errors.New("unexpected token")
	f := newFixture(t, 2, WithShaderCompiler(stubCompiler{failStage: ShaderStagePixel, err: boom}))

	err := f.r.NewFrame()
	if !errors.Is(err, ErrShaderCompile) || !errors.Is(err, boom) {
		t.Fatalf("NewFrame = %v, want ErrShaderCompile wrapping the compiler error", err)
	}
	var ce *ShaderCompileError
	if !errors.As(err, &ce) || ce.Stage != ShaderStagePixel {
		t.Errorf("error = %#v, want pixel stage ShaderCompileError", err)
	}
	if f.r.DeviceObjectsValid() {
		t.Error("device objects valid after failure")
	}
	if got := f.dev.Stats().ResourcesLive; got != 0 {
		t.Errorf("ResourcesLive = %d, want 0", got)
	}
}

func TestDeviceFailureReleasesObjects(t *testing.T) {
	tests := []struct {
		op   string
		want error
	}{
		{"CreateRootSignature", nil},
		{"CreateGraphicsPipelineState", nil},
		{"CreateCommandQueue", ErrFontUpload},
		{"CreateFence", ErrFontUpload},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			f := newFixture(t, 2)
			injected := errors.New("injected")
			f.dev.FailHook = func(op string) error {
				if op == tt.op {
					return injected
				}
				return nil
			}
			err := f.r.NewFrame()
			if !errors.Is(err, injected) {
				t.Fatalf("NewFrame = %v, want injected failure", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("NewFrame = %v, want %v", err, tt.want)
			}
			if got := f.dev.Stats().ResourcesLive; got != 0 {
				t.Errorf("ResourcesLive = %d, want 0", got)
			}
			if got := f.ctx.Fonts.TexID(); got != 0 {
				t.Errorf("font TexID = %#x after failure", got)
			}

			f.dev.FailHook = nil
			if err := f.r.NewFrame(); err != nil {
				t.Errorf("NewFrame after recovery: %v", err)
			}
		})
	}
}

func TestBufferAllocationFailure(t *testing.T) {
	f := newFixture(t, 1)
	dd := f.frame(t, quads(1))
	injected := errors.New("out of memory")
	f.dev.FailHook = func(op string) error {
		if op == "CreateCommittedResource" {
			return injected
		}
		return nil
	}
	l := f.list(t)
	if err := f.r.RenderDrawData(dd, l); !errors.Is(err, injected) {
		t.Errorf("RenderDrawData = %v, want injected failure", err)
	}
	if len(l.Calls()) != 0 {
		t.Errorf("recorded %v after failure", l.Calls())
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t, 1)
	f.render(t, f.frame(t, quads(1)))
	f.r.Close()
	f.r.Close()
	if got := f.dev.Stats().ResourcesLive; got != 0 {
		t.Errorf("ResourcesLive = %d, want 0", got)
	}
	if err := f.r.NewFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("NewFrame = %v, want ErrClosed", err)
	}
	if err := f.r.RenderDrawData(f.ctx.DrawData(), f.list(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("RenderDrawData = %v, want ErrClosed", err)
	}
}

func TestRenderRasterizes(t *testing.T) {
	f := newFixture(t, 2)
	dd := f.frame(t, func(dl *ui.DrawList) {
		dl.AddRectFilled(ui.Vec2{X: 8, Y: 8}, ui.Vec2{X: 24, Y: 16}, ui.Color(255, 0, 0, 255))
	})

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	l := f.list(t)
	l.SetRenderTarget(img)
	l.ClearRenderTarget([4]uint8{0, 0, 0, 255})
	if err := f.r.RenderDrawData(dd, l); err != nil {
		t.Fatalf("RenderDrawData: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	q, err := f.dev.CreateCommandQueue(gfx.CommandListTypeDirect)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.ExecuteCommandLists([]gfx.GraphicsCommandList{l}); err != nil {
		t.Fatalf("ExecuteCommandLists: %v", err)
	}

	tests := []struct {
		x, y int
		want [4]uint8
	}{
		{10, 10, [4]uint8{255, 0, 0, 255}},
		{23, 15, [4]uint8{255, 0, 0, 255}},
		{4, 4, [4]uint8{0, 0, 0, 255}},
		{30, 10, [4]uint8{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		c := img.RGBAAt(tt.x, tt.y)
		if got := [4]uint8{c.R, c.G, c.B, c.A}; got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFramesInFlightRingWraps(t *testing.T) {
	f := newFixture(t, 3)
	var slots []uint64
	for range 5 {
		f.render(t, f.frame(t, quads(1)))
		slots = append(slots, f.r.frameIndex%3)
	}
	if want := []uint64{0, 1, 2, 0, 1}; !slices.Equal(slots, want) {
		t.Errorf("slots = %v, want %v", slots, want)
	}
}
