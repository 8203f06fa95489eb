package soft

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/imrender/gfx"
)

// vertex is a post-transform vertex in render target pixels.
type vertex struct {
	x, y float32
	u, v float32
	col  [4]float32
}

// texture is a bound shader resource with its sampler.
type texture struct {
	data    []byte
	w, h    int
	sampler gfx.StaticSampler
}

// rasterize draws d into its render target and returns the number of
// pixels written.
func (d *Device) rasterize(dr *Draw) (int, error) {
	pso, _ := dr.Pipeline.(*PipelineState)
	rs, _ := dr.RootSignature.(*RootSignature)
	if pso == nil || rs == nil {
		return 0, fmt.Errorf("soft: draw without pipeline: %w", gfx.ErrInvalidDesc)
	}
	if dr.Topology != gfx.PrimitiveTopologyTriangleList {
		return 0, fmt.Errorf("soft: topology %d not supported: %w", dr.Topology, gfx.ErrInvalidDesc)
	}
	if dr.IndexCount%3 != 0 {
		return 0, fmt.Errorf("soft: %d indices do not form triangles: %w", dr.IndexCount, gfx.ErrInvalidDesc)
	}

	mvp, err := drawMatrix(rs, dr)
	if err != nil {
		return 0, err
	}
	tex, err := d.drawTexture(rs, dr)
	if err != nil {
		return 0, err
	}

	bounds := scissorBounds(dr.target.Bounds(), dr.Viewport, dr.Scissor)
	if bounds.Empty() {
		return 0, nil
	}

	fetch, err := newVertexFetcher(pso, dr)
	if err != nil {
		return 0, err
	}

	written := 0
	for inst := uint32(0); inst < dr.InstanceCount; inst++ {
		for i := uint32(0); i < dr.IndexCount; i += 3 {
			var tri [3]vertex
			for k := range tri {
				v, err := fetch.vertex(dr.StartIndex + i + uint32(k)) //nolint:gosec // k < 3
				if err != nil {
					return written, err
				}
				tri[k] = transform(v, mvp, dr.Viewport)
			}
			written += d.fillTriangle(dr, pso, tex, bounds, tri)
		}
	}
	return written, nil
}

// drawMatrix returns the column-major matrix in the first root constants
// parameter, or identity if the root signature has none.
func drawMatrix(rs *RootSignature, dr *Draw) ([16]float32, error) {
	m := [16]float32{0: 1, 5: 1, 10: 1, 15: 1}
	if rs.constants < 0 {
		return m, nil
	}
	c := dr.RootConstants[uint32(rs.constants)] //nolint:gosec // non-negative index
	if len(c) < 16 {
		return m, fmt.Errorf("soft: draw needs 16 root constants, %d bound: %w", len(c), gfx.ErrInvalidDesc)
	}
	for i := range m {
		m[i] = math.Float32frombits(c[i])
	}
	return m, nil
}

// drawTexture resolves the texture of the first descriptor table.
func (d *Device) drawTexture(rs *RootSignature, dr *Draw) (*texture, error) {
	if rs.table < 0 {
		return nil, nil
	}
	h, ok := dr.RootTables[uint32(rs.table)] //nolint:gosec // non-negative index
	if !ok {
		return nil, fmt.Errorf("soft: descriptor table %d not bound: %w", rs.table, gfx.ErrInvalidDesc)
	}
	v, err := d.resolve(h)
	if err != nil {
		return nil, err
	}
	if v.res.released {
		return nil, gfx.ErrReleased
	}
	if v.res.state&gfx.ResourceStatePixelShaderResource == 0 {
		return nil, fmt.Errorf("soft: %q sampled in state %#x: %w", v.res.name, v.res.state, gfx.ErrInvalidDesc)
	}
	if v.res.desc.Format != gfx.FormatR8G8B8A8Unorm {
		return nil, fmt.Errorf("soft: sampling %s textures: %w", v.res.desc.Format, gfx.ErrInvalidDesc)
	}
	t := &texture{
		data: v.res.data,
		w:    int(v.res.desc.Width), //nolint:gosec // texture sizes fit int
		h:    int(v.res.desc.Height),
		sampler: gfx.StaticSampler{
			Filter:   gfx.FilterMinMagMipLinear,
			AddressU: gfx.TextureAddressModeClamp,
			AddressV: gfx.TextureAddressModeClamp,
		},
	}
	if len(rs.desc.StaticSamplers) > 0 {
		t.sampler = rs.desc.StaticSamplers[0]
	}
	return t, nil
}

// scissorBounds intersects the target, the viewport and the scissor.
func scissorBounds(target image.Rectangle, vp gfx.Viewport, sc gfx.Rect) image.Rectangle {
	r := target.Intersect(image.Rect(
		int(math.Floor(float64(vp.TopLeftX))), int(math.Floor(float64(vp.TopLeftY))),
		int(math.Ceil(float64(vp.TopLeftX+vp.Width))), int(math.Ceil(float64(vp.TopLeftY+vp.Height))),
	))
	return r.Intersect(image.Rect(int(sc.Left), int(sc.Top), int(sc.Right), int(sc.Bottom)))
}

// transform applies the matrix and the viewport mapping.
func transform(v vertex, m [16]float32, vp gfx.Viewport) vertex {
	cx := m[0]*v.x + m[4]*v.y + m[12]
	cy := m[1]*v.x + m[5]*v.y + m[13]
	cw := m[3]*v.x + m[7]*v.y + m[15]
	if cw == 0 {
		cw = 1
	}
	v.x = vp.TopLeftX + (cx/cw+1)*0.5*vp.Width
	v.y = vp.TopLeftY + (1-cy/cw)*0.5*vp.Height
	return v
}

// vertexFetcher reads indexed vertices from the bound buffers.
type vertexFetcher struct {
	layout   vertexLayout
	vb, ib   *Resource
	vbOffset uint64
	stride   uint64
	vbEnd    uint64
	ibOffset uint64
	ibEnd    uint64
	idxSize  uint64
	base     int64
}

func newVertexFetcher(pso *PipelineState, dr *Draw) (*vertexFetcher, error) {
	vb, ok1 := dr.VertexBuffer.Buffer.(*Resource)
	ib, ok2 := dr.IndexBuffer.Buffer.(*Resource)
	if !ok1 || !ok2 || vb == nil || ib == nil {
		return nil, fmt.Errorf("soft: draw without vertex or index buffer: %w", gfx.ErrInvalidDesc)
	}
	if vb.released || ib.released {
		return nil, gfx.ErrReleased
	}
	f := &vertexFetcher{
		layout:   pso.layout,
		vb:       vb,
		ib:       ib,
		vbOffset: dr.VertexBuffer.Offset,
		stride:   uint64(dr.VertexBuffer.StrideInBytes),
		vbEnd:    min(dr.VertexBuffer.Offset+uint64(dr.VertexBuffer.SizeInBytes), uint64(len(vb.data))),
		ibOffset: dr.IndexBuffer.Offset,
		ibEnd:    min(dr.IndexBuffer.Offset+uint64(dr.IndexBuffer.SizeInBytes), uint64(len(ib.data))),
		idxSize:  uint64(dr.IndexBuffer.Format.Size()),
		base:     int64(dr.BaseVertex),
	}
	if f.stride == 0 {
		return nil, fmt.Errorf("soft: zero vertex stride: %w", gfx.ErrInvalidDesc)
	}
	return f, nil
}

func (f *vertexFetcher) vertex(i uint32) (vertex, error) {
	io := f.ibOffset + uint64(i)*f.idxSize
	if io+f.idxSize > f.ibEnd {
		return vertex{}, fmt.Errorf("soft: index %d outside index buffer: %w", i, gfx.ErrInvalidDesc)
	}
	var idx int64
	if f.idxSize == 2 {
		idx = int64(binary.LittleEndian.Uint16(f.ib.data[io:]))
	} else {
		idx = int64(binary.LittleEndian.Uint32(f.ib.data[io:]))
	}
	idx += f.base
	if idx < 0 {
		return vertex{}, fmt.Errorf("soft: negative vertex %d: %w", idx, gfx.ErrInvalidDesc)
	}
	vo := f.vbOffset + uint64(idx)*f.stride
	if vo+f.stride > f.vbEnd {
		return vertex{}, fmt.Errorf("soft: vertex %d outside vertex buffer: %w", idx, gfx.ErrInvalidDesc)
	}
	raw := f.vb.data[vo : vo+f.stride]

	var v vertex
	var err error
	if v.x, v.y, err = readFloat2(raw, f.layout.pos); err != nil {
		return v, err
	}
	if v.u, v.v, err = readFloat2(raw, f.layout.uv); err != nil {
		return v, err
	}
	v.col, err = readColor(raw, f.layout.col)
	return v, err
}

func readFloat2(raw []byte, e gfx.InputElementDesc) (float32, float32, error) {
	o := e.AlignedByteOffset
	switch e.Format {
	case gfx.FormatR32G32Float, gfx.FormatR32G32B32A32Float:
		if int(o)+8 > len(raw) {
			break
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(raw[o:])),
			math.Float32frombits(binary.LittleEndian.Uint32(raw[o+4:])), nil
	}
	return 0, 0, fmt.Errorf("soft: %s attribute %s at %d: %w", e.SemanticName, e.Format, o, gfx.ErrInvalidDesc)
}

func readColor(raw []byte, e gfx.InputElementDesc) ([4]float32, error) {
	o := int(e.AlignedByteOffset)
	switch e.Format {
	case gfx.FormatR8G8B8A8Unorm:
		if o+4 > len(raw) {
			break
		}
		return [4]float32{
			float32(raw[o]) / 255, float32(raw[o+1]) / 255,
			float32(raw[o+2]) / 255, float32(raw[o+3]) / 255,
		}, nil
	case gfx.FormatR32G32B32A32Float:
		if o+16 > len(raw) {
			break
		}
		var c [4]float32
		for i := range c {
			c[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[o+4*i:]))
		}
		return c, nil
	}
	return [4]float32{}, fmt.Errorf("soft: COLOR attribute %s: %w", e.Format, gfx.ErrInvalidDesc)
}

// edge is the signed area of (a, b, p) in y-down pixel space.
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// ownsEdge implements a top-left fill rule so pixels on an edge shared by
// two triangles are filled once.
func ownsEdge(ax, ay, bx, by float32) bool {
	dy := by - ay
	return dy > 0 || (dy == 0 && bx-ax < 0)
}

// fillTriangle shades the pixel centers covered by tri within bounds.
func (d *Device) fillTriangle(dr *Draw, pso *PipelineState, tex *texture, bounds image.Rectangle, tri [3]vertex) int {
	area := edge(tri[0].x, tri[0].y, tri[1].x, tri[1].y, tri[2].x, tri[2].y)
	if area == 0 {
		return 0
	}
	if area < 0 {
		tri[1], tri[2] = tri[2], tri[1]
		area = -area
	}

	minX := int(math.Floor(float64(min(tri[0].x, tri[1].x, tri[2].x))))
	minY := int(math.Floor(float64(min(tri[0].y, tri[1].y, tri[2].y))))
	maxX := int(math.Ceil(float64(max(tri[0].x, tri[1].x, tri[2].x))))
	maxY := int(math.Ceil(float64(max(tri[0].y, tri[1].y, tri[2].y))))
	box := image.Rect(minX, minY, maxX, maxY).Intersect(bounds)

	owns := [3]bool{
		ownsEdge(tri[1].x, tri[1].y, tri[2].x, tri[2].y),
		ownsEdge(tri[2].x, tri[2].y, tri[0].x, tri[0].y),
		ownsEdge(tri[0].x, tri[0].y, tri[1].x, tri[1].y),
	}
	inside := func(w float32, i int) bool { return w > 0 || (w == 0 && owns[i]) }

	img := dr.target
	bgra := pso.desc.RTVFormats[0] == gfx.FormatB8G8R8A8Unorm
	n := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		py := float32(y) + 0.5
		for x := box.Min.X; x < box.Max.X; x++ {
			px := float32(x) + 0.5
			w0 := edge(tri[1].x, tri[1].y, tri[2].x, tri[2].y, px, py)
			w1 := edge(tri[2].x, tri[2].y, tri[0].x, tri[0].y, px, py)
			w2 := edge(tri[0].x, tri[0].y, tri[1].x, tri[1].y, px, py)
			if !inside(w0, 0) || !inside(w1, 1) || !inside(w2, 2) {
				continue
			}
			b0, b1, b2 := w0/area, w1/area, w2/area

			var src [4]float32
			for c := range src {
				src[c] = b0*tri[0].col[c] + b1*tri[1].col[c] + b2*tri[2].col[c]
			}
			if tex != nil {
				u := b0*tri[0].u + b1*tri[1].u + b2*tri[2].u
				v := b0*tri[0].v + b1*tri[1].v + b2*tri[2].v
				s := tex.sample(u, v)
				for c := range src {
					src[c] *= s[c]
				}
			}

			o := img.PixOffset(x, y)
			px4 := img.Pix[o : o+4 : o+4]
			if bgra {
				px4[0], px4[2] = px4[2], px4[0]
			}
			blendPixel(px4, src, &pso.desc.BlendState.RenderTarget[0], dr.BlendFactor)
			if bgra {
				px4[0], px4[2] = px4[2], px4[0]
			}
			n++
		}
	}
	return n
}

// sample filters the texture at (u, v).
func (t *texture) sample(u, v float32) [4]float32 {
	if t.sampler.Filter == gfx.FilterMinMagMipPoint {
		return t.texel(int(math.Floor(float64(u*float32(t.w)))), int(math.Floor(float64(v*float32(t.h)))))
	}
	fx := u*float32(t.w) - 0.5
	fy := v*float32(t.h) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	ax := fx - float32(x0)
	ay := fy - float32(y0)

	t00, t10 := t.texel(x0, y0), t.texel(x0+1, y0)
	t01, t11 := t.texel(x0, y0+1), t.texel(x0+1, y0+1)
	var out [4]float32
	for c := range out {
		top := t00[c] + (t10[c]-t00[c])*ax
		bot := t01[c] + (t11[c]-t01[c])*ax
		out[c] = top + (bot-top)*ay
	}
	return out
}

// texel fetches an addressed texel as normalized RGBA.
func (t *texture) texel(x, y int) [4]float32 {
	var okX, okY bool
	x, okX = address(x, t.w, t.sampler.AddressU)
	y, okY = address(y, t.h, t.sampler.AddressV)
	if !okX || !okY {
		return borderColor(t.sampler.BorderColor)
	}
	o := (y*t.w + x) * 4
	p := t.data[o : o+4 : o+4]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

// address maps a texel coordinate into [0, n). It reports false when the
// border color applies.
func address(i, n int, mode gfx.TextureAddressMode) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch mode {
	case gfx.TextureAddressModeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i, true
	case gfx.TextureAddressModeMirror:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i, true
	case gfx.TextureAddressModeBorder:
		return 0, false
	default:
		return min(max(i, 0), n-1), true
	}
}

func borderColor(c gfx.StaticBorderColor) [4]float32 {
	switch c {
	case gfx.StaticBorderColorOpaqueBlack:
		return [4]float32{0, 0, 0, 1}
	case gfx.StaticBorderColorOpaqueWhite:
		return [4]float32{1, 1, 1, 1}
	default:
		return [4]float32{}
	}
}

// blendPixel combines src with the RGBA8 pixel dst in place.
func blendPixel(dst []byte, src [4]float32, bs *gfx.RenderTargetBlendDesc, factor [4]float32) {
	var d [4]float32
	for c := range d {
		d[c] = float32(dst[c]) / 255
	}
	out := src
	if bs.BlendEnable {
		for c := 0; c < 3; c++ {
			out[c] = blendOp(bs.BlendOp,
				src[c]*blendFactor(bs.SrcBlend, c, src, d, factor),
				d[c]*blendFactor(bs.DestBlend, c, src, d, factor))
		}
		out[3] = blendOp(bs.BlendOpAlpha,
			src[3]*blendFactor(bs.SrcBlendAlpha, 3, src, d, factor),
			d[3]*blendFactor(bs.DestBlendAlpha, 3, src, d, factor))
	}
	mask := bs.RenderTargetWriteMask
	for c := range out {
		if mask&(1<<c) == 0 {
			continue
		}
		dst[c] = unorm8(out[c])
	}
}

func blendFactor(b gfx.Blend, c int, src, dst [4]float32, factor [4]float32) float32 {
	switch b {
	case gfx.BlendZero:
		return 0
	case gfx.BlendOne:
		return 1
	case gfx.BlendSrcColor:
		return src[c]
	case gfx.BlendInvSrcColor:
		return 1 - src[c]
	case gfx.BlendSrcAlpha:
		return src[3]
	case gfx.BlendInvSrcAlpha:
		return 1 - src[3]
	case gfx.BlendDestAlpha:
		return dst[3]
	case gfx.BlendInvDestAlpha:
		return 1 - dst[3]
	case gfx.BlendDestColor:
		return dst[c]
	case gfx.BlendInvDestColor:
		return 1 - dst[c]
	case gfx.BlendBlendFactor:
		return factor[c]
	case gfx.BlendInvBlendFactor:
		return 1 - factor[c]
	default:
		return 1
	}
}

func blendOp(op gfx.BlendOp, s, d float32) float32 {
	switch op {
	case gfx.BlendOpSubtract:
		return s - d
	case gfx.BlendOpRevSubtract:
		return d - s
	case gfx.BlendOpMin:
		return min(s, d)
	case gfx.BlendOpMax:
		return max(s, d)
	default:
		return s + d
	}
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
