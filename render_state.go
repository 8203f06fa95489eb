package imrender

import (
	"math"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

// orthoProjection maps the display rectangle to clip space, with the
// display origin at the top left. The rows are laid out consecutively and
// read as columns by the vertex shader.
func orthoProjection(pos, size ui.Vec2) [16]float32 {
	l := pos.X
	r := pos.X + size.X
	t := pos.Y
	b := pos.Y + size.Y
	return [16]float32{
		2 / (r - l), 0, 0, 0,
		0, 2 / (t - b), 0, 0,
		0, 0, 0.5, 0,
		(r + l) / (l - r), (t + b) / (b - t), 0.5, 1,
	}
}

// setupRenderState binds everything the draw list pipeline needs except
// the texture and scissor, which change per command.
func setupRenderState(dd *ui.DrawData, list gfx.GraphicsCommandList, objs *deviceObjects, b *renderBuffers) {
	list.RSSetViewports([]gfx.Viewport{{
		Width:    dd.DisplaySize.X,
		Height:   dd.DisplaySize.Y,
		MaxDepth: 1,
	}})

	vbv := b.vertexView()
	list.IASetVertexBuffers(0, []gfx.VertexBufferView{vbv})
	ibv := b.indexView()
	list.IASetIndexBuffer(&ibv)
	list.IASetPrimitiveTopology(gfx.PrimitiveTopologyTriangleList)
	list.SetGraphicsRootSignature(objs.rootSignature)
	list.SetPipelineState(objs.pipelineState)

	mvp := orthoProjection(dd.DisplayPos, dd.DisplaySize)
	var constants [projectionConstants]uint32
	for i, v := range mvp {
		constants[i] = math.Float32bits(v)
	}
	list.SetGraphicsRoot32BitConstants(rootParamProjection, constants[:], 0)
	list.OMSetBlendFactor([4]float32{})
}
