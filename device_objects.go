package imrender

import (
	"github.com/gogpu/imrender/gfx"
)

// deviceObjects is everything the renderer creates on the device.
type deviceObjects struct {
	rootSignature gfx.RootSignature
	pipelineState gfx.PipelineState
	fontTexture   gfx.Resource
	buffers       []renderBuffers
}

// createDeviceObjects builds the pipeline, uploads the font atlas and
// prepares empty buffers for every frame in flight. A failure releases
// whatever was created before it.
func (r *Renderer) createDeviceObjects() (*deviceObjects, error) {
	rs, pso, err := createPipeline(r.device, r.opts.compiler, r.rtvFormat)
	if err != nil {
		return nil, err
	}
	objs := &deviceObjects{rootSignature: rs, pipelineState: pso}

	tex, err := uploadFontTexture(r.device, r.ctx.Fonts, r.fontCPU, r.fontGPU, r.log())
	if err != nil {
		objs.release()
		return nil, err
	}
	objs.fontTexture = tex

	objs.buffers = make([]renderBuffers, r.framesInFlight)
	for i := range objs.buffers {
		objs.buffers[i].index = i
	}
	return objs, nil
}

func (o *deviceObjects) release() {
	for i := range o.buffers {
		o.buffers[i].release()
	}
	o.buffers = nil
	if o.fontTexture != nil {
		o.fontTexture.Release()
		o.fontTexture = nil
	}
	if o.pipelineState != nil {
		o.pipelineState.Release()
		o.pipelineState = nil
	}
	if o.rootSignature != nil {
		o.rootSignature.Release()
		o.rootSignature = nil
	}
}
