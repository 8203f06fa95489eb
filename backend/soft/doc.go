// Package soft is a CPU implementation of the gfx explicit graphics API.
//
// Resources live in Go memory, command lists record closures that run
// synchronously when a queue executes them, and fences complete as soon as
// they are signaled. The device is used for tests and for headless
// rendering: command lists with a render target attached rasterize their
// draws into an *image.RGBA.
//
// # Shading
//
// Shader bytecode is validated for presence but not executed. Draws run a
// fixed textured pipeline that matches what draw-list renderers use:
//
//   - the first 32-bit constants parameter of the root signature holds a
//     column-major 4x4 matrix applied to the POSITION attribute
//   - the first descriptor table selects a shader resource view sampled
//     with static sampler 0 at TEXCOORD
//   - the sample is multiplied by the COLOR attribute
//   - the result is blended with the render target per the pipeline's
//     blend state for render target 0
//
// # Inspection
//
// Command lists keep a trace of the calls recorded into them and a
// snapshot of the bound state for every draw, see [CommandList.Calls] and
// [CommandList.Draws]. [Device.Stats] counts resource creation, maps and
// executed draws.
//
// # Registration
//
// The package registers itself as the "soft" backend on import:
//
//	import _ "github.com/gogpu/imrender/backend/soft"
package soft
