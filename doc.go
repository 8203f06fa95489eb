// Package imrender renders immediate-mode ui draw data on an explicit,
// D3D12-style graphics API.
//
// # Overview
//
// A ui frame produces a ui.DrawData: a list of draw lists, each holding
// vertices, 16-bit indices and a sequence of draw commands. Renderer turns
// that into recorded commands on a gfx.GraphicsCommandList. It owns the
// root signature, the pipeline state, the font atlas texture and one pair
// of CPU-visible vertex and index buffers per frame in flight.
//
// # Quick Start
//
//	ctx := ui.NewContext()
//	dev, _, err := backend.OpenDefault(backend.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	heap, _ := dev.CreateDescriptorHeap(&gfx.DescriptorHeapDesc{
//	    Type:           gfx.DescriptorHeapTypeCBVSRVUAV,
//	    NumDescriptors: 1,
//	    Flags:          gfx.DescriptorHeapFlagShaderVisible,
//	})
//	r, err := imrender.New(ctx, dev, 2, gfx.FormatR8G8B8A8Unorm,
//	    heap.CPUStart(), heap.GPUStart())
//
//	// Every frame:
//	r.NewFrame()
//	ctx.NewFrame()
//	ctx.BackgroundDrawList().AddRectFilled(ui.Vec2{X: 10, Y: 10}, ui.Vec2{X: 200, Y: 80}, ui.ColorWhite)
//	r.RenderDrawData(ctx.Render(), list)
//
// # Frames in Flight
//
// RenderDrawData uses the buffers of frame (n mod framesInFlight) for the
// n-th call. The caller guarantees the GPU has finished with a frame
// before its buffers come around again, typically by waiting on a fence
// per frame.
//
// # Shaders
//
// The pipeline shaders are written in WGSL and compiled with naga. A
// different compiler can be supplied with WithShaderCompiler.
//
// # Backends
//
// Devices come from the backend registry. The soft backend executes
// command lists on the CPU and is always available; the native backend
// drives a wgpu HAL device.
package imrender
