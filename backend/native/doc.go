// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements gfx.Device on a wgpu HAL device.
//
// The explicit command model is mapped onto HAL objects:
//
//   - Committed buffers keep a CPU shadow. Map returns the shadow and Unmap
//     writes it to the GPU buffer through the queue.
//   - Root signatures become one bind group layout per parameter: root
//     constants turn into a uniform buffer, descriptor tables into texture
//     bindings followed by the static samplers.
//   - Pipeline states become render pipelines built from SPIR-V bytecode.
//   - Command lists record operations that ExecuteCommandLists replays into
//     a HAL command encoder and a single render pass per list.
//   - Fences map to HAL fences signalled by queue submissions.
//
// Draws need a color target, attached with CommandList.SetRenderTarget.
//
// The backend registers itself as "native" and requires a
// gpucontext.DeviceProvider that exposes its HAL device and queue.
package native
