// Package gfx defines the explicit graphics API used by imrender.
//
// The API follows the shape of Direct3D 12: committed resources placed in
// typed heaps, root signatures describing shader-visible bindings, pipeline
// state objects, command lists recorded on the CPU and executed on command
// queues, fences for CPU/GPU synchronization, and descriptor heaps addressed
// through CPU and GPU descriptor handles.
//
// # Architecture
//
// The renderer is written once against the interfaces in this package, while
// thin backends translate them to a concrete device:
//
//	               +-----------------+
//	               |    imrender     |
//	               | (Renderer)      |
//	               +--------+--------+
//	                        |
//	                  gfx interfaces
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  backend/soft   |          | backend/native  |
//	|  (CPU device)   |          |  (hal.Device)   |
//	+-----------------+          +--------+--------+
//	                                      |
//	                             +--------v--------+
//	                             |   gogpu/wgpu    |
//	                             +-----------------+
//
// # Handles
//
// Descriptor handles ([CPUDescriptorHandle], [GPUDescriptorHandle]) are
// opaque 64-bit values minted by a [DescriptorHeap]. Callers may offset them
// by multiples of the heap increment but must not otherwise interpret them.
//
// # Lifetime
//
// Every object returned by a [Device] owns backend memory and must be
// released with Release once the GPU no longer uses it. Release is
// idempotent.
package gfx
