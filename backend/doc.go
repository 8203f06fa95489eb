// Package backend is the registry of gfx device implementations.
//
// Backends register a factory from an init() function and are selected at
// runtime by name, or by priority with OpenDefault:
//
//	import _ "github.com/gogpu/imrender/backend/soft"
//
//	dev, name, err := backend.OpenDefault(backend.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	log.Printf("using %s backend", name)
//
// Hardware backends render with a device the host application already
// owns, handed over through a gpucontext.DeviceProvider:
//
//	import _ "github.com/gogpu/imrender/backend/native"
//
//	dev, err := backend.Open(backend.BackendNative, backend.Config{Provider: app})
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL device (requires a Provider)
//   - "soft": CPU device with a reference rasterizer (always available)
package backend
