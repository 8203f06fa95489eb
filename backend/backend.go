package backend

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/imrender/gfx"
)

// Backend name constants.
const (
	// BackendSoft is the name of the CPU backend.
	BackendSoft = "soft"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendNative = "native"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered
	// or no registered backend could open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoProvider is returned by hardware backends opened without a
	// device provider.
	ErrNoProvider = errors.New("backend: no device provider")
)

// Config carries what a backend needs to open a device.
type Config struct {
	// Provider supplies the GPU device and queue owned by the host
	// application. Hardware backends require it; the soft backend
	// ignores it.
	Provider gpucontext.DeviceProvider
}

// DeviceFactory opens a gfx.Device for cfg.
type DeviceFactory func(cfg Config) (gfx.Device, error)
