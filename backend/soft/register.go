package soft

import (
	"github.com/gogpu/imrender/backend"
	"github.com/gogpu/imrender/gfx"
)

// init registers the soft backend on package import.
func init() {
	backend.Register(backend.BackendSoft, func(backend.Config) (gfx.Device, error) {
		return New(), nil
	})
}
