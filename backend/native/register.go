// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"github.com/gogpu/imrender/backend"
	"github.com/gogpu/imrender/gfx"
)

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func(cfg backend.Config) (gfx.Device, error) {
		if cfg.Provider == nil {
			return nil, backend.ErrNoProvider
		}
		return NewFromProvider(cfg.Provider)
	})
}
