// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// spirvWords converts little-endian SPIR-V bytes into words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("native: %d bytes is not a SPIR-V module", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("native: bad SPIR-V magic %#x", words[0])
	}
	return words, nil
}

// createShaderModule creates a HAL shader module from SPIR-V bytes.
func createShaderModule(device hal.Device, label string, code []byte) (hal.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
}

// pipelineObjects are the HAL objects behind one pipeline state.
type pipelineObjects struct {
	device   hal.Device
	vs, ps   hal.ShaderModule
	pipeline hal.RenderPipeline
}

// destroy releases the objects in reverse creation order.
func (o *pipelineObjects) destroy() {
	if o.device == nil {
		return
	}
	if o.pipeline != nil {
		o.device.DestroyRenderPipeline(o.pipeline)
		o.pipeline = nil
	}
	if o.ps != nil {
		o.device.DestroyShaderModule(o.ps)
		o.ps = nil
	}
	if o.vs != nil {
		o.device.DestroyShaderModule(o.vs)
		o.vs = nil
	}
}
