package imrender

import (
	_ "embed"

	"github.com/gogpu/naga"
)

// Shader entry points.
const (
	VertexEntryPoint = "vs_main"
	PixelEntryPoint  = "ps_main"
)

//go:embed shaders/vertex.wgsl
var vertexShaderSource string

//go:embed shaders/pixel.wgsl
var pixelShaderSource string

// ShaderStage identifies a programmable pipeline stage.
type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStagePixel
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStagePixel:
		return "pixel"
	default:
		return "unknown"
	}
}

// ShaderCompiler turns WGSL source into bytecode for a device.
type ShaderCompiler interface {
	Compile(stage ShaderStage, source, entryPoint string) ([]byte, error)
}

// NagaCompiler compiles WGSL to SPIR-V with naga.
type NagaCompiler struct{}

// Compile implements ShaderCompiler. The module keeps every entry point.
func (NagaCompiler) Compile(_ ShaderStage, source, _ string) ([]byte, error) {
	return naga.Compile(source)
}

// compileShaders compiles both stages of the draw list pipeline.
func compileShaders(c ShaderCompiler) (vs, ps []byte, err error) {
	vs, err = compileStage(c, ShaderStageVertex, vertexShaderSource, VertexEntryPoint)
	if err != nil {
		return nil, nil, err
	}
	ps, err = compileStage(c, ShaderStagePixel, pixelShaderSource, PixelEntryPoint)
	if err != nil {
		return nil, nil, err
	}
	return vs, ps, nil
}

func compileStage(c ShaderCompiler, stage ShaderStage, source, entry string) ([]byte, error) {
	code, err := c.Compile(stage, source, entry)
	if err != nil {
		return nil, &ShaderCompileError{Stage: stage, Diagnostics: err.Error(), Err: err}
	}
	if len(code) == 0 {
		return nil, &ShaderCompileError{Stage: stage, Diagnostics: "empty bytecode"}
	}
	return code, nil
}
