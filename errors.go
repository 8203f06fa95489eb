package imrender

import (
	"errors"
	"fmt"
)

var (
	// ErrNilContext is returned by New when no ui context is given.
	ErrNilContext = errors.New("imrender: nil ui context")

	// ErrNilDevice is returned by New when no device is given.
	ErrNilDevice = errors.New("imrender: nil device")

	// ErrInvalidFramesInFlight is returned by New for a frame count below one.
	ErrInvalidFramesInFlight = errors.New("imrender: frames in flight must be at least 1")

	// ErrDeviceObjectsNotBuilt is returned by RenderDrawData when neither
	// NewFrame nor CreateDeviceObjects has succeeded since the last
	// invalidation.
	ErrDeviceObjectsNotBuilt = errors.New("imrender: device objects not built")

	// ErrShaderCompile is matched by every *ShaderCompileError.
	ErrShaderCompile = errors.New("imrender: shader compilation failed")

	// ErrFontUpload wraps failures while uploading the font atlas.
	ErrFontUpload = errors.New("imrender: font texture upload failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("imrender: renderer closed")
)

// ShaderCompileError reports a shader stage that failed to compile.
type ShaderCompileError struct {
	Stage ShaderStage

	// Diagnostics is the compiler output.
	Diagnostics string

	Err error
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("imrender: compile %s shader: %s", e.Stage, e.Diagnostics)
}

// Unwrap returns ErrShaderCompile and the compiler error.
func (e *ShaderCompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrShaderCompile}
	}
	return []error{ErrShaderCompile, e.Err}
}
