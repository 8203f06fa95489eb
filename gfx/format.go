package gfx

import "fmt"

// Format specifies the layout of texel, vertex attribute or index data.
type Format uint32

// Formats.
const (
	// FormatUnknown is the zero value.
	FormatUnknown Format = iota

	// FormatR8G8B8A8Unorm is 8-bit RGBA, normalized unsigned integer.
	FormatR8G8B8A8Unorm

	// FormatB8G8R8A8Unorm is 8-bit BGRA, normalized unsigned integer.
	FormatB8G8R8A8Unorm

	// FormatR32G32Float is two 32-bit floats.
	FormatR32G32Float

	// FormatR32G32B32A32Float is four 32-bit floats.
	FormatR32G32B32A32Float

	// FormatR16Uint is a 16-bit unsigned integer, used for index buffers.
	FormatR16Uint

	// FormatR32Uint is a 32-bit unsigned integer, used for index buffers.
	FormatR32Uint

	// FormatR8Unorm is a single 8-bit normalized channel.
	FormatR8Unorm
)

// Size returns the size in bytes of one element of the format.
// Returns 0 for FormatUnknown.
func (f Format) Size() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR32Uint:
		return 4
	case FormatR32G32Float:
		return 8
	case FormatR32G32B32A32Float:
		return 16
	case FormatR16Uint:
		return 2
	case FormatR8Unorm:
		return 1
	default:
		return 0
	}
}

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatUnknown:
		return "Unknown"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatR32G32Float:
		return "R32G32_FLOAT"
	case FormatR32G32B32A32Float:
		return "R32G32B32A32_FLOAT"
	case FormatR16Uint:
		return "R16_UINT"
	case FormatR32Uint:
		return "R32_UINT"
	case FormatR8Unorm:
		return "R8_UNORM"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// TextureDataPitchAlignment is the required alignment, in bytes, of the row
// pitch of texture data placed in a buffer for copies.
const TextureDataPitchAlignment = 256

// AlignUp rounds v up to the next multiple of alignment.
// The alignment must be a power of two.
func AlignUp(v, alignment uint32) uint32 {
	return (v + alignment - 1) &^ (alignment - 1)
}
