// Package depth keeps one renderable depth texture per view, fed either by
// raw CPU depth frames or by GPU textures supplied by the platform.
package depth

import (
	"fmt"
	"strings"
	"time"
)

// Encoding is the byte layout of a raw depth frame.
type Encoding uint8

const (
	// EncodingFloat32 is one little-endian float32 per pixel, in meters.
	EncodingFloat32 Encoding = iota
	// EncodingLuminanceAlpha is two bytes per pixel holding a little-endian
	// uint16 that is scaled by Frame.RawValueToMeters when decoded.
	EncodingLuminanceAlpha
)

// String returns the config name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingFloat32:
		return "float32"
	case EncodingLuminanceAlpha:
		return "luminance_alpha"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// BytesPerPixel returns the payload size of one pixel.
func (e Encoding) BytesPerPixel() int {
	if e == EncodingFloat32 {
		return 4
	}
	return 2
}

// ParseEncoding parses a config name.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "float32", "float":
		return EncodingFloat32, nil
	case "luminance_alpha", "packed", "uint16":
		return EncodingLuminanceAlpha, nil
	default:
		return 0, fmt.Errorf("unknown depth encoding %q", s)
	}
}

// UpdatePath selects how a cache is fed. A deployment uses exactly one.
type UpdatePath uint8

const (
	// PathCPU copies raw frames into cache-owned buffers.
	PathCPU UpdatePath = iota
	// PathNative binds GPU textures owned by the platform.
	PathNative
)

// String returns the config name of the path.
func (p UpdatePath) String() string {
	if p == PathNative {
		return "native"
	}
	return "cpu"
}

// ParseUpdatePath parses a config name.
func ParseUpdatePath(s string) (UpdatePath, error) {
	switch strings.ToLower(s) {
	case "cpu", "":
		return PathCPU, nil
	case "native", "gpu":
		return PathNative, nil
	default:
		return 0, fmt.Errorf("unknown depth update path %q", s)
	}
}

// Frame is one raw depth image for a single view.
type Frame struct {
	Width  int
	Height int
	Data   []byte
	// RawValueToMeters scales packed samples; unused for float32 frames.
	RawValueToMeters float32
	Timestamp        time.Time
}

// expectedLen returns the payload length implied by the frame dimensions.
func (f *Frame) expectedLen(enc Encoding) int {
	return f.Width * f.Height * enc.BytesPerPixel()
}
