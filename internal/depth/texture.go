package depth

import (
	"encoding/binary"
)

// NativeRef names a GPU texture owned by the platform (a GL texture name).
type NativeRef uint32

// Texture is the renderable depth image of one view. Exactly one of
// Float32 and Bytes backs a CPU texture; native textures have neither.
type Texture struct {
	ViewID   int
	Width    int
	Height   int
	Encoding Encoding

	Float32 []float32
	Bytes   []byte

	RawValueToMeters float32

	Native   NativeRef
	isNative bool

	needsUpdate bool
	generation  uint64
	version     uint64
}

// NeedsUpdate reports whether the contents changed since the last upload.
func (t *Texture) NeedsUpdate() bool {
	return t.needsUpdate
}

// MarkUploaded clears the upload flag.
func (t *Texture) MarkUploaded() {
	t.needsUpdate = false
}

// Generation increases every time the backing storage is reallocated.
// Uploaders use it to decide between a full allocation and a sub-upload.
func (t *Texture) Generation() uint64 {
	return t.generation
}

// Version increases on every content update.
func (t *Texture) Version() uint64 {
	return t.version
}

// IsNative reports whether the texture wraps a platform GPU texture.
func (t *Texture) IsNative() bool {
	return t.isNative
}

// DepthAt decodes the depth at pixel (x, y) in meters.
func (t *Texture) DepthAt(x, y int) (float32, bool) {
	if t.isNative || x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return 0, false
	}
	i := y*t.Width + x
	switch t.Encoding {
	case EncodingFloat32:
		return t.Float32[i], true
	default:
		raw := binary.LittleEndian.Uint16(t.Bytes[i*2:])
		return float32(raw) * t.RawValueToMeters, true
	}
}
