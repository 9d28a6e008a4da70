package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/logger"
)

type uploaded struct {
	name       uint32
	generation uint64
}

// DepthUploader mirrors CPU depth textures into GL textures. A texture is
// (re)specified when its backing buffer was reallocated and only refilled
// otherwise.
type DepthUploader struct {
	textures map[int]*uploaded
	log      *zap.Logger
}

// NewDepthUploader creates an uploader with no GL textures yet.
func NewDepthUploader() *DepthUploader {
	return &DepthUploader{
		textures: make(map[int]*uploaded),
		log:      logger.Named("gpu"),
	}
}

// Upload pushes tex to the GPU if its contents changed and returns the GL
// texture name to sample from. Native textures are already on the GPU.
func (u *DepthUploader) Upload(tex *depth.Texture) uint32 {
	if tex.IsNative() {
		return uint32(tex.Native)
	}

	up, ok := u.textures[tex.ViewID]
	if !ok {
		up = &uploaded{}
		gl.GenTextures(1, &up.name)
		u.textures[tex.ViewID] = up
	}
	if !tex.NeedsUpdate() {
		return up.name
	}

	internal, format, typ, pixels := layout(tex)
	gl.BindTexture(gl.TEXTURE_2D, up.name)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	if !ok || up.generation != tex.Generation() {
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(tex.Width), int32(tex.Height), 0, format, typ, pixels)
		setSampling()
		up.generation = tex.Generation()
		u.log.Debug("depth texture allocated",
			zap.Int("view", tex.ViewID),
			zap.Int("width", tex.Width),
			zap.Int("height", tex.Height),
			zap.Stringer("encoding", tex.Encoding))
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(tex.Width), int32(tex.Height), format, typ, pixels)
	}

	tex.MarkUploaded()
	return up.name
}

// Release deletes every GL texture created by the uploader.
func (u *DepthUploader) Release() {
	for view, up := range u.textures {
		gl.DeleteTextures(1, &up.name)
		delete(u.textures, view)
	}
}

func layout(tex *depth.Texture) (internal int32, format, typ uint32, pixels unsafe.Pointer) {
	if tex.Encoding == depth.EncodingLuminanceAlpha {
		return gl.RG8, gl.RG, gl.UNSIGNED_BYTE, gl.Ptr(tex.Bytes)
	}
	return gl.R32F, gl.RED, gl.FLOAT, gl.Ptr(tex.Float32)
}

func setSampling() {
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
}

// NativeBinder binds platform-owned GL textures for sampling. It satisfies
// depth.Renderer.
type NativeBinder struct{}

var _ depth.Renderer = NativeBinder{}

// BindNativeTexture makes ref the texture behind tex.
func (NativeBinder) BindNativeTexture(tex *depth.Texture, ref depth.NativeRef) {
	gl.BindTexture(gl.TEXTURE_2D, uint32(ref))
	setSampling()
}

// PlatformTextures plays the platform on the native depth path: each frame
// is uploaded into a GL texture the uploader does not own, and the cache is
// handed its name.
type PlatformTextures struct {
	NativeBinder
	names map[int]uint32
}

// NewPlatformTextures creates an empty set of platform textures.
func NewPlatformTextures() *PlatformTextures {
	return &PlatformTextures{names: make(map[int]uint32)}
}

// Texture uploads frame into the texture of view and returns its name.
func (p *PlatformTextures) Texture(view int, frame *depth.Frame) (depth.NativeRef, error) {
	name, ok := p.names[view]
	if !ok {
		gl.GenTextures(1, &name)
		p.names[view] = name
	}
	if len(frame.Data) == 0 {
		return 0, fmt.Errorf("empty depth frame for view %d", view)
	}

	gl.BindTexture(gl.TEXTURE_2D, name)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	internal, format, typ := gl.R32F, uint32(gl.RED), uint32(gl.FLOAT)
	if len(frame.Data) == frame.Width*frame.Height*depth.EncodingLuminanceAlpha.BytesPerPixel() {
		internal, format, typ = gl.RG8, gl.RG, gl.UNSIGNED_BYTE
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, int32(internal), int32(frame.Width), int32(frame.Height), 0, format, typ, gl.Ptr(frame.Data))
	return depth.NativeRef(name), nil
}

// Release deletes the platform textures.
func (p *PlatformTextures) Release() {
	for view, name := range p.names {
		gl.DeleteTextures(1, &name)
		delete(p.names, view)
	}
}
