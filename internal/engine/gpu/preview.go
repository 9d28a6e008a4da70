package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/midgard-xr/internal/depth"
)

const previewVertex = `#version 410 core
const vec2 corners[4] = vec2[](vec2(-1, -1), vec2(1, -1), vec2(-1, 1), vec2(1, 1));
uniform vec4 uRect;
out vec2 vUV;
void main() {
	vec2 c = corners[gl_VertexID];
	vUV = vec2(c.x * 0.5 + 0.5, 0.5 - c.y * 0.5);
	gl_Position = vec4(mix(uRect.xy, uRect.zw, c * 0.5 + 0.5), 0.0, 1.0);
}
`

const previewFragment = `#version 410 core
in vec2 vUV;
uniform sampler2D uDepth;
uniform bool uPacked;
uniform float uRawToMeters;
uniform float uMaxDepth;
out vec4 fragColor;
void main() {
	vec4 s = texture(uDepth, vUV);
	float meters = uPacked ? (s.r * 255.0 + s.g * 65280.0) * uRawToMeters : s.r;
	if (meters <= 0.0) {
		fragColor = vec4(0.05, 0.05, 0.08, 1.0);
		return;
	}
	float t = clamp(meters / uMaxDepth, 0.0, 1.0);
	fragColor = vec4(mix(vec3(1.0, 0.85, 0.3), vec3(0.1, 0.2, 0.6), t), 1.0);
}
`

// DepthPreview draws depth textures as false-colour tiles, near warm and
// far cool.
type DepthPreview struct {
	program uint32
	vao     uint32

	uRect, uDepth, uPacked, uRawToMeters, uMaxDepth int32

	// MaxDepth is the distance mapped to the far colour.
	MaxDepth float32
	// RawValueToMeters scales packed textures that carry no scale of
	// their own, as native ones do not.
	RawValueToMeters float32
}

// NewDepthPreview compiles the preview program. It must run after Init.
func NewDepthPreview() (*DepthPreview, error) {
	program, err := compileProgram(previewVertex, previewFragment)
	if err != nil {
		return nil, fmt.Errorf("depth preview: %w", err)
	}

	p := &DepthPreview{
		program:      program,
		uRect:        uniform(program, "uRect"),
		uDepth:       uniform(program, "uDepth"),
		uPacked:      uniform(program, "uPacked"),
		uRawToMeters: uniform(program, "uRawToMeters"),
		uMaxDepth:    uniform(program, "uMaxDepth"),
		MaxDepth:     5,
	}
	// core profile needs a bound VAO even with no attributes
	gl.GenVertexArrays(1, &p.vao)
	return p, nil
}

// Draw renders tex, bound as GL texture name, into tile i of n side by side
// across the bottom of the viewport.
func (p *DepthPreview) Draw(tex *depth.Texture, name uint32, i, n int) {
	if n < 1 {
		n = 1
	}
	w := 2 / float32(n)
	x0 := -1 + w*float32(i)

	gl.Disable(gl.DEPTH_TEST)
	defer gl.Enable(gl.DEPTH_TEST)

	gl.UseProgram(p.program)
	gl.Uniform4f(p.uRect, x0, -1, x0+w, -1+w*0.75)
	gl.Uniform1i(p.uDepth, 0)
	packed := int32(0)
	if tex.Encoding == depth.EncodingLuminanceAlpha {
		packed = 1
	}
	gl.Uniform1i(p.uPacked, packed)
	scale := tex.RawValueToMeters
	if scale == 0 {
		scale = p.RawValueToMeters
	}
	gl.Uniform1f(p.uRawToMeters, scale)
	gl.Uniform1f(p.uMaxDepth, p.MaxDepth)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, name)
	gl.BindVertexArray(p.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
}

// Release deletes the program and its vertex array.
func (p *DepthPreview) Release() {
	gl.DeleteVertexArrays(1, &p.vao)
	gl.DeleteProgram(p.program)
}
