package simulator

import (
	"encoding/binary"
	gomath "math"
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// Camera is a pinhole view into the synthetic scene. The camera looks down
// its local -Z axis with +Y up.
type Camera struct {
	Pose   world.Pose
	FovY   float32 // radians
	Width  int
	Height int
}

// DepthSource renders depth frames of a set of planes by ray casting.
type DepthSource struct {
	Encoding         depth.Encoding
	RawValueToMeters float32
	// MaxDepth clips hits further away; zero disables the clip.
	MaxDepth float32
}

// Render casts one ray per pixel and returns a frame in the configured
// encoding. Pixels that hit nothing read as zero depth. Depth is the
// distance along the camera's view axis, not along the ray.
func (s *DepthSource) Render(cam Camera, planes []*world.TrackedPlane, now time.Time) *depth.Frame {
	bpp := s.Encoding.BytesPerPixel()
	frame := &depth.Frame{
		Width:            cam.Width,
		Height:           cam.Height,
		Data:             make([]byte, cam.Width*cam.Height*bpp),
		RawValueToMeters: s.RawValueToMeters,
		Timestamp:        now,
	}

	tanHalf := math32.Tan(cam.FovY / 2)
	aspect := float32(cam.Width) / float32(max(cam.Height, 1))
	origin := cam.Pose.Position

	for y := 0; y < cam.Height; y++ {
		for x := 0; x < cam.Width; x++ {
			local := math.Vec3{
				X: (2*(float32(x)+0.5)/float32(cam.Width) - 1) * tanHalf * aspect,
				Y: (1 - 2*(float32(y)+0.5)/float32(cam.Height)) * tanHalf,
				Z: -1,
			}.Normalize()
			dir := cam.Pose.Orientation.Rotate(local)

			t, ok := castRay(origin, dir, planes)
			d := float32(0)
			if ok {
				d = t * -local.Z
				if s.MaxDepth > 0 && d > s.MaxDepth {
					d = 0
				}
			}
			s.put(frame.Data[(y*cam.Width+x)*bpp:], d)
		}
	}
	return frame
}

func (s *DepthSource) put(dst []byte, meters float32) {
	switch s.Encoding {
	case depth.EncodingLuminanceAlpha:
		raw := float32(0)
		if s.RawValueToMeters > 0 {
			raw = math32.Round(meters / s.RawValueToMeters)
		}
		if raw > gomath.MaxUint16 {
			raw = gomath.MaxUint16
		}
		binary.LittleEndian.PutUint16(dst, uint16(raw))
	default:
		binary.LittleEndian.PutUint32(dst, gomath.Float32bits(meters))
	}
}

// castRay returns the distance to the nearest plane hit along dir.
func castRay(origin, dir math.Vec3, planes []*world.TrackedPlane) (float32, bool) {
	best := float32(math32.Inf(1))
	hit := false
	for _, p := range planes {
		g := p.Geometry()
		if g == nil || g.Disposed() {
			continue
		}
		pose := p.Pose()
		normal := pose.Orientation.Rotate(math.Up)
		denom := dir.Dot(normal)
		if math32.Abs(denom) < 1e-6 {
			continue
		}
		t := pose.Position.Sub(origin).Dot(normal) / denom
		if t <= 0 || t >= best {
			continue
		}
		local := pose.Orientation.Conjugate().Rotate(origin.Add(dir.Scale(t)).Sub(pose.Position))
		if g.ContainsXZ(local.X, local.Z) {
			best = t
			hit = true
		}
	}
	return best, hit
}
