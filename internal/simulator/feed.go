package simulator

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// Rig moves a stereo camera pair in a slow circle around Center, looking
// slightly down, one revolution every Period frames.
type Rig struct {
	Center        math.Vec3
	Radius        float32
	EyeHeight     float32
	Pitch         float32 // radians, negative looks down
	EyeSeparation float32 // view offset along the rig's right axis
	Period        int
	FovY          float32
	Width         int
	Height        int
}

// DefaultRig is a standing viewer orbiting a room.
func DefaultRig(width, height int) Rig {
	return Rig{
		Radius:        1.5,
		EyeHeight:     1.6,
		Pitch:         -0.35,
		EyeSeparation: 0.064,
		Period:        600,
		FovY:          1.2,
		Width:         width,
		Height:        height,
	}
}

// Camera returns the pose of view at frame.
func (r Rig) Camera(frame, view int) Camera {
	theta := float32(0)
	if r.Period > 0 {
		theta = 2 * math32.Pi * float32(frame%r.Period) / float32(r.Period)
	}
	yaw := math.QuatFromAxisAngle(math.Up, theta)
	orientation := yaw.Mul(math.QuatFromAxisAngle(math.Vec3{X: 1}, r.Pitch))

	pos := r.Center.Add(math.Vec3{
		X: r.Radius * math32.Sin(theta),
		Y: r.EyeHeight,
		Z: r.Radius * math32.Cos(theta),
	})
	if view > 0 {
		right := yaw.Rotate(math.Vec3{X: 1})
		pos = pos.Add(right.Scale(r.EyeSeparation * float32(view)))
	}

	return Camera{
		Pose:   world.Pose{Position: pos, Orientation: orientation},
		FovY:   r.FovY,
		Width:  r.Width,
		Height: r.Height,
	}
}

// Feed stands in for a sensing device over the planes of a registry.
type Feed struct {
	registry *world.Registry
	meshes   *MeshSource
	depth    *DepthSource
	rig      Rig
	clock    func() time.Time
}

// NewFeed creates a feed. A nil meshes or depth source disables that
// capability.
func NewFeed(registry *world.Registry, meshes *MeshSource, depth *DepthSource, rig Rig) *Feed {
	return &Feed{
		registry: registry,
		meshes:   meshes,
		depth:    depth,
		rig:      rig,
		clock:    time.Now,
	}
}

// MeshSnapshot returns the meshes sensed at frame, or nil when meshing is
// off. A nil snapshot leaves the tracker untouched.
func (f *Feed) MeshSnapshot(frame int) []*world.RawMesh {
	if f.meshes == nil {
		return nil
	}
	return f.meshes.Snapshot(frame, f.syntheticPlanes())
}

// PlaneSnapshot returns nil: synthetic planes reach the registry through
// the Loader, not through plane detection.
func (f *Feed) PlaneSnapshot(int) []*world.RawPlane {
	return nil
}

// DepthFrame renders view at frame.
func (f *Feed) DepthFrame(frame, view int) *depth.Frame {
	if f.depth == nil {
		return nil
	}
	return f.depth.Render(f.rig.Camera(frame, view), f.syntheticPlanes(), f.clock())
}

func (f *Feed) syntheticPlanes() []*world.TrackedPlane {
	all := f.registry.Planes()
	out := all[:0]
	for _, p := range all {
		if _, ok := p.Synthetic(); ok {
			out = append(out, p)
		}
	}
	return out
}
