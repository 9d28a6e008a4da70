// Package world tracks the physical surfaces reported by a sensing source
// (or its synthetic stand-in) and publishes them to a registry that the
// renderer and physics collaborators read.
package world

import (
	"strings"

	"github.com/Faultbox/midgard-xr/pkg/math"
)

// Pose is a world-space position and orientation.
type Pose struct {
	Position    math.Vec3
	Orientation math.Quat
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: math.QuatIdentity()}
}

// Matrix returns the local-to-world transform of the pose.
func (p Pose) Matrix() math.Mat4 {
	return math.Compose(p.Position, p.Orientation)
}

// Orientation classifies a planar surface.
type Orientation uint8

const (
	OrientationUnknown Orientation = iota
	OrientationHorizontal
	OrientationVertical
)

// String returns the lower-case name of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationHorizontal:
		return "horizontal"
	case OrientationVertical:
		return "vertical"
	default:
		return "unknown"
	}
}

// ParseOrientation parses an orientation name, case-insensitively.
func ParseOrientation(s string) (Orientation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "horizontal":
		return OrientationHorizontal, true
	case "vertical":
		return OrientationVertical, true
	default:
		return OrientationUnknown, false
	}
}

// RawMesh is one sensed mesh as handed over by the sensing platform.
//
// The pointer is the entity's identity: the platform keeps handing the same
// *RawMesh for as long as the mesh stays tracked and mutates its payload in
// place. The core never allocates one.
type RawMesh struct {
	// Vertices holds packed xyz positions in mesh space.
	Vertices []float32
	Indices  []uint32
	// Version is bumped by the platform whenever the geometry changes.
	Version uint64
	// Unversioned marks a payload without change information; such meshes
	// are rebuilt on every pass.
	Unversioned bool
	Pose        Pose
	// Label is the sensor-provided semantic label, if any.
	Label string
}

// PlaneSource is the origin of a TrackedPlane: either a *RawPlane from the
// sensing platform or a *SyntheticPlane loaded from a world description.
type PlaneSource interface {
	planeSource()
}

// RawPlane is one sensed planar surface. Like RawMesh, the pointer is the
// identity.
type RawPlane struct {
	// Polygon is the boundary in plane space; the plane lies in y=0, so only
	// X and Z are used.
	Polygon       []math.Vec3
	Pose          Pose
	Orientation   Orientation
	SemanticLabel string
}

func (*RawPlane) planeSource() {}

// SyntheticPlane describes a plane injected from a static world description.
type SyntheticPlane struct {
	Type     string
	Area     float32
	Position math.Vec3
	Rotation math.Quat
	Polygon  []math.Vec2
}

func (*SyntheticPlane) planeSource() {}

// Orientation returns the orientation named by Type, or the one implied by
// the rotation when Type is a semantic label such as "floor" or "wall".
func (s *SyntheticPlane) Orientation() Orientation {
	if o, ok := ParseOrientation(s.Type); ok {
		return o
	}
	normal := s.Rotation.Rotate(math.Up)
	if normal.Y >= 0.5 || normal.Y <= -0.5 {
		return OrientationHorizontal
	}
	return OrientationVertical
}
