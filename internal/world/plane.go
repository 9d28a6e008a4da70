package world

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-xr/internal/engine/geometry"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// TrackedPlane is the render representation of one planar surface, backed by
// exactly one PlaneSource.
type TrackedPlane struct {
	ID uuid.UUID

	source      PlaneSource
	label       string
	orientation Orientation
	pose        Pose
	geometry    *geometry.Geometry
}

// NewTrackedPlane triangulates the source boundary in the horizontal plane.
// The geometry is built once; planes do not change shape afterwards.
func NewTrackedPlane(src PlaneSource) (*TrackedPlane, error) {
	p := &TrackedPlane{ID: uuid.New(), source: src}

	var polygon []math.Vec2
	switch s := src.(type) {
	case *RawPlane:
		if s == nil {
			return nil, ErrNoPlaneSource
		}
		polygon = make([]math.Vec2, len(s.Polygon))
		for i, pt := range s.Polygon {
			polygon[i] = pt.XZ()
		}
		p.label = s.SemanticLabel
		p.orientation = s.Orientation
		p.pose = s.Pose
	case *SyntheticPlane:
		if s == nil {
			return nil, ErrNoPlaneSource
		}
		polygon = s.Polygon
		p.label = s.Type
		p.orientation = s.Orientation()
		p.pose = Pose{Position: s.Position, Orientation: s.Rotation}
	default:
		return nil, ErrNoPlaneSource
	}

	g, err := geometry.FromPolygon(polygon)
	if err != nil {
		return nil, fmt.Errorf("building plane geometry: %w", err)
	}
	p.geometry = g
	return p, nil
}

// Raw returns the sensor plane backing p, if any.
func (p *TrackedPlane) Raw() (*RawPlane, bool) {
	r, ok := p.source.(*RawPlane)
	return r, ok
}

// Synthetic returns the synthetic descriptor backing p, if any.
func (p *TrackedPlane) Synthetic() (*SyntheticPlane, bool) {
	s, ok := p.source.(*SyntheticPlane)
	return s, ok
}

// Label returns the semantic label.
func (p *TrackedPlane) Label() string {
	return p.label
}

// SetLabel overrides the semantic label, e.g. after user annotation.
func (p *TrackedPlane) SetLabel(label string) {
	p.label = label
}

// Orientation returns the orientation class.
func (p *TrackedPlane) Orientation() Orientation {
	return p.orientation
}

// Pose returns the world pose.
func (p *TrackedPlane) Pose() Pose {
	return p.pose
}

// Geometry returns the triangulated surface in plane space.
func (p *TrackedPlane) Geometry() *geometry.Geometry {
	return p.geometry
}

// Dispose releases the geometry.
func (p *TrackedPlane) Dispose() {
	p.geometry.Dispose()
}
