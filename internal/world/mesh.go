package world

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-xr/internal/engine/geometry"
)

// TrackedMesh is the render and physics representation of one sensed mesh.
type TrackedMesh struct {
	ID    uuid.UUID
	Label string
	Pose  Pose

	geometry *geometry.Geometry
	version  uint64

	// Physics state; world is nil until AttachPhysics succeeds.
	world       Physics
	body        BodyHandle
	collider    ColliderHandle
	hasCollider bool
}

// NewTrackedMesh builds render geometry from the raw payload.
func NewTrackedMesh(raw *RawMesh) *TrackedMesh {
	return &TrackedMesh{
		ID:       uuid.New(),
		Label:    raw.Label,
		Pose:     raw.Pose,
		geometry: geometry.FromBuffers(raw.Vertices, raw.Indices),
		version:  raw.Version,
	}
}

// Geometry returns the current render geometry. The returned value is
// disposed by the next rebuild and must not be kept across frames.
func (m *TrackedMesh) Geometry() *geometry.Geometry {
	return m.geometry
}

// Version returns the change version of the last applied payload.
func (m *TrackedMesh) Version() uint64 {
	return m.version
}

// PhysicsAttached reports whether the mesh currently owns a collider.
func (m *TrackedMesh) PhysicsAttached() bool {
	return m.hasCollider
}

// Body returns the rigid body created by AttachPhysics.
func (m *TrackedMesh) Body() (BodyHandle, bool) {
	return m.body, m.world != nil
}

// Collider returns the current collider.
func (m *TrackedMesh) Collider() (ColliderHandle, bool) {
	return m.collider, m.hasCollider
}

// UpdateVertices rebuilds the geometry when the payload version differs from
// the stored one, or when the payload carries no version. It reports whether
// a rebuild happened. A non-nil error means the geometry was rebuilt but the
// collider could not be recreated; the mesh is then left without one.
func (m *TrackedMesh) UpdateVertices(raw *RawMesh) (bool, error) {
	if !raw.Unversioned && raw.Version == m.version {
		return false, nil
	}

	m.version = raw.Version
	next := geometry.FromBuffers(raw.Vertices, raw.Indices)
	m.geometry.Dispose()
	m.geometry = next

	if !m.hasCollider {
		return true, nil
	}

	m.world.RemoveCollider(m.collider)
	m.hasCollider = false
	if next.Degenerate() {
		return true, fmt.Errorf("recreating collider: %w", ErrDegenerateGeometry)
	}
	collider, err := m.world.CreateTrimeshCollider(next.Positions, next.Indices, m.body)
	if err != nil {
		return true, fmt.Errorf("recreating collider: %w", err)
	}
	m.collider = collider
	m.hasCollider = true
	return true, nil
}

// AttachPhysics creates a fixed body at the mesh pose and a trimesh collider
// from the current geometry, replacing any existing collider. A body created
// earlier in the same physics world is reused.
func (m *TrackedMesh) AttachPhysics(p Physics) error {
	if m.geometry.Degenerate() {
		return ErrDegenerateGeometry
	}

	if m.hasCollider {
		m.world.RemoveCollider(m.collider)
		m.hasCollider = false
	}

	if m.world != p {
		body, err := p.CreateFixedBody(m.Pose)
		if err != nil {
			return fmt.Errorf("creating body: %w", err)
		}
		m.world = p
		m.body = body
	}

	collider, err := p.CreateTrimeshCollider(m.geometry.Positions, m.geometry.Indices, m.body)
	if err != nil {
		return fmt.Errorf("creating collider: %w", err)
	}
	m.collider = collider
	m.hasCollider = true
	return nil
}

// Dispose releases the geometry and removes the collider. The rigid body is
// left for the physics engine to reclaim.
func (m *TrackedMesh) Dispose() {
	m.geometry.Dispose()
	if m.hasCollider {
		m.world.RemoveCollider(m.collider)
		m.hasCollider = false
	}
}
