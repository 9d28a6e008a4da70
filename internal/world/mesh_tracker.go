package world

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TrackerOptions configures a MeshTracker or PlaneTracker.
type TrackerOptions struct {
	Log *zap.Logger
	// Strict panics on invariant violations instead of returning them.
	Strict bool
}

func (o TrackerOptions) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

// MeshTracker reconciles each frame's set of sensed meshes against the meshes
// it already tracks, and attaches colliders once physics is available.
//
// The two identity tables are only ever changed together, inside Reconcile.
type MeshTracker struct {
	mu       sync.Mutex
	registry *Registry
	log      *zap.Logger
	strict   bool

	physics Physics

	byHandle map[*RawMesh]*TrackedMesh
	byMesh   map[*TrackedMesh]*RawMesh
}

// NewMeshTracker creates a tracker publishing to registry.
func NewMeshTracker(registry *Registry, opts TrackerOptions) *MeshTracker {
	return &MeshTracker{
		registry: registry,
		log:      opts.logger(),
		strict:   opts.Strict,
		byHandle: make(map[*RawMesh]*TrackedMesh),
		byMesh:   make(map[*TrackedMesh]*RawMesh),
	}
}

// Reconcile applies one frame's snapshot. Meshes missing from the snapshot
// are removed before new ones are added, so a handle can never be reused
// within a pass. A nil snapshot means the platform reported no mesh data
// this frame and leaves the tracked set untouched; an empty one removes
// everything.
//
// Only invariant violations are returned; degenerate payloads and physics
// failures are logged and absorbed.
func (t *MeshTracker) Reconcile(snapshot []*RawMesh) error {
	if snapshot == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[*RawMesh]struct{}, len(snapshot))
	for _, raw := range snapshot {
		if raw != nil {
			present[raw] = struct{}{}
		}
	}

	// Removals
	for raw, mesh := range t.byHandle {
		if _, ok := present[raw]; ok {
			continue
		}
		delete(t.byHandle, raw)
		delete(t.byMesh, mesh)
		t.registry.RemoveMesh(mesh)
		mesh.Dispose()
		t.log.Debug("mesh removed", zap.Stringer("id", mesh.ID))
	}

	// Additions and updates, in snapshot order
	seen := make(map[*RawMesh]struct{}, len(present))
	for _, raw := range snapshot {
		if raw == nil {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		mesh, ok := t.byHandle[raw]
		if !ok {
			t.add(raw)
			continue
		}
		t.update(raw, mesh)
	}

	return t.check()
}

func (t *MeshTracker) add(raw *RawMesh) {
	mesh := NewTrackedMesh(raw)
	t.byHandle[raw] = mesh
	t.byMesh[mesh] = raw
	t.registry.AddMesh(mesh)

	t.log.Debug("mesh added",
		zap.Stringer("id", mesh.ID),
		zap.Int("vertices", mesh.Geometry().VertexCount()),
		zap.Uint64("version", raw.Version),
	)

	if t.physics != nil {
		t.attach(mesh)
	}
}

func (t *MeshTracker) update(raw *RawMesh, mesh *TrackedMesh) {
	rebuilt, err := mesh.UpdateVertices(raw)
	if err != nil {
		t.log.Warn("collider rebuild failed, mesh continues without physics",
			zap.Stringer("id", mesh.ID), zap.Error(err))
	}
	mesh.Pose = raw.Pose

	// A mesh that had no usable geometry when physics arrived gets another
	// chance once its geometry changes.
	if rebuilt && err == nil && t.physics != nil && !mesh.PhysicsAttached() {
		t.attach(mesh)
	}
}

func (t *MeshTracker) attach(mesh *TrackedMesh) bool {
	err := mesh.AttachPhysics(t.physics)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrDegenerateGeometry):
		t.log.Debug("skipping collider for degenerate mesh", zap.Stringer("id", mesh.ID))
	default:
		t.log.Warn("attaching physics failed", zap.Stringer("id", mesh.ID), zap.Error(err))
	}
	return false
}

// AttachPhysics makes p the physics world for all current and future meshes
// and creates colliders for tracked meshes that have none. It is safe to
// call from a goroutine other than the frame loop, and calling it again
// never gives a mesh a second collider. It returns the number of colliders
// created.
func (t *MeshTracker) AttachPhysics(p Physics) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.physics = p
	attached := 0
	for mesh := range t.byMesh {
		if mesh.PhysicsAttached() {
			continue
		}
		if t.attach(mesh) {
			attached++
		}
	}
	t.log.Info("physics attached", zap.Int("colliders", attached), zap.Int("meshes", len(t.byMesh)))
	return attached
}

// PhysicsActive reports whether AttachPhysics has been called.
func (t *MeshTracker) PhysicsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.physics != nil
}

// Len returns the number of tracked meshes.
func (t *MeshTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}

// Lookup returns the mesh tracked for raw.
func (t *MeshTracker) Lookup(raw *RawMesh) (*TrackedMesh, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byHandle[raw]
	return m, ok
}

// Handle returns the platform handle a tracked mesh was built from.
func (t *MeshTracker) Handle(mesh *TrackedMesh) (*RawMesh, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw, ok := t.byMesh[mesh]
	return raw, ok
}

// CheckInvariants verifies that the identity tables are mutual inverses.
func (t *MeshTracker) CheckInvariants() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return checkInverse(t.byHandle, t.byMesh)
}

func (t *MeshTracker) check() error {
	err := checkInverse(t.byHandle, t.byMesh)
	if err == nil {
		return nil
	}
	t.log.Error("mesh tracker invariant violated", zap.Error(err))
	if t.strict {
		panic(err)
	}
	return err
}

func checkInverse[H comparable, E comparable](forward map[H]E, backward map[E]H) error {
	if len(forward) != len(backward) {
		return fmt.Errorf("%w: %d handles, %d entities", ErrIdentityMapsDiverged, len(forward), len(backward))
	}
	for h, e := range forward {
		if back, ok := backward[e]; !ok || back != h {
			return fmt.Errorf("%w: entity not mapped back to its handle", ErrIdentityMapsDiverged)
		}
	}
	return nil
}
