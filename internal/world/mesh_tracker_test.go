package world_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/midgard-xr/internal/physics"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// rawQuad returns a mesh handle with a single quad at the given version.
func rawQuad(version uint64) *world.RawMesh {
	return &world.RawMesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 2, 1, 0, 3, 2},
		Version:  version,
		Pose:     world.IdentityPose(),
	}
}

func newTracker(t *testing.T) (*world.MeshTracker, *world.Registry) {
	t.Helper()
	reg := world.NewRegistry(nil)
	return world.NewMeshTracker(reg, world.TrackerOptions{Strict: true}), reg
}

func TestReconcileAddsNewMeshes(t *testing.T) {
	tracker, reg := newTracker(t)
	a, b := rawQuad(1), rawQuad(1)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a, b}))

	assert.Equal(t, 2, tracker.Len())
	assert.Len(t, reg.Meshes(), 2)

	mesh, ok := tracker.Lookup(a)
	require.True(t, ok)
	back, ok := tracker.Handle(mesh)
	require.True(t, ok)
	assert.Same(t, a, back)
	assert.Equal(t, uint64(1), mesh.Version())
	assert.Equal(t, 4, mesh.Geometry().VertexCount())
}

func TestReconcileRemovesMissingMeshes(t *testing.T) {
	tracker, reg := newTracker(t)
	a, b := rawQuad(1), rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a, b}))
	meshA, _ := tracker.Lookup(a)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{b}))

	assert.Equal(t, 1, tracker.Len())
	_, ok := tracker.Lookup(a)
	assert.False(t, ok)
	_, ok = tracker.Handle(meshA)
	assert.False(t, ok)
	_, ok = reg.Mesh(meshA.ID)
	assert.False(t, ok)
	assert.True(t, meshA.Geometry().Disposed())
}

func TestReconcileNilSnapshotKeepsMeshes(t *testing.T) {
	tracker, _ := newTracker(t)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{rawQuad(1)}))

	require.NoError(t, tracker.Reconcile(nil))
	assert.Equal(t, 1, tracker.Len())

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{}))
	assert.Zero(t, tracker.Len())
}

func TestReconcileDuplicateHandles(t *testing.T) {
	tracker, reg := newTracker(t)
	a := rawQuad(1)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a, a, nil}))
	assert.Equal(t, 1, tracker.Len())
	assert.Len(t, reg.Meshes(), 1)
}

func TestDuplicateUnversionedHandleRebuildsOnce(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})
	tracker.AttachPhysics(phys)

	a := rawQuad(0)
	a.Unversioned = true
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	mesh, _ := tracker.Lookup(a)
	before, ok := mesh.Collider()
	require.True(t, ok)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a, a}))
	after, ok := mesh.Collider()
	require.True(t, ok)
	assert.False(t, mesh.Geometry().Disposed())
	assert.Equal(t, 1, phys.ColliderCount())

	// one rebuild replaces the collider once: the world hands out one new id
	_, known := phys.Collider(before)
	assert.False(t, known)
	assert.Equal(t, before+1, after)
}

func TestUnchangedVersionKeepsGeometry(t *testing.T) {
	tracker, _ := newTracker(t)
	a := rawQuad(5)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	mesh, _ := tracker.Lookup(a)
	geom := mesh.Geometry()

	rebuilt, err := mesh.UpdateVertices(a)
	require.NoError(t, err)
	assert.False(t, rebuilt)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	assert.Same(t, geom, mesh.Geometry())
	assert.False(t, geom.Disposed())
}

func TestChangedVersionRebuildsGeometry(t *testing.T) {
	tracker, _ := newTracker(t)
	a := rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	mesh, _ := tracker.Lookup(a)
	old := mesh.Geometry()

	a.Version = 2
	a.Vertices = []float32{0, 0, 0, 2, 0, 0, 0, 0, 2}
	a.Indices = []uint32{0, 2, 1}
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	assert.True(t, old.Disposed(), "previous geometry handle must be invalidated")
	assert.NotSame(t, old, mesh.Geometry())
	assert.Equal(t, 3, mesh.Geometry().VertexCount())
	assert.Equal(t, uint64(2), mesh.Version())
}

func TestUnversionedPayloadAlwaysRebuilds(t *testing.T) {
	a := rawQuad(0)
	a.Unversioned = true
	mesh := world.NewTrackedMesh(a)

	for range 3 {
		prev := mesh.Geometry()
		rebuilt, err := mesh.UpdateVertices(a)
		require.NoError(t, err)
		assert.True(t, rebuilt)
		assert.NotSame(t, prev, mesh.Geometry())
	}
}

func TestReconcileRefreshesPose(t *testing.T) {
	tracker, _ := newTracker(t)
	a := rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	a.Pose.Position = math.Vec3{X: 3, Y: 1, Z: -2}
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	mesh, _ := tracker.Lookup(a)
	assert.Equal(t, a.Pose, mesh.Pose)
}

func TestRemovedAndReaddedHandleIsFresh(t *testing.T) {
	tracker, _ := newTracker(t)
	a := rawQuad(3)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	first, _ := tracker.Lookup(a)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{}))

	a.Version = 7
	a.Vertices = []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}
	a.Indices = []uint32{0, 2, 1}
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	second, ok := tracker.Lookup(a)
	require.True(t, ok)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, uint64(7), second.Version())
	assert.Equal(t, 3, second.Geometry().VertexCount())
}

func TestIdentityMapsStayInverse(t *testing.T) {
	tracker, reg := newTracker(t)
	rng := rand.New(rand.NewSource(1))

	pool := make([]*world.RawMesh, 12)
	for i := range pool {
		pool[i] = rawQuad(uint64(i))
	}

	for pass := range 200 {
		var snapshot []*world.RawMesh
		for _, raw := range pool {
			if rng.Intn(2) == 0 {
				if rng.Intn(4) == 0 {
					raw.Version++
				}
				snapshot = append(snapshot, raw)
			}
		}
		if snapshot == nil {
			snapshot = []*world.RawMesh{}
		}
		require.NoError(t, tracker.Reconcile(snapshot), "pass %d", pass)
		require.NoError(t, tracker.CheckInvariants(), "pass %d", pass)
		require.Equal(t, len(snapshot), tracker.Len(), "pass %d", pass)
		require.Len(t, reg.Meshes(), len(snapshot), "pass %d", pass)
	}
}

func TestPhysicsAttachedOnAddWhenActive(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})
	assert.Zero(t, tracker.AttachPhysics(phys))

	a := rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	mesh, _ := tracker.Lookup(a)
	assert.True(t, mesh.PhysicsAttached())
	assert.Equal(t, 1, phys.ColliderCount())
	assert.Equal(t, 1, phys.BodyCount())
}

func TestRetroactiveAttachIsIdempotent(t *testing.T) {
	tracker, _ := newTracker(t)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{rawQuad(1), rawQuad(1), rawQuad(1)}))

	phys := physics.New(physics.Config{})
	assert.Equal(t, 3, tracker.AttachPhysics(phys))
	assert.Zero(t, tracker.AttachPhysics(phys))

	assert.Equal(t, 3, phys.ColliderCount())
	assert.Equal(t, 3, phys.BodyCount())
	assert.True(t, tracker.PhysicsActive())
}

func TestRetroactiveAttachRacesReconcile(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})

	pool := make([]*world.RawMesh, 8)
	for i := range pool {
		pool[i] = rawQuad(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.AttachPhysics(phys)
	}()
	for range 50 {
		require.NoError(t, tracker.Reconcile(pool))
	}
	<-done

	assert.Equal(t, len(pool), phys.ColliderCount(), "exactly one collider per mesh")
	for _, raw := range pool {
		mesh, _ := tracker.Lookup(raw)
		assert.True(t, mesh.PhysicsAttached())
	}
}

func TestDegenerateMeshSkipsCollider(t *testing.T) {
	tracker, reg := newTracker(t)
	phys := physics.New(physics.Config{})
	tracker.AttachPhysics(phys)

	empty := &world.RawMesh{Version: 1, Pose: world.IdentityPose()}
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{empty}))

	mesh, ok := tracker.Lookup(empty)
	require.True(t, ok, "render-side mesh must still exist")
	assert.False(t, mesh.PhysicsAttached())
	assert.Len(t, reg.Meshes(), 1)
	assert.Zero(t, phys.ColliderCount())

	// Real geometry arriving later gets a collider
	full := rawQuad(2)
	empty.Version = full.Version
	empty.Vertices = full.Vertices
	empty.Indices = full.Indices
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{empty}))
	assert.True(t, mesh.PhysicsAttached())
	assert.Equal(t, 1, phys.ColliderCount())
}

func TestSameVersionLeavesColliderUntouched(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})
	tracker.AttachPhysics(phys)

	a := rawQuad(5)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	mesh, _ := tracker.Lookup(a)
	collider, _ := mesh.Collider()
	before, _ := phys.Collider(collider)
	geom := mesh.Geometry()
	positions := append([]float32(nil), geom.Positions...)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	after, ok := mesh.Collider()
	require.True(t, ok)
	assert.Equal(t, collider, after)
	rec, _ := phys.Collider(after)
	assert.Equal(t, before.Vertices, rec.Vertices)
	assert.Same(t, geom, mesh.Geometry())
	assert.Equal(t, positions, mesh.Geometry().Positions)
}

func TestVersionChangeRecreatesColliderKeepsBody(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})
	tracker.AttachPhysics(phys)

	a := rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	mesh, _ := tracker.Lookup(a)
	body, _ := mesh.Body()
	oldCollider, _ := mesh.Collider()

	a.Version = 2
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	newBody, _ := mesh.Body()
	newCollider, ok := mesh.Collider()
	require.True(t, ok)
	assert.Equal(t, body, newBody)
	assert.NotEqual(t, oldCollider, newCollider)
	assert.Equal(t, []world.ColliderHandle{newCollider}, phys.CollidersOf(body))
}

func TestRemovalRemovesColliderNotBody(t *testing.T) {
	tracker, _ := newTracker(t)
	phys := physics.New(physics.Config{})
	tracker.AttachPhysics(phys)

	require.NoError(t, tracker.Reconcile([]*world.RawMesh{rawQuad(1)}))
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{}))

	assert.Zero(t, phys.ColliderCount())
	assert.Equal(t, 1, phys.BodyCount())
}

// failingPhysics refuses to create colliders.
type failingPhysics struct {
	*physics.World
}

func (f *failingPhysics) CreateTrimeshCollider([]float32, []uint32, world.BodyHandle) (world.ColliderHandle, error) {
	return 0, errors.New("out of memory")
}

func TestPhysicsFailureIsAbsorbed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reg := world.NewRegistry(nil)
	tracker := world.NewMeshTracker(reg, world.TrackerOptions{Log: zap.New(core)})
	tracker.AttachPhysics(&failingPhysics{physics.New(physics.Config{})})

	a := rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))

	mesh, ok := tracker.Lookup(a)
	require.True(t, ok)
	assert.False(t, mesh.PhysicsAttached())
	assert.Equal(t, 1, logs.FilterMessage("attaching physics failed").Len())
}

func TestRegistryEventsFollowReconcile(t *testing.T) {
	tracker, reg := newTracker(t)
	var kinds []world.EventKind
	unsubscribe := reg.Subscribe(func(ev world.Event) {
		kinds = append(kinds, ev.Kind)
	})
	defer unsubscribe()

	a, b := rawQuad(1), rawQuad(1)
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{a}))
	require.NoError(t, tracker.Reconcile([]*world.RawMesh{b}))

	// Removal of a is published before the addition of b
	assert.Equal(t, []world.EventKind{world.MeshAdded, world.MeshRemoved, world.MeshAdded}, kinds)
}
