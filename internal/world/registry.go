package world

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventKind identifies a registry change.
type EventKind uint8

const (
	MeshAdded EventKind = iota
	MeshRemoved
	PlaneAdded
	PlaneRemoved
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case MeshAdded:
		return "mesh_added"
	case MeshRemoved:
		return "mesh_removed"
	case PlaneAdded:
		return "plane_added"
	case PlaneRemoved:
		return "plane_removed"
	default:
		return "unknown"
	}
}

// Event is delivered to registry subscribers. Exactly one of Mesh and Plane
// is set.
type Event struct {
	Kind  EventKind
	Mesh  *TrackedMesh
	Plane *TrackedPlane
}

// PlaneSink receives planes from a source other than the plane tracker.
type PlaneSink interface {
	AddPlane(p *TrackedPlane) bool
}

// Registry is the set of currently tracked meshes and planes, read by the
// renderer and other collaborators. Sensor-backed and synthetic entities
// are stored alike.
//
// After Close, all mutations are ignored: late results from a load that
// outlived its scene are dropped.
type Registry struct {
	mu     sync.RWMutex
	log    *zap.Logger
	closed bool

	meshes     map[uuid.UUID]*TrackedMesh
	planes     map[uuid.UUID]*TrackedPlane
	meshOrder  []uuid.UUID
	planeOrder []uuid.UUID

	listeners map[int]func(Event)
	nextSub   int
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:       log,
		meshes:    make(map[uuid.UUID]*TrackedMesh),
		planes:    make(map[uuid.UUID]*TrackedPlane),
		listeners: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for change events and returns a function that
// removes it. Events are delivered synchronously on the mutating goroutine,
// while the calling tracker holds its lock: fn must not call back into it.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// AddMesh inserts m and reports whether it was added.
func (r *Registry) AddMesh(m *TrackedMesh) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Debug("registry closed, mesh dropped", zap.Stringer("id", m.ID))
		return false
	}
	if _, ok := r.meshes[m.ID]; ok {
		r.mu.Unlock()
		return false
	}
	r.meshes[m.ID] = m
	r.meshOrder = append(r.meshOrder, m.ID)
	r.mu.Unlock()

	r.emit(Event{Kind: MeshAdded, Mesh: m})
	return true
}

// RemoveMesh deletes m and reports whether it was present.
func (r *Registry) RemoveMesh(m *TrackedMesh) bool {
	r.mu.Lock()
	if _, ok := r.meshes[m.ID]; !ok || r.closed {
		r.mu.Unlock()
		return false
	}
	delete(r.meshes, m.ID)
	r.meshOrder = removeID(r.meshOrder, m.ID)
	r.mu.Unlock()

	r.emit(Event{Kind: MeshRemoved, Mesh: m})
	return true
}

// AddPlane inserts p and reports whether it was added.
func (r *Registry) AddPlane(p *TrackedPlane) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Debug("registry closed, plane dropped", zap.Stringer("id", p.ID))
		return false
	}
	if _, ok := r.planes[p.ID]; ok {
		r.mu.Unlock()
		return false
	}
	r.planes[p.ID] = p
	r.planeOrder = append(r.planeOrder, p.ID)
	r.mu.Unlock()

	r.emit(Event{Kind: PlaneAdded, Plane: p})
	return true
}

// RemovePlane deletes p and reports whether it was present.
func (r *Registry) RemovePlane(p *TrackedPlane) bool {
	r.mu.Lock()
	if _, ok := r.planes[p.ID]; !ok || r.closed {
		r.mu.Unlock()
		return false
	}
	delete(r.planes, p.ID)
	r.planeOrder = removeID(r.planeOrder, p.ID)
	r.mu.Unlock()

	r.emit(Event{Kind: PlaneRemoved, Plane: p})
	return true
}

// Meshes returns the tracked meshes in insertion order.
func (r *Registry) Meshes() []*TrackedMesh {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*TrackedMesh, 0, len(r.meshOrder))
	for _, id := range r.meshOrder {
		out = append(out, r.meshes[id])
	}
	return out
}

// Planes returns the tracked planes in insertion order.
func (r *Registry) Planes() []*TrackedPlane {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*TrackedPlane, 0, len(r.planeOrder))
	for _, id := range r.planeOrder {
		out = append(out, r.planes[id])
	}
	return out
}

// Mesh looks up a mesh by ID.
func (r *Registry) Mesh(id uuid.UUID) (*TrackedMesh, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meshes[id]
	return m, ok
}

// Plane looks up a plane by ID.
func (r *Registry) Plane(id uuid.UUID) (*TrackedPlane, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.planes[id]
	return p, ok
}

// Close stops accepting changes and drops all subscribers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.listeners)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Registry) emit(ev Event) {
	r.mu.RLock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.listeners[id])
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
