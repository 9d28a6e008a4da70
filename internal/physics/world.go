// Package physics provides an in-memory physics world that records the rigid
// bodies and colliders requested by tracked meshes. It stands in for a real
// engine in development mode and in tests.
package physics

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-xr/internal/world"
)

var (
	// ErrUnknownBody is returned when a collider references a missing body.
	ErrUnknownBody = errors.New("unknown body")
	// ErrInvalidTrimesh is returned for malformed collider buffers.
	ErrInvalidTrimesh = errors.New("invalid trimesh")
	// ErrCapacity is returned when the collider limit is reached.
	ErrCapacity = errors.New("collider capacity reached")
)

// Body is a fixed rigid body record.
type Body struct {
	Handle world.BodyHandle
	Pose   world.Pose
}

// Collider is a trimesh collider record. Buffers are copies of the ones
// passed at creation.
type Collider struct {
	Handle   world.ColliderHandle
	Body     world.BodyHandle
	Vertices []float32
	Indices  []uint32
}

// Config configures a World.
type Config struct {
	// MaxColliders limits live colliders; 0 means unlimited.
	MaxColliders int
	Log          *zap.Logger
}

// World is a bookkeeping physics world. It is safe for concurrent use.
type World struct {
	mu        sync.Mutex
	cfg       Config
	log       *zap.Logger
	nextID    uint64
	bodies    map[world.BodyHandle]*Body
	colliders map[world.ColliderHandle]*Collider
}

var _ world.Physics = (*World)(nil)

// New creates an empty world.
func New(cfg Config) *World {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		cfg:       cfg,
		log:       log,
		bodies:    make(map[world.BodyHandle]*Body),
		colliders: make(map[world.ColliderHandle]*Collider),
	}
}

// CreateFixedBody creates an immovable body.
func (w *World) CreateFixedBody(pose world.Pose) (world.BodyHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	h := world.BodyHandle(w.nextID)
	w.bodies[h] = &Body{Handle: h, Pose: pose}
	return h, nil
}

// CreateTrimeshCollider attaches a triangle-mesh collider to body.
func (w *World) CreateTrimeshCollider(vertices []float32, indices []uint32, body world.BodyHandle) (world.ColliderHandle, error) {
	if err := validateTrimesh(vertices, indices); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.bodies[body]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBody, body)
	}
	if w.cfg.MaxColliders > 0 && len(w.colliders) >= w.cfg.MaxColliders {
		return 0, ErrCapacity
	}

	w.nextID++
	h := world.ColliderHandle(w.nextID)
	w.colliders[h] = &Collider{
		Handle:   h,
		Body:     body,
		Vertices: slices.Clone(vertices),
		Indices:  slices.Clone(indices),
	}
	return h, nil
}

func validateTrimesh(vertices []float32, indices []uint32) error {
	if len(vertices) == 0 || len(vertices)%3 != 0 {
		return fmt.Errorf("%w: %d vertex components", ErrInvalidTrimesh, len(vertices))
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrInvalidTrimesh, len(indices))
	}
	count := uint32(len(vertices) / 3)
	for _, idx := range indices {
		if idx >= count {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidTrimesh, idx)
		}
	}
	return nil
}

// RemoveCollider removes a collider. Unknown handles are ignored.
func (w *World) RemoveCollider(collider world.ColliderHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.colliders[collider]; !ok {
		w.log.Debug("removing unknown collider", zap.Uint64("collider", uint64(collider)))
		return
	}
	delete(w.colliders, collider)
}

// RemoveBody removes a body together with its colliders.
func (w *World) RemoveBody(body world.BodyHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.bodies, body)
	for h, c := range w.colliders {
		if c.Body == body {
			delete(w.colliders, h)
		}
	}
}

// Body returns a copy of a body record.
func (w *World) Body(h world.BodyHandle) (Body, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[h]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// Collider returns a collider record.
func (w *World) Collider(h world.ColliderHandle) (Collider, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.colliders[h]
	if !ok {
		return Collider{}, false
	}
	return *c, true
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

// ColliderCount returns the number of live colliders.
func (w *World) ColliderCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.colliders)
}

// CollidersOf returns the colliders attached to body.
func (w *World) CollidersOf(body world.BodyHandle) []world.ColliderHandle {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []world.ColliderHandle
	for h, c := range w.colliders {
		if c.Body == body {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}
