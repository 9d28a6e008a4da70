package world

import (
	"sync"

	"go.uber.org/zap"
)

// PlaneTracker reconciles sensed planes the same way MeshTracker does for
// meshes. Planes keep the geometry and pose they were created with.
type PlaneTracker struct {
	mu       sync.Mutex
	registry *Registry
	log      *zap.Logger
	strict   bool

	byHandle map[*RawPlane]*TrackedPlane
	byPlane  map[*TrackedPlane]*RawPlane
	// rejected remembers handles whose boundary could not be triangulated,
	// so they are logged once rather than every frame.
	rejected map[*RawPlane]struct{}
}

// NewPlaneTracker creates a tracker publishing to registry.
func NewPlaneTracker(registry *Registry, opts TrackerOptions) *PlaneTracker {
	return &PlaneTracker{
		registry: registry,
		log:      opts.logger(),
		strict:   opts.Strict,
		byHandle: make(map[*RawPlane]*TrackedPlane),
		byPlane:  make(map[*TrackedPlane]*RawPlane),
		rejected: make(map[*RawPlane]struct{}),
	}
}

// Reconcile applies one frame's plane snapshot. Semantics match
// MeshTracker.Reconcile.
func (t *PlaneTracker) Reconcile(snapshot []*RawPlane) error {
	if snapshot == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[*RawPlane]struct{}, len(snapshot))
	for _, raw := range snapshot {
		if raw != nil {
			present[raw] = struct{}{}
		}
	}

	for raw, plane := range t.byHandle {
		if _, ok := present[raw]; ok {
			continue
		}
		delete(t.byHandle, raw)
		delete(t.byPlane, plane)
		t.registry.RemovePlane(plane)
		plane.Dispose()
	}
	for raw := range t.rejected {
		if _, ok := present[raw]; !ok {
			delete(t.rejected, raw)
		}
	}

	for _, raw := range snapshot {
		if raw == nil {
			continue
		}
		if _, ok := t.byHandle[raw]; ok {
			continue
		}
		if _, ok := t.rejected[raw]; ok {
			continue
		}
		plane, err := NewTrackedPlane(raw)
		if err != nil {
			t.rejected[raw] = struct{}{}
			t.log.Warn("skipping plane", zap.String("label", raw.SemanticLabel), zap.Error(err))
			continue
		}
		t.byHandle[raw] = plane
		t.byPlane[plane] = raw
		t.registry.AddPlane(plane)
		t.log.Debug("plane added",
			zap.Stringer("id", plane.ID),
			zap.String("label", plane.Label()),
			zap.Stringer("orientation", plane.Orientation()),
		)
	}

	err := checkInverse(t.byHandle, t.byPlane)
	if err != nil {
		t.log.Error("plane tracker invariant violated", zap.Error(err))
		if t.strict {
			panic(err)
		}
	}
	return err
}

// Len returns the number of tracked sensor planes.
func (t *PlaneTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}

// Lookup returns the plane tracked for raw.
func (t *PlaneTracker) Lookup(raw *RawPlane) (*TrackedPlane, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byHandle[raw]
	return p, ok
}

// CheckInvariants verifies that the identity tables are mutual inverses.
func (t *PlaneTracker) CheckInvariants() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return checkInverse(t.byHandle, t.byPlane)
}
