package world

import "errors"

var (
	// ErrIdentityMapsDiverged means the handle->entity and entity->handle
	// tables of a tracker are no longer inverses of each other.
	ErrIdentityMapsDiverged = errors.New("identity maps diverged")

	// ErrNoPlaneSource is returned when a plane is constructed without a
	// sensor or synthetic source.
	ErrNoPlaneSource = errors.New("plane has no source")

	// ErrDegenerateGeometry is returned when physics is requested for a
	// mesh with no vertices or no triangles.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)
