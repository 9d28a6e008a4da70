package simulator

import (
	"github.com/Faultbox/midgard-xr/internal/world"
)

// MeshSource plays the role of a meshing sensor over a synthetic scene. Each
// plane yields one RawMesh; the same *RawMesh is handed out on every
// snapshot so trackers see a stable identity.
type MeshSource struct {
	// RefreshEvery bumps every mesh's version each N frames, as a device
	// does when it refines its reconstruction. Zero keeps versions fixed.
	RefreshEvery int

	meshes map[*world.TrackedPlane]*world.RawMesh
	order  []*world.TrackedPlane
}

// NewMeshSource creates an empty source.
func NewMeshSource(refreshEvery int) *MeshSource {
	return &MeshSource{
		RefreshEvery: refreshEvery,
		meshes:       make(map[*world.TrackedPlane]*world.RawMesh),
	}
}

// Snapshot returns the meshes visible at frame for the given planes. Planes
// that disappeared since the previous call drop out of the snapshot.
func (s *MeshSource) Snapshot(frame int, planes []*world.TrackedPlane) []*world.RawMesh {
	live := make(map[*world.TrackedPlane]bool, len(planes))
	for _, p := range planes {
		live[p] = true
		if _, ok := s.meshes[p]; !ok {
			s.meshes[p] = meshFromPlane(p)
			s.order = append(s.order, p)
		}
	}

	refresh := s.RefreshEvery > 0 && frame > 0 && frame%s.RefreshEvery == 0

	kept := s.order[:0]
	out := make([]*world.RawMesh, 0, len(planes))
	for _, p := range s.order {
		if !live[p] {
			delete(s.meshes, p)
			continue
		}
		kept = append(kept, p)
		raw := s.meshes[p]
		raw.Pose = p.Pose()
		if refresh {
			raw.Version++
		}
		out = append(out, raw)
	}
	s.order = kept
	return out
}

func meshFromPlane(p *world.TrackedPlane) *world.RawMesh {
	g := p.Geometry()
	raw := &world.RawMesh{
		Pose:    p.Pose(),
		Label:   p.Label(),
		Version: 1,
	}
	if g != nil {
		raw.Vertices = append([]float32(nil), g.Positions...)
		raw.Indices = append([]uint32(nil), g.Indices...)
	}
	return raw
}
