// Package geometry builds indexed triangle geometry for tracked surfaces.
package geometry

import (
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Geometry holds indexed triangle data ready for GPU upload.
// Positions and Normals are packed xyz triplets.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
	Bounds    Bounds

	disposed bool
}

// FromBuffers copies raw vertex/index buffers into a new geometry and
// computes its vertex normals.
func FromBuffers(vertices []float32, indices []uint32) *Geometry {
	g := &Geometry{
		Positions: append([]float32(nil), vertices[:len(vertices)/3*3]...),
		Indices:   append([]uint32(nil), indices...),
	}
	g.Normals = ComputeVertexNormals(g.Positions, g.Indices)
	g.Bounds = computeBounds(g.Positions)
	return g
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	return len(g.Indices) / 3
}

// Degenerate reports whether the geometry has no vertices or no triangles.
func (g *Geometry) Degenerate() bool {
	return g.VertexCount() == 0 || g.TriangleCount() == 0
}

// Vertex returns the position of vertex i.
func (g *Geometry) Vertex(i int) math.Vec3 {
	return math.Vec3{X: g.Positions[i*3], Y: g.Positions[i*3+1], Z: g.Positions[i*3+2]}
}

// Normal returns the normal of vertex i.
func (g *Geometry) Normal(i int) math.Vec3 {
	return math.Vec3{X: g.Normals[i*3], Y: g.Normals[i*3+1], Z: g.Normals[i*3+2]}
}

// ApplyMatrix transforms positions by m and normals by its rotation part.
func (g *Geometry) ApplyMatrix(m math.Mat4) {
	for i := 0; i < len(g.Positions); i += 3 {
		p := m.TransformPoint([3]float32{g.Positions[i], g.Positions[i+1], g.Positions[i+2]})
		copy(g.Positions[i:i+3], p[:])
	}
	for i := 0; i < len(g.Normals); i += 3 {
		d := m.TransformDirection([3]float32{g.Normals[i], g.Normals[i+1], g.Normals[i+2]})
		n := math.Vec3FromArray(d).Normalize()
		g.Normals[i], g.Normals[i+1], g.Normals[i+2] = n.X, n.Y, n.Z
	}
	g.Bounds = computeBounds(g.Positions)
}

// Dispose releases the buffers. A disposed geometry must not be used again.
func (g *Geometry) Dispose() {
	g.Positions = nil
	g.Normals = nil
	g.Indices = nil
	g.disposed = true
}

// Disposed reports whether Dispose has been called.
func (g *Geometry) Disposed() bool {
	return g.disposed
}

// ComputeVertexNormals accumulates area-weighted face normals at each
// referenced vertex and normalizes the result. Triangles referencing
// out-of-range vertices are skipped.
func ComputeVertexNormals(positions []float32, indices []uint32) []float32 {
	normals := make([]float32, len(positions))
	count := uint32(len(positions) / 3)

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a >= count || b >= count || c >= count {
			continue
		}
		va := vec(positions, a)
		vb := vec(positions, b)
		vc := vec(positions, c)

		// Unnormalized cross product weights by triangle area
		n := vb.Sub(va).Cross(vc.Sub(va))
		for _, idx := range [3]uint32{a, b, c} {
			normals[idx*3] += n.X
			normals[idx*3+1] += n.Y
			normals[idx*3+2] += n.Z
		}
	}

	for i := 0; i < len(normals); i += 3 {
		n := math.Vec3{X: normals[i], Y: normals[i+1], Z: normals[i+2]}.Normalize()
		normals[i], normals[i+1], normals[i+2] = n.X, n.Y, n.Z
	}
	return normals
}

func vec(positions []float32, i uint32) math.Vec3 {
	return math.Vec3{X: positions[i*3], Y: positions[i*3+1], Z: positions[i*3+2]}
}

func computeBounds(positions []float32) Bounds {
	if len(positions) < 3 {
		return Bounds{}
	}
	b := Bounds{
		Min: [3]float32{1e10, 1e10, 1e10},
		Max: [3]float32{-1e10, -1e10, -1e10},
	}
	for i := 0; i+2 < len(positions); i += 3 {
		updateBounds(&b, [3]float32{positions[i], positions[i+1], positions[i+2]})
	}
	return b
}

func updateBounds(b *Bounds, p [3]float32) {
	for axis := range 3 {
		if p[axis] < b.Min[axis] {
			b.Min[axis] = p[axis]
		}
		if p[axis] > b.Max[axis] {
			b.Max[axis] = p[axis]
		}
	}
}
