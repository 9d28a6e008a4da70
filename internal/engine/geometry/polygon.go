package geometry

import (
	"errors"
	gomath "math"

	"github.com/Faultbox/midgard-xr/pkg/math"
)

// ErrDegeneratePolygon is returned when a boundary polygon cannot be
// triangulated (fewer than three points or zero area).
var ErrDegeneratePolygon = errors.New("degenerate polygon")

// Triangulate splits a simple (possibly concave) polygon into triangles
// using ear clipping. The returned indices refer to the input points and
// are wound counter-clockwise.
func Triangulate(polygon []math.Vec2) ([]uint32, error) {
	n := len(polygon)
	if n < 3 {
		return nil, ErrDegeneratePolygon
	}
	area := math.PolygonArea(polygon)
	if gomath.Abs(float64(area)) < 1e-9 {
		return nil, ErrDegeneratePolygon
	}

	// Working list of remaining vertex indices, counter-clockwise
	remaining := make([]uint32, n)
	for i := range remaining {
		remaining[i] = uint32(i)
	}
	if area < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		}
	}

	indices := make([]uint32, 0, (n-2)*3)
	for len(remaining) > 3 {
		m := len(remaining)
		clipped := false
		for i := range m {
			prev := remaining[(i+m-1)%m]
			cur := remaining[i]
			next := remaining[(i+1)%m]
			if !isEar(polygon, remaining, prev, cur, next) {
				continue
			}
			indices = append(indices, prev, cur, next)
			remaining = append(remaining[:i], remaining[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Self-intersecting or collinear leftovers: fan the rest
			for i := 1; i+1 < len(remaining); i++ {
				indices = append(indices, remaining[0], remaining[i], remaining[i+1])
			}
			return indices, nil
		}
	}
	indices = append(indices, remaining[0], remaining[1], remaining[2])
	return indices, nil
}

func isEar(polygon []math.Vec2, remaining []uint32, prev, cur, next uint32) bool {
	a, b, c := polygon[prev], polygon[cur], polygon[next]
	// Reflex or collinear corner
	if b.Sub(a).Cross(c.Sub(b)) <= 0 {
		return false
	}
	for _, idx := range remaining {
		if idx == prev || idx == cur || idx == next {
			continue
		}
		if pointInTriangle(polygon[idx], a, b, c) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c math.Vec2) bool {
	d1 := b.Sub(a).Cross(p.Sub(a))
	d2 := c.Sub(b).Cross(p.Sub(b))
	d3 := a.Sub(c).Cross(p.Sub(c))
	return d1 >= 0 && d2 >= 0 && d3 >= 0
}

// FromPolygon triangulates a 2D boundary polygon and lays it flat on the
// horizontal plane: the polygon's (x, y) becomes (x, 0, y) with normals
// facing +Y.
func FromPolygon(polygon []math.Vec2) (*Geometry, error) {
	tris, err := Triangulate(polygon)
	if err != nil {
		return nil, err
	}

	positions := make([]float32, 0, len(polygon)*3)
	for _, p := range polygon {
		positions = append(positions, p.X, p.Y, 0)
	}

	// Triangles are emitted clockwise in XY so that the +90 degree turn
	// about X leaves them facing up.
	indices := make([]uint32, 0, len(tris))
	for i := 0; i+2 < len(tris); i += 3 {
		indices = append(indices, tris[i], tris[i+2], tris[i+1])
	}

	g := FromBuffers(positions, indices)
	g.ApplyMatrix(math.RotateX(gomath.Pi / 2))
	return g, nil
}

// ContainsXZ reports whether the point (x, z) lies inside any triangle of g
// projected onto the XZ plane.
func (g *Geometry) ContainsXZ(x, z float32) bool {
	p := math.Vec2{X: x, Y: z}
	for i := 0; i+2 < len(g.Indices); i += 3 {
		a := g.Vertex(int(g.Indices[i])).XZ()
		b := g.Vertex(int(g.Indices[i+1])).XZ()
		c := g.Vertex(int(g.Indices[i+2])).XZ()
		if math.PolygonArea([]math.Vec2{a, b, c}) < 0 {
			b, c = c, b
		}
		if pointInTriangle(p, a, b, c) {
			return true
		}
	}
	return false
}
