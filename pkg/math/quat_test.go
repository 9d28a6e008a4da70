package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}

	// Degenerate input falls back to identity
	if z := (Quat{}).Normalize(); z != QuatIdentity() {
		t.Errorf("zero quaternion should normalize to identity, got %v", z)
	}
}

func TestQuatToMat4(t *testing.T) {
	// Identity quaternion should produce identity matrix
	q := QuatIdentity()
	m := q.ToMat4()

	identity := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(float64(m[i]-identity[i])) > 0.0001 {
			t.Errorf("Identity quat should produce identity matrix, element %d: got %v, want %v", i, m[i], identity[i])
		}
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// 90 degrees around Y axis
	q := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	// Should have Y component and W = cos(45deg)
	expectedW := float32(math.Cos(math.Pi / 4))
	expectedY := float32(math.Sin(math.Pi / 4))

	if math.Abs(float64(q.W-expectedW)) > 0.001 {
		t.Errorf("QuatFromAxisAngle W: expected %v, got %v", expectedW, q.W)
	}
	if math.Abs(float64(q.Y-expectedY)) > 0.001 {
		t.Errorf("QuatFromAxisAngle Y: expected %v, got %v", expectedY, q.Y)
	}
}

func TestQuatRotateMatchesMatrix(t *testing.T) {
	tests := []struct {
		name  string
		axis  Vec3
		angle float32
		v     Vec3
	}{
		{"y90", Vec3{0, 1, 0}, math.Pi / 2, Vec3{1, 0, 0}},
		{"x90", Vec3{1, 0, 0}, math.Pi / 2, Vec3{0, 0, 1}},
		{"z45", Vec3{0, 0, 1}, math.Pi / 4, Vec3{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := QuatFromAxisAngle(tt.axis, tt.angle)
			got := q.Rotate(tt.v)
			want := q.ToMat4().TransformVec3(tt.v)
			if got.Distance(want) > 0.0001 {
				t.Errorf("Rotate = %v, matrix = %v", got, want)
			}
		})
	}
}

func TestQuatConjugateUndoesRotation(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 1, 0}.Normalize(), 1.2)
	v := Vec3{0.3, -2, 5}
	back := q.Conjugate().Rotate(q.Rotate(v))
	if back.Distance(v) > 0.0001 {
		t.Errorf("conjugate rotation: got %v, want %v", back, v)
	}
}

func TestQuatMulComposes(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{0, 1, 0}, math.Pi/2)
	b := QuatFromAxisAngle(Vec3{1, 0, 0}, math.Pi/2)
	v := Vec3{0, 0, 1}

	got := a.Mul(b).Rotate(v)
	want := a.Rotate(b.Rotate(v))
	if got.Distance(want) > 0.0001 {
		t.Errorf("Mul: got %v, want %v", got, want)
	}
}
