package simulator

import (
	gomath "math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

func bigFloor(t *testing.T) *world.TrackedPlane {
	t.Helper()
	p, err := world.NewTrackedPlane(&world.SyntheticPlane{
		Type:     "floor",
		Rotation: math.QuatIdentity(),
		Polygon:  []math.Vec2{{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5}},
	})
	require.NoError(t, err)
	return p
}

// lookingDown is a camera 1.5m above the origin facing the floor.
func lookingDown() Camera {
	return Camera{
		Pose: world.Pose{
			Position:    math.Vec3{Y: 1.5},
			Orientation: math.QuatFromAxisAngle(math.Vec3{X: 1}, -gomath.Pi/2),
		},
		FovY:   gomath.Pi / 3,
		Width:  8,
		Height: 6,
	}
}

func TestRenderFloatDepthOfFloor(t *testing.T) {
	src := &DepthSource{Encoding: depth.EncodingFloat32}
	frame := src.Render(lookingDown(), []*world.TrackedPlane{bigFloor(t)}, time.Now())

	c := depth.New(depth.Options{Encoding: depth.EncodingFloat32})
	require.NoError(t, c.UpdateFromRawFrame(frame, 0))
	tex, err := c.Get(0)
	require.NoError(t, err)

	// the floor is perpendicular to the view axis, so every pixel reads the
	// same view-space depth
	for _, px := range [][2]int{{0, 0}, {4, 3}, {7, 5}} {
		d, ok := tex.DepthAt(px[0], px[1])
		require.True(t, ok)
		assert.InDelta(t, 1.5, d, 1e-4)
	}
}

func TestRenderPackedDepth(t *testing.T) {
	src := &DepthSource{Encoding: depth.EncodingLuminanceAlpha, RawValueToMeters: 0.001}
	frame := src.Render(lookingDown(), []*world.TrackedPlane{bigFloor(t)}, time.Now())
	require.Len(t, frame.Data, 8*6*2)

	c := depth.New(depth.Options{Encoding: depth.EncodingLuminanceAlpha})
	require.NoError(t, c.UpdateFromRawFrame(frame, 1))
	tex, err := c.Get(1)
	require.NoError(t, err)

	d, ok := tex.DepthAt(3, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.5, d, 0.001)
}

func TestRenderMissReadsZero(t *testing.T) {
	cam := lookingDown()
	cam.Pose.Orientation = math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi/2)

	src := &DepthSource{Encoding: depth.EncodingFloat32}
	frame := src.Render(cam, []*world.TrackedPlane{bigFloor(t)}, time.Now())

	for _, b := range frame.Data {
		require.Zero(t, b)
	}
}

func TestRenderNearestPlaneWins(t *testing.T) {
	table, err := world.NewTrackedPlane(&world.SyntheticPlane{
		Type:     "table",
		Position: math.Vec3{Y: 0.5},
		Rotation: math.QuatIdentity(),
		Polygon:  []math.Vec2{{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5}},
	})
	require.NoError(t, err)

	src := &DepthSource{Encoding: depth.EncodingFloat32}
	frame := src.Render(lookingDown(), []*world.TrackedPlane{bigFloor(t), table}, time.Now())

	c := depth.New(depth.Options{Encoding: depth.EncodingFloat32})
	require.NoError(t, c.UpdateFromRawFrame(frame, 0))
	tex, _ := c.Get(0)
	d, _ := tex.DepthAt(4, 3)
	assert.InDelta(t, 1.0, d, 1e-4)
}

func TestRenderMaxDepthClips(t *testing.T) {
	src := &DepthSource{Encoding: depth.EncodingFloat32, MaxDepth: 1}
	frame := src.Render(lookingDown(), []*world.TrackedPlane{bigFloor(t)}, time.Now())

	for _, b := range frame.Data {
		require.Zero(t, b)
	}
}
