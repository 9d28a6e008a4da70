package simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

func newLoader(t *testing.T) (*Loader, *world.Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	reg := world.NewRegistry(nil)
	return NewLoader(reg, LoaderOptions{Log: zap.New(core)}), reg, logs
}

func TestLoadFileAppliesOffset(t *testing.T) {
	l, reg, _ := newLoader(t)

	n := l.Load(context.Background(), filepath.Join("testdata", "room.yaml"), math.Vec3{X: 1})
	require.Equal(t, 2, n)

	planes := reg.Planes()
	require.Len(t, planes, 2)

	floor, wall := planes[0], planes[1]
	assert.Equal(t, "floor", floor.Label())
	assert.Equal(t, math.Vec3{X: 1, Y: 0, Z: 0}, floor.Pose().Position)
	assert.Equal(t, world.OrientationHorizontal, floor.Orientation())

	assert.Equal(t, "wall", wall.Label())
	assert.Equal(t, math.Vec3{X: 1, Y: 1.25, Z: -2}, wall.Pose().Position)
	assert.Equal(t, world.OrientationVertical, wall.Orientation())

	sp, ok := floor.Synthetic()
	require.True(t, ok)
	assert.Equal(t, float32(16), sp.Area)
	assert.Len(t, sp.Polygon, 4)
	assert.Equal(t, 2, floor.Geometry().TriangleCount())
}

func TestLoadMissingFilePublishesNothing(t *testing.T) {
	l, reg, logs := newLoader(t)

	n := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), math.Vec3{})

	assert.Zero(t, n)
	assert.Empty(t, reg.Planes())
	assert.Equal(t, 1, logs.FilterMessage("scene description unavailable").Len())
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	l, reg, logs := newLoader(t)

	n := l.Load(context.Background(), filepath.Join("testdata", "partial.yaml"), math.Vec3{})

	assert.Equal(t, 1, n)
	require.Len(t, reg.Planes(), 1)
	assert.Equal(t, "table", reg.Planes()[0].Label())
	assert.Equal(t, 3, logs.FilterMessage("skipping plane entry").Len())
}

func TestLoadGarbagePublishesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planes: [unterminated"), 0o644))

	l, reg, _ := newLoader(t)
	assert.Zero(t, l.Load(context.Background(), path, math.Vec3{}))
	assert.Empty(t, reg.Planes())
}

const jsonScene = `{
  "planes": [
    {
      "type": "horizontal",
      "area": 1,
      "position": {"x": 0, "y": 0.5, "z": 0},
      "quaternion": [0, 0, 0, 1],
      "polygon": [{"x": 0, "y": 0}, {"x": 1, "y": 0}, {"x": 0, "y": 1}]
    }
  ]
}`

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scene.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jsonScene))
	}))
	defer srv.Close()

	l, reg, _ := newLoader(t)

	n := l.Load(context.Background(), srv.URL+"/scene.json", math.Vec3{Z: -1})
	require.Equal(t, 1, n)
	assert.Equal(t, math.Vec3{X: 0, Y: 0.5, Z: -1}, reg.Planes()[0].Pose().Position)
	assert.Equal(t, world.OrientationHorizontal, reg.Planes()[0].Orientation())

	assert.Zero(t, l.Load(context.Background(), srv.URL+"/missing.json", math.Vec3{}))
	assert.Len(t, reg.Planes(), 1)
}

func TestLoadUnreachableURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	l, reg, _ := newLoader(t)
	assert.Zero(t, l.Load(context.Background(), url+"/scene.yaml", math.Vec3{}))
	assert.Empty(t, reg.Planes())
}

func TestLoadAfterCloseIsDropped(t *testing.T) {
	l, reg, _ := newLoader(t)
	reg.Close()

	n := l.Load(context.Background(), filepath.Join("testdata", "room.yaml"), math.Vec3{})

	assert.Zero(t, n)
	assert.Empty(t, reg.Planes())
}

func TestLoadAsync(t *testing.T) {
	l, reg, _ := newLoader(t)

	done := l.LoadAsync(context.Background(), filepath.Join("testdata", "room.yaml"), math.Vec3{})

	select {
	case n := <-done:
		assert.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("load did not finish")
	}
	assert.Len(t, reg.Planes(), 2)

	_, open := <-done
	assert.False(t, open)
}

func TestParseDescriptionWithoutPlanes(t *testing.T) {
	planes, errs := ParseDescription([]byte("name: empty room\n"), math.Vec3{})

	assert.Empty(t, planes)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoPlanes)
}

func TestParseDescriptionFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  error
	}{
		{"no type", `{area: 1, position: {x: 0, y: 0, z: 0}, quaternion: [0, 0, 0, 1], polygon: [{x: 0, y: 0}, {x: 1, y: 0}, {x: 0, y: 1}]}`, ErrMissingField},
		{"partial position", `{type: floor, area: 1, position: {x: 0, y: 0}, quaternion: [0, 0, 0, 1], polygon: [{x: 0, y: 0}, {x: 1, y: 0}, {x: 0, y: 1}]}`, ErrMissingField},
		{"short quaternion", `{type: floor, area: 1, position: {x: 0, y: 0, z: 0}, quaternion: [0, 0, 1], polygon: [{x: 0, y: 0}, {x: 1, y: 0}, {x: 0, y: 1}]}`, ErrBadQuaternion},
		{"short polygon", `{type: floor, area: 1, position: {x: 0, y: 0, z: 0}, quaternion: [0, 0, 0, 1], polygon: [{x: 0, y: 0}]}`, ErrShortPolygon},
		{"polygon point without y", `{type: floor, area: 1, position: {x: 0, y: 0, z: 0}, quaternion: [0, 0, 0, 1], polygon: [{x: 0, y: 0}, {x: 1}, {x: 0, y: 1}]}`, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planes, errs := ParseDescription([]byte("planes:\n  - "+tt.entry+"\n"), math.Vec3{})
			assert.Empty(t, planes)
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tt.want)
		})
	}
}
