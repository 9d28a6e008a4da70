// Package simulator feeds the world core from a static scene description
// instead of a live sensing device: synthetic planes, meshes derived from
// them and ray-cast depth frames.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// DefaultFetchTimeout bounds a single description fetch.
const DefaultFetchTimeout = 10 * time.Second

// Description errors.
var (
	ErrNoPlanes        = errors.New("description has no planes list")
	ErrMissingField    = errors.New("plane entry is missing a field")
	ErrShortPolygon    = errors.New("plane polygon needs at least 3 points")
	ErrBadQuaternion   = errors.New("plane quaternion needs 4 components")
	ErrUnexpectedReply = errors.New("unexpected response status")
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Log        *zap.Logger
}

// Loader reads a scene description and publishes its planes into a sink.
type Loader struct {
	sink    world.PlaneSink
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	published []*world.TrackedPlane

	// generation advances on every Reload; loads started under an older
	// generation stop publishing.
	generation uint64
}

// NewLoader creates a loader publishing into sink.
func NewLoader(sink world.PlaneSink, opts LoaderOptions) *Loader {
	l := &Loader{
		sink:    sink,
		client:  opts.HTTPClient,
		timeout: opts.Timeout,
		log:     opts.Log,
	}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.timeout <= 0 {
		l.timeout = DefaultFetchTimeout
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// Load fetches the description at location (an http(s) URL or a file path),
// shifts every plane by offset and publishes it. It returns the number of
// planes the sink accepted. Failures are logged, never returned: an
// unreachable or malformed description yields zero planes.
func (l *Loader) Load(ctx context.Context, location string, offset math.Vec3) int {
	log := l.log.With(zap.String("location", location))

	l.mu.Lock()
	gen := l.generation
	l.mu.Unlock()

	data, err := l.fetch(ctx, location)
	if err != nil {
		log.Warn("scene description unavailable", zap.Error(err))
		return 0
	}

	planes, errs := ParseDescription(data, offset)
	for _, err := range errs {
		log.Warn("skipping plane entry", zap.Error(err))
	}

	published := 0
	for _, sp := range planes {
		p, err := world.NewTrackedPlane(sp)
		if err != nil {
			log.Warn("skipping plane", zap.String("type", sp.Type), zap.Error(err))
			continue
		}
		if !l.current(gen) {
			p.Dispose()
			log.Debug("load superseded by reload", zap.Int("published", published))
			break
		}
		if !l.sink.AddPlane(p) {
			// scene is gone; the rest would be dropped too
			p.Dispose()
			log.Debug("scene closed during load", zap.Int("published", published))
			break
		}
		if !l.record(gen, p) {
			// a reload withdrew everything while this plane was in flight
			l.withdraw(p)
			log.Debug("load superseded by reload", zap.Int("published", published))
			break
		}
		published++
	}

	log.Info("scene description loaded",
		zap.Int("planes", published),
		zap.Int("skipped", len(errs)))
	return published
}

func (l *Loader) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation == gen
}

// record keeps p as published by the load of generation gen, unless a
// reload has started since.
func (l *Loader) record(gen uint64, p *world.TrackedPlane) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != gen {
		return false
	}
	l.published = append(l.published, p)
	return true
}

// LoadAsync runs Load on its own goroutine. The channel receives the
// published count and is then closed.
func (l *Loader) LoadAsync(ctx context.Context, location string, offset math.Vec3) <-chan int {
	done := make(chan int, 1)
	go func() {
		defer close(done)
		done <- l.Load(ctx, location, offset)
	}()
	return done
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(strings.TrimPrefix(location, "file://"))
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

type description struct {
	Planes []yaml.Node `yaml:"planes"`
}

type planeEntry struct {
	Type       *string     `yaml:"type"`
	Area       *float32    `yaml:"area"`
	Position   *vec3Entry  `yaml:"position"`
	Quaternion []float32   `yaml:"quaternion"`
	Polygon    []vec2Entry `yaml:"polygon"`
}

type vec3Entry struct {
	X *float32 `yaml:"x"`
	Y *float32 `yaml:"y"`
	Z *float32 `yaml:"z"`
}

type vec2Entry struct {
	X *float32 `yaml:"x"`
	Y *float32 `yaml:"y"`
}

// ParseDescription decodes a YAML or JSON scene description. Entries are
// decoded one by one so a bad entry costs only itself; its error is returned
// alongside the planes that did decode.
func ParseDescription(data []byte, offset math.Vec3) ([]*world.SyntheticPlane, []error) {
	var doc description
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{fmt.Errorf("decode description: %w", err)}
	}
	if doc.Planes == nil {
		return nil, []error{ErrNoPlanes}
	}

	var (
		planes []*world.SyntheticPlane
		errs   []error
	)
	for i := range doc.Planes {
		sp, err := parseEntry(&doc.Planes[i], offset)
		if err != nil {
			errs = append(errs, fmt.Errorf("plane %d: %w", i, err))
			continue
		}
		planes = append(planes, sp)
	}
	return planes, errs
}

func parseEntry(node *yaml.Node, offset math.Vec3) (*world.SyntheticPlane, error) {
	var e planeEntry
	if err := node.Decode(&e); err != nil {
		return nil, err
	}

	switch {
	case e.Type == nil:
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	case e.Area == nil:
		return nil, fmt.Errorf("%w: area", ErrMissingField)
	case e.Position == nil || e.Position.X == nil || e.Position.Y == nil || e.Position.Z == nil:
		return nil, fmt.Errorf("%w: position", ErrMissingField)
	case e.Quaternion == nil:
		return nil, fmt.Errorf("%w: quaternion", ErrMissingField)
	case len(e.Quaternion) != 4:
		return nil, ErrBadQuaternion
	case len(e.Polygon) < 3:
		return nil, ErrShortPolygon
	}

	polygon := make([]math.Vec2, len(e.Polygon))
	for i, pt := range e.Polygon {
		if pt.X == nil || pt.Y == nil {
			return nil, fmt.Errorf("%w: polygon[%d]", ErrMissingField, i)
		}
		polygon[i] = math.Vec2{X: *pt.X, Y: *pt.Y}
	}

	pos := math.Vec3{X: *e.Position.X, Y: *e.Position.Y, Z: *e.Position.Z}
	return &world.SyntheticPlane{
		Type:     *e.Type,
		Area:     *e.Area,
		Position: pos.Add(offset),
		Rotation: math.QuatFromArray([4]float32(e.Quaternion)).Normalize(),
		Polygon:  polygon,
	}, nil
}
