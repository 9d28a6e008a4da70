// Package session runs the world-sensing frame loop: it pulls one snapshot
// per frame from a sensing feed, reconciles it into the registry and keeps
// the depth cache current.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-xr/internal/config"
	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/logger"
	"github.com/Faultbox/midgard-xr/internal/physics"
	"github.com/Faultbox/midgard-xr/internal/simulator"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// Session errors.
var (
	ErrNoDevice       = errors.New("no sensing device available in this build")
	ErrNoNativeSource = errors.New("native depth path needs a native texture source")
)

// Feed is one frame's worth of sensing data.
type Feed interface {
	MeshSnapshot(frame int) []*world.RawMesh
	PlaneSnapshot(frame int) []*world.RawPlane
	DepthFrame(frame, view int) *depth.Frame
}

// NativeSource turns a depth frame into a GPU texture the way a platform
// hands out native depth. It stands in for the device on the native path.
type NativeSource interface {
	depth.Renderer
	Texture(view int, frame *depth.Frame) (depth.NativeRef, error)
}

// Options configures a Session beyond what the config file covers.
type Options struct {
	// Feed overrides the sensing source chosen by the config.
	Feed       Feed
	Native     NativeSource
	HTTPClient *http.Client
	Log        *zap.Logger
}

// Session owns the world state of one run.
type Session struct {
	cfg *config.Config
	log *zap.Logger

	registry *world.Registry
	meshes   *world.MeshTracker
	planes   *world.PlaneTracker
	depth    *depth.Cache
	physics  *physics.World
	loader   *simulator.Loader
	feed     Feed
	native   NativeSource

	frame    int
	loaded   <-chan int
	attached chan int
	wg       sync.WaitGroup
	closed   bool

	stopWatch func()
	watching  <-chan struct{}
}

// New builds a session from cfg.
func New(cfg *config.Config, opts Options) (*Session, error) {
	log := opts.Log
	if log == nil {
		log = logger.Named("session")
	}

	s := &Session{
		cfg:      cfg,
		log:      log,
		registry: world.NewRegistry(log.Named("registry")),
		native:   opts.Native,
		attached: make(chan int, 1),
	}

	trackerOpts := world.TrackerOptions{Log: log.Named("tracker"), Strict: cfg.Debug}
	s.meshes = world.NewMeshTracker(s.registry, trackerOpts)
	s.planes = world.NewPlaneTracker(s.registry, trackerOpts)

	if cfg.Depth.Enabled {
		enc, err := depth.ParseEncoding(cfg.Depth.Encoding)
		if err != nil {
			return nil, err
		}
		path, err := depth.ParseUpdatePath(cfg.Depth.UpdatePath)
		if err != nil {
			return nil, err
		}
		if path == depth.PathNative && s.native == nil {
			return nil, ErrNoNativeSource
		}
		s.depth = depth.New(depth.Options{
			Encoding: enc,
			Path:     path,
			Strict:   cfg.Debug,
			Log:      log.Named("depth"),
		})
	}

	if cfg.Physics.Enabled {
		s.physics = physics.New(physics.Config{
			MaxColliders: cfg.Physics.MaxColliders,
			Log:          log.Named("physics"),
		})
	}

	s.feed = opts.Feed
	if s.feed == nil {
		if cfg.Sensing.Source != "simulator" {
			return nil, fmt.Errorf("%w: source %q", ErrNoDevice, cfg.Sensing.Source)
		}
		s.feed = s.simulatedFeed()
	}
	if cfg.Sensing.Source == "simulator" {
		s.loader = simulator.NewLoader(s.registry, simulator.LoaderOptions{
			HTTPClient: opts.HTTPClient,
			Timeout:    cfg.Simulator.FetchTimeout,
			Log:        log.Named("loader"),
		})
	}

	return s, nil
}

func (s *Session) simulatedFeed() *simulator.Feed {
	var meshes *simulator.MeshSource
	if s.cfg.Sensing.Meshes {
		meshes = simulator.NewMeshSource(s.cfg.Simulator.MeshRefreshFrames)
	}

	var src *simulator.DepthSource
	if s.depth != nil {
		src = &simulator.DepthSource{
			Encoding:         s.depth.Encoding(),
			RawValueToMeters: s.cfg.Depth.RawValueToMeters,
		}
	}

	rig := simulator.DefaultRig(s.cfg.Depth.Width, s.cfg.Depth.Height)
	rig.Center = math.Vec3FromArray(s.cfg.Simulator.InitialScenePosition)
	return simulator.NewFeed(s.registry, meshes, src, rig)
}

// Start begins loading the scene description in the background and, when
// configured, watches a description file for changes.
func (s *Session) Start(ctx context.Context) {
	path := s.cfg.Simulator.ScenePlanesPath
	if s.loader == nil || path == "" {
		return
	}
	offset := math.Vec3FromArray(s.cfg.Simulator.InitialScenePosition)
	s.loaded = s.loader.LoadAsync(ctx, path, offset)

	if !s.cfg.Simulator.Watch || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done, err := s.loader.Watch(ctx, strings.TrimPrefix(path, "file://"), offset)
	if err != nil {
		cancel()
		s.log.Warn("scene watch unavailable", zap.Error(err))
		return
	}
	s.stopWatch = cancel
	s.watching = done
}

// Step advances one frame.
func (s *Session) Step() error {
	if s.closed {
		return nil
	}
	s.collect()

	if s.physics != nil && s.frame == s.cfg.Physics.AttachDelayFrames {
		s.attachPhysics()
	}

	var errs []error
	if s.cfg.Sensing.Meshes {
		if err := s.meshes.Reconcile(s.feed.MeshSnapshot(s.frame)); err != nil {
			errs = append(errs, fmt.Errorf("meshes: %w", err))
		}
	}
	if s.cfg.Sensing.Planes {
		if err := s.planes.Reconcile(s.feed.PlaneSnapshot(s.frame)); err != nil {
			errs = append(errs, fmt.Errorf("planes: %w", err))
		}
	}
	if s.depth != nil {
		for view := 0; view < s.cfg.Depth.Views; view++ {
			if err := s.updateDepth(view); err != nil {
				errs = append(errs, fmt.Errorf("depth view %d: %w", view, err))
			}
		}
	}

	s.frame++
	return errors.Join(errs...)
}

func (s *Session) updateDepth(view int) error {
	frame := s.feed.DepthFrame(s.frame, view)
	if frame == nil {
		return nil
	}
	if s.depth.Path() == depth.PathCPU {
		return s.depth.UpdateFromRawFrame(frame, view)
	}
	ref, err := s.native.Texture(view, frame)
	if err != nil {
		return err
	}
	return s.depth.UpdateFromNativeHandle(ref, s.native, view)
}

// attachPhysics hands the physics world to the mesh tracker from another
// goroutine, the way an engine reports readiness off the frame loop.
func (s *Session) attachPhysics() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		n := s.meshes.AttachPhysics(s.physics)
		s.attached <- n
	}()
}

// collect drains background results without blocking.
func (s *Session) collect() {
	select {
	case n, ok := <-s.loaded:
		if ok {
			s.log.Info("scene ready", zap.Int("planes", n), zap.Int("frame", s.frame))
		}
		s.loaded = nil
	default:
	}
	select {
	case n := <-s.attached:
		s.log.Info("physics attached", zap.Int("colliders", n), zap.Int("frame", s.frame))
	default:
	}
}

// Run steps until ctx is done, frames have elapsed (when positive), or
// present returns false. present is called after every step and may be nil.
func (s *Session) Run(ctx context.Context, frames int, present func() bool) error {
	s.Start(ctx)

	fpsTimer := time.Now()
	count := 0
	for frames <= 0 || s.frame < frames {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := s.Step(); err != nil {
			s.log.Warn("frame update failed", zap.Int("frame", s.frame-1), zap.Error(err))
		}
		if present != nil && !present() {
			break
		}

		count++
		if time.Since(fpsTimer) >= time.Second {
			s.log.Debug("fps", zap.Int("count", count))
			count = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// Wait blocks until background work started by the session has finished.
func (s *Session) Wait() {
	s.wg.Wait()
	if s.loaded != nil {
		if n, ok := <-s.loaded; ok {
			s.log.Info("scene ready", zap.Int("planes", n), zap.Int("frame", s.frame))
		}
		s.loaded = nil
	}
	s.collect()
}

// Close tears the scene down. Planes still loading are dropped.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stopWatch != nil {
		s.stopWatch()
		<-s.watching
	}
	s.wg.Wait()

	s.registry.Close()
	for _, m := range s.registry.Meshes() {
		m.Dispose()
		if body, ok := m.Body(); ok && s.physics != nil {
			s.physics.RemoveBody(body)
		}
	}
	for _, p := range s.registry.Planes() {
		p.Dispose()
	}
	s.log.Info("session closed", zap.Int("frames", s.frame))
}

// Frame returns the number of completed frames.
func (s *Session) Frame() int { return s.frame }

// Registry returns the world registry.
func (s *Session) Registry() *world.Registry { return s.registry }

// Meshes returns the mesh tracker.
func (s *Session) Meshes() *world.MeshTracker { return s.meshes }

// Planes returns the plane tracker.
func (s *Session) Planes() *world.PlaneTracker { return s.planes }

// Depth returns the depth cache, or nil when depth sensing is off.
func (s *Session) Depth() *depth.Cache { return s.depth }

// Physics returns the physics world, or nil when physics is off.
func (s *Session) Physics() *physics.World { return s.physics }
