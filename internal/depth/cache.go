package depth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
)

var (
	// ErrUnknownView is returned by Get for a view that was never updated.
	ErrUnknownView = errors.New("unknown depth view")
	// ErrWrongUpdatePath is returned when a cache configured for one update
	// path is fed through the other.
	ErrWrongUpdatePath = errors.New("depth update path mismatch")
)

// Renderer rebinds a cache texture to a platform GPU texture.
type Renderer interface {
	BindNativeTexture(tex *Texture, ref NativeRef)
}

// Stats counts cache activity for one view.
type Stats struct {
	Allocations int
	Updates     int
	Rejected    int
}

// Options configures a Cache.
type Options struct {
	Encoding Encoding
	Path     UpdatePath
	// Strict panics on misuse instead of returning an error.
	Strict bool
	Log    *zap.Logger
}

type view struct {
	tex   *Texture
	frame *Frame
	stats Stats
}

// Cache holds the depth texture of every view. It is owned by the frame
// loop and is not safe for concurrent use.
type Cache struct {
	opts  Options
	log   *zap.Logger
	views map[int]*view
}

// New creates an empty cache.
func New(opts Options) *Cache {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		opts:  opts,
		log:   log,
		views: make(map[int]*view),
	}
}

// Encoding returns the configured encoding.
func (c *Cache) Encoding() Encoding {
	return c.opts.Encoding
}

// Path returns the configured update path.
func (c *Cache) Path() UpdatePath {
	return c.opts.Path
}

// UpdateFromRawFrame copies frame into the texture of viewID. The backing
// buffer is reallocated only for a new view or a change of dimensions.
// A frame whose payload does not match its declared size is logged and
// ignored, leaving the previous contents in place.
func (c *Cache) UpdateFromRawFrame(frame *Frame, viewID int) error {
	if c.opts.Path != PathCPU {
		return c.fail(fmt.Errorf("%w: raw frame on %s cache", ErrWrongUpdatePath, c.opts.Path))
	}

	v := c.view(viewID)
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != frame.expectedLen(c.opts.Encoding) {
		v.stats.Rejected++
		fields := []zap.Field{zap.Int("view", viewID), zap.Stringer("encoding", c.opts.Encoding)}
		if frame != nil {
			fields = append(fields,
				zap.Int("width", frame.Width),
				zap.Int("height", frame.Height),
				zap.Int("bytes", len(frame.Data)),
			)
		}
		c.log.Warn("rejecting depth frame", fields...)
		return nil
	}

	tex := v.tex
	if tex == nil || tex.Width != frame.Width || tex.Height != frame.Height {
		tex = c.allocate(viewID, frame.Width, frame.Height, tex)
		v.tex = tex
		v.stats.Allocations++
		c.log.Debug("allocated depth texture",
			zap.Int("view", viewID),
			zap.Int("width", frame.Width),
			zap.Int("height", frame.Height),
			zap.Uint64("generation", tex.generation),
		)
	}

	switch c.opts.Encoding {
	case EncodingFloat32:
		for i := range tex.Float32 {
			tex.Float32[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame.Data[i*4:]))
		}
	default:
		copy(tex.Bytes, frame.Data)
	}
	tex.RawValueToMeters = frame.RawValueToMeters
	tex.needsUpdate = true
	tex.version++

	v.frame = frame
	v.stats.Updates++
	return nil
}

func (c *Cache) allocate(viewID, width, height int, prev *Texture) *Texture {
	tex := &Texture{
		ViewID:   viewID,
		Width:    width,
		Height:   height,
		Encoding: c.opts.Encoding,
	}
	if prev != nil {
		tex.generation = prev.generation
		tex.version = prev.version
	}
	tex.generation++

	switch c.opts.Encoding {
	case EncodingFloat32:
		tex.Float32 = make([]float32, width*height)
	default:
		tex.Bytes = make([]byte, width*height*2)
	}
	return tex
}

// UpdateFromNativeHandle points the texture of viewID at a platform GPU
// texture and asks r to rebind it.
func (c *Cache) UpdateFromNativeHandle(ref NativeRef, r Renderer, viewID int) error {
	if c.opts.Path != PathNative {
		return c.fail(fmt.Errorf("%w: native texture on %s cache", ErrWrongUpdatePath, c.opts.Path))
	}

	v := c.view(viewID)
	if v.tex == nil {
		v.tex = &Texture{ViewID: viewID, Encoding: c.opts.Encoding, isNative: true, generation: 1}
		v.stats.Allocations++
	}
	v.tex.Native = ref
	v.tex.version++
	v.stats.Updates++
	if r != nil {
		r.BindNativeTexture(v.tex, ref)
	}
	return nil
}

// Get returns the texture of viewID, whichever path filled it.
func (c *Cache) Get(viewID int) (*Texture, error) {
	v, ok := c.views[viewID]
	if !ok || v.tex == nil {
		return nil, c.fail(fmt.Errorf("%w: %d", ErrUnknownView, viewID))
	}
	return v.tex, nil
}

// RawFrame returns the last accepted raw frame of viewID, undecoded.
func (c *Cache) RawFrame(viewID int) (*Frame, error) {
	v, ok := c.views[viewID]
	if !ok || v.frame == nil {
		return nil, c.fail(fmt.Errorf("%w: %d", ErrUnknownView, viewID))
	}
	return v.frame, nil
}

// Has reports whether viewID has a texture.
func (c *Cache) Has(viewID int) bool {
	v, ok := c.views[viewID]
	return ok && v.tex != nil
}

// Stats returns the counters of viewID.
func (c *Cache) Stats(viewID int) Stats {
	if v, ok := c.views[viewID]; ok {
		return v.stats
	}
	return Stats{}
}

// Views returns the IDs of all views with a texture, in ascending order.
func (c *Cache) Views() []int {
	ids := make([]int, 0, len(c.views))
	for id, v := range c.views {
		if v.tex != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (c *Cache) view(viewID int) *view {
	v, ok := c.views[viewID]
	if !ok {
		v = &view{}
		c.views[viewID] = v
	}
	return v
}

func (c *Cache) fail(err error) error {
	c.log.Error("depth cache misuse", zap.Error(err))
	if c.opts.Strict {
		panic(err)
	}
	return err
}
