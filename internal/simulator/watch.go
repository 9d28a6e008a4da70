package simulator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

// reloadDebounce coalesces the bursts of events editors emit per save.
const reloadDebounce = 100 * time.Millisecond

type planeRemover interface {
	RemovePlane(p *world.TrackedPlane) bool
}

// Reload withdraws every plane this loader published and loads location
// again. Withdrawing needs a sink that can remove planes, such as a
// *world.Registry; other sinks only receive the new planes. Withdrawn planes
// are not disposed since the frame loop may still be reading them.
func (l *Loader) Reload(ctx context.Context, location string, offset math.Vec3) int {
	l.mu.Lock()
	l.generation++
	old := l.published
	l.published = nil
	l.mu.Unlock()

	for _, p := range old {
		l.withdraw(p)
	}
	return l.Load(ctx, location, offset)
}

func (l *Loader) withdraw(p *world.TrackedPlane) {
	if remover, ok := l.sink.(planeRemover); ok {
		remover.RemovePlane(p)
	}
}

// Watch reloads the description file at path whenever it changes, until ctx
// is done. The watch is in place when Watch returns; the returned channel is
// closed once watching stops.
func (l *Loader) Watch(ctx context.Context, path string, offset math.Vec3) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Watch the directory: editors often replace the file by renaming.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	target := filepath.Clean(path)
	log := l.log.With(zap.String("location", path))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer w.Close()

		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				fire = time.After(reloadDebounce)
			case <-fire:
				fire = nil
				n := l.Reload(ctx, path, offset)
				log.Info("scene description reloaded", zap.Int("planes", n))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("scene watch error", zap.Error(err))
			}
		}
	}()

	log.Debug("watching scene description")
	return done, nil
}
