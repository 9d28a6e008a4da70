// Package main is the entry point for the world-sensing simulator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-xr/internal/config"
	"github.com/Faultbox/midgard-xr/internal/engine/gpu"
	"github.com/Faultbox/midgard-xr/internal/engine/window"
	"github.com/Faultbox/midgard-xr/internal/logger"
	"github.com/Faultbox/midgard-xr/internal/session"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if target := config.WriteConfigTarget(); target != "" {
		path, err := cfg.Write(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
		fileCfg.JSON = cfg.Logging.JSON
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard XR Simulator ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Window.Headless {
		err = runHeadless(ctx, cfg)
	} else {
		err = runWindowed(ctx, cfg)
	}
	if err != nil {
		logger.Error("simulator error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("simulator closed normally")
}

func runHeadless(ctx context.Context, cfg *config.Config) error {
	s, err := session.New(cfg, session.Options{})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	if err := s.Run(ctx, cfg.Window.Frames, nil); err != nil {
		return err
	}
	s.Wait()
	report(s)
	return nil
}

func runWindowed(ctx context.Context, cfg *config.Config) error {
	// Window first: the GL context must exist before any GL call
	win, err := window.New(window.Config{
		Title:      "Midgard XR",
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer win.Close()

	if err := gpu.Init(); err != nil {
		return err
	}

	platform := gpu.NewPlatformTextures()
	defer platform.Release()

	s, err := session.New(cfg, session.Options{Native: platform})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	uploader := gpu.NewDepthUploader()
	defer uploader.Release()

	preview, err := gpu.NewDepthPreview()
	if err != nil {
		return err
	}
	defer preview.Release()
	preview.RawValueToMeters = cfg.Depth.RawValueToMeters

	present := func() bool {
		if !win.PollEvents() {
			return false
		}
		gpu.BeginFrame(win.GetSize())
		if d := s.Depth(); d != nil {
			views := d.Views()
			for i, view := range views {
				if tex, err := d.Get(view); err == nil {
					preview.Draw(tex, uploader.Upload(tex), i, len(views))
				}
			}
		}
		win.SwapBuffers()
		return true
	}

	if err := s.Run(ctx, cfg.Window.Frames, present); err != nil {
		return err
	}
	s.Wait()
	report(s)
	return nil
}

func report(s *session.Session) {
	fields := []zap.Field{
		zap.Int("frames", s.Frame()),
		zap.Int("meshes", len(s.Registry().Meshes())),
		zap.Int("planes", len(s.Registry().Planes())),
	}
	if p := s.Physics(); p != nil {
		fields = append(fields,
			zap.Bool("physics_attached", s.Meshes().PhysicsActive()),
			zap.Int("colliders", p.ColliderCount()))
	}
	if d := s.Depth(); d != nil {
		for _, view := range d.Views() {
			st := d.Stats(view)
			fields = append(fields, zap.Dict(fmt.Sprintf("depth_view_%d", view),
				zap.Int("allocations", st.Allocations),
				zap.Int("updates", st.Updates),
				zap.Int("rejected", st.Rejected)))
		}
	}
	logger.Info("session summary", fields...)
}
