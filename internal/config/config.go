// Package config handles simulator configuration loading and management.
package config

import (
	"fmt"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	// Debug turns invariant violations into panics.
	Debug     bool            `yaml:"debug"`
	Sensing   SensingConfig   `yaml:"sensing"`
	Depth     DepthConfig     `yaml:"depth"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Window    WindowConfig    `yaml:"window"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SensingConfig selects where world data comes from and which capabilities
// are tracked.
type SensingConfig struct {
	Source string `yaml:"source"` // "device" or "simulator"
	Meshes bool   `yaml:"meshes"`
	Planes bool   `yaml:"planes"`
}

// DepthConfig holds depth sensing settings.
type DepthConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Encoding         string  `yaml:"encoding"`    // "float32" or "luminance_alpha"
	UpdatePath       string  `yaml:"update_path"` // "cpu" or "native"
	Views            int     `yaml:"views"`
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	RawValueToMeters float32 `yaml:"raw_value_to_meters"`
}

// SimulatorConfig holds synthetic world settings.
type SimulatorConfig struct {
	ScenePlanesPath      string        `yaml:"scene_planes_path"` // file path or http(s) URL
	InitialScenePosition [3]float32    `yaml:"initial_scene_position"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	// MeshRefreshFrames bumps synthetic mesh versions every N frames.
	MeshRefreshFrames int `yaml:"mesh_refresh_frames"`
	// Watch reloads a file description whenever it changes on disk.
	Watch bool `yaml:"watch"`
}

// PhysicsConfig holds physics settings.
type PhysicsConfig struct {
	Enabled bool `yaml:"enabled"`
	// AttachDelayFrames is how many frames pass before the physics world
	// becomes available, the way an engine finishes loading late.
	AttachDelayFrames int `yaml:"attach_delay_frames"`
	MaxColliders      int `yaml:"max_colliders"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	Headless   bool `yaml:"headless"`
	// Frames bounds the run; zero runs until the window closes. Headless
	// runs always need a bound.
	Frames int `yaml:"frames"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Sensing: SensingConfig{
			Source: "simulator",
			Meshes: true,
			Planes: true,
		},
		Depth: DepthConfig{
			Enabled:          true,
			Encoding:         "float32",
			UpdatePath:       "cpu",
			Views:            1,
			Width:            160,
			Height:           90,
			RawValueToMeters: 0.001,
		},
		Simulator: SimulatorConfig{
			ScenePlanesPath: "scenes/room.yaml",
			FetchTimeout:    10 * time.Second,
		},
		Physics: PhysicsConfig{
			Enabled:           true,
			AttachDelayFrames: 30,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
			Frames: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports the first setting that cannot be acted on.
func (c *Config) Validate() error {
	switch c.Sensing.Source {
	case "device", "simulator":
	default:
		return fmt.Errorf("sensing.source: unknown source %q", c.Sensing.Source)
	}
	if c.Depth.Enabled {
		switch c.Depth.Encoding {
		case "float32", "luminance_alpha":
		default:
			return fmt.Errorf("depth.encoding: unknown encoding %q", c.Depth.Encoding)
		}
		switch c.Depth.UpdatePath {
		case "cpu", "native":
		default:
			return fmt.Errorf("depth.update_path: unknown path %q", c.Depth.UpdatePath)
		}
		if c.Depth.Views < 1 || c.Depth.Width < 1 || c.Depth.Height < 1 {
			return fmt.Errorf("depth: views and dimensions must be positive")
		}
	}
	if c.Window.Headless && c.Window.Frames <= 0 {
		return fmt.Errorf("window.frames: headless runs need a positive frame count")
	}
	if c.Physics.AttachDelayFrames < 0 {
		return fmt.Errorf("physics.attach_delay_frames: must not be negative")
	}
	return nil
}
