package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging and strict invariant checks")
	flagHeadless = flag.Bool("headless", false, "Run without a window")
	flagFrames   = flag.Int("frames", 0, "Number of frames to run")
	flagPlanes   = flag.String("planes", "", "Scene description file or URL")
	flagWidth    = flag.Int("width", 0, "Window width")
	flagHeight   = flag.Int("height", 0, "Window height")

	flagWriteConfig = flag.String("write-config", "", "Write the effective config to this path (\"user\" for the user config dir) and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigTarget returns where -write-config asked the effective config
// to be written, or "" when it was not given.
func WriteConfigTarget() string {
	return *flagWriteConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	if *flagHeadless {
		cfg.Window.Headless = true
	}
	if *flagFrames > 0 {
		cfg.Window.Frames = *flagFrames
	}
	if *flagPlanes != "" {
		cfg.Simulator.ScenePlanesPath = *flagPlanes
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
}
