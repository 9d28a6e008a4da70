package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserTarget selects the user's config directory as the destination of Write.
const UserTarget = "user"

// Write saves the effective config to target, which is either a file path or
// UserTarget. It returns the path written.
func (c *Config) Write(target string) (string, error) {
	if target == UserTarget {
		return c.Save()
	}
	return target, c.SaveTo(target)
}

// Save writes the config to config.yaml in the user's config directory, where
// Load finds it on the next run, and returns that path.
func (c *Config) Save() (string, error) {
	path := filepath.Join(ConfigDir(), "config.yaml")
	return path, c.SaveTo(path)
}

// SaveTo writes the config to path. An invalid config is refused so that a
// saved file always loads.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
