// Package config loads the YAML-backed Options a DB is opened with.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Options configures a DB at open time. The zero value is the engine's
// default behavior: info-level logging to stderr-style output suppressed
// (Nop logger) and no instance id override.
type Options struct {
	// LogLevel names a zerolog level ("debug", "info", "warn", "error",
	// "disabled"). Empty means Nop (no logging overhead).
	LogLevel string `yaml:"log_level"`

	// InstanceID, if non-empty, pins the database file's diagnostic
	// instance id instead of leaving the random one stamped at file
	// creation (spec §6.1's `instance_id`, surfaced via SHOW STATS).
	// Useful for reproducible fixtures in tests.
	InstanceID string `yaml:"instance_id"`
}

// LoadOptionsFile reads and parses a YAML options file.
func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &opts, nil
}

// Logger builds the zerolog.Logger this Options describes.
func (o *Options) Logger() zerolog.Logger {
	if o == nil || o.LogLevel == "" {
		return zerolog.Nop()
	}
	level, err := zerolog.ParseLevel(o.LogLevel)
	if err != nil {
		return zerolog.Nop()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
