// Package config loads the runtime settings shared by every flowbench
// harness. Values come from built-in defaults, then an optional TOML
// file, then FLOWBENCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is read when no config path is given and the file exists
// in the working directory.
const DefaultFile = "flowbench.toml"

// EnvPrefix is the prefix of the environment overrides.
const EnvPrefix = "FLOWBENCH"

// Config holds runtime settings.
type Config struct {
	// BufferSize is the maximum number of items in one stream chunk.
	BufferSize int `toml:"buffer_size" envconfig:"BUFFER_SIZE"`
	// QueueSize is the number of chunks (or messages) an edge holds
	// before the producer blocks.
	QueueSize int    `toml:"queue_size" envconfig:"QUEUE_SIZE"`
	LogLevel  string `toml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BufferSize: 8192,
		QueueSize:  64,
		LogLevel:   "info",
	}
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path falls back to DefaultFile, which may be
// absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	required := path != ""
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)

	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings the runtime cannot work with.
func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}

	return level, nil
}
