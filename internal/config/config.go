// Package config loads engine settings from YAML.
//
// Example:
//
//	version: 1
//	workers: 8
//	poll_interval: 250ms
//	poll_rate: 20
//	poll_burst: 5
//	max_nodes: 5000
//	database: ./actionplan.db
//	log_level: debug
//	tracing:
//	  enabled: true
//	  exporter: otlp
//	  endpoint: localhost:4318
//
// Absent keys keep their defaults. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/tracing"
)

// CurrentVersion is the only config schema version understood.
const CurrentVersion = 1

// Config holds engine settings.
type Config struct {
	Version int `yaml:"version"`

	// Workers bounds concurrent run phases and polls.
	Workers int `yaml:"workers"`

	// PollInterval is the default delay between polls of a suspended task.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollRate caps polls per second across all plans. 0 means unlimited.
	PollRate float64 `yaml:"poll_rate"`

	// PollBurst is how many polls may exceed PollRate at once.
	PollBurst int `yaml:"poll_burst"`

	// MaxNodes caps the actions a single plan may hold. 0 means unlimited.
	MaxNodes int `yaml:"max_nodes"`

	// Database is the SQLite journal path. Empty disables journaling.
	Database string `yaml:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Tracing exports plan spans. Disabled by default.
	Tracing tracing.Config `yaml:"tracing"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Version:      CurrentVersion,
		Workers:      engine.DefaultWorkers,
		PollInterval: engine.DefaultPollInterval,
		MaxNodes:     engine.DefaultMaxNodes,
		PollBurst:    1,
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Version != CurrentVersion:
		return fmt.Errorf("unsupported config version %d (want %d)", c.Version, CurrentVersion)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	case c.PollRate < 0:
		return fmt.Errorf("poll_rate must not be negative, got %g", c.PollRate)
	case c.PollBurst < 1:
		return fmt.Errorf("poll_burst must be at least 1, got %d", c.PollBurst)
	case c.MaxNodes < 0:
		return fmt.Errorf("max_nodes must not be negative, got %d", c.MaxNodes)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return c.Tracing.Validate()
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// Options converts the settings to engine options. Observers are appended
// after the config-derived options.
func (c Config) Options(observers ...engine.Observer) []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithWorkers(c.Workers),
		engine.WithPollInterval(c.PollInterval),
		engine.WithMaxNodes(c.MaxNodes),
	}
	if c.PollRate > 0 {
		opts = append(opts, engine.WithPollRate(c.PollRate, c.PollBurst))
	}
	for _, o := range observers {
		opts = append(opts, engine.WithObserver(o))
	}
	return opts
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}
