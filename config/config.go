// Package config holds parley's runtime configuration: where content lives,
// where saves go, logging, and the metrics endpoint.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nathoo/parley/observe"
)

// Save backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config is the top-level configuration.
type Config struct {
	// Content is the directory holding .lua and .yaml content files.
	Content string        `yaml:"content" env:"PARLEY_CONTENT"`
	Save    SaveConfig    `yaml:"save"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SaveConfig selects where player state is persisted.
type SaveConfig struct {
	Backend string `yaml:"backend" env:"PARLEY_SAVE_BACKEND"`
	// Path is a directory for the file backend and a database file for sqlite.
	Path string `yaml:"path" env:"PARLEY_SAVE_PATH"`
	Slot string `yaml:"slot" env:"PARLEY_SAVE_SLOT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"PARLEY_LOG_LEVEL"`
	Format string `yaml:"format" env:"PARLEY_LOG_FORMAT"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"PARLEY_METRICS_ADDR"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Content: ".",
		Save: SaveConfig{
			Backend: BackendFile,
			Path:    "saves",
			Slot:    "autosave",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Content) == "" {
		errs = append(errs, errors.New("content is required"))
	}

	backends := []string{BackendFile, BackendSQLite, BackendNone}
	if !slices.Contains(backends, cfg.Save.Backend) {
		errs = append(errs, fmt.Errorf("save.backend %q is invalid; valid values: %s",
			cfg.Save.Backend, strings.Join(backends, ", ")))
	}
	if cfg.Save.Backend != BackendNone {
		if strings.TrimSpace(cfg.Save.Path) == "" {
			errs = append(errs, errors.New("save.path is required"))
		}
		if strings.TrimSpace(cfg.Save.Slot) == "" {
			errs = append(errs, errors.New("save.slot is required"))
		}
	}

	if _, err := observe.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	return errors.Join(errs...)
}
