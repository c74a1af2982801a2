// Package config handles fern.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is a fern.toml runtime configuration.
type Config struct {
	Repl   Repl   `toml:"repl"`
	Image  Image  `toml:"image"`
	Limits Limits `toml:"limits"`

	// Dir is the directory containing the fern.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Repl configures the interactive front-end.
type Repl struct {
	History string `toml:"history"`
	Trace   bool   `toml:"trace"`
}

// Image configures compiled image output.
type Image struct {
	Output string `toml:"output"`
}

// Limits bounds the evaluator.
type Limits struct {
	// EvalSlice is the instruction count executed per eval slice; the
	// embedder's preemption granularity.
	EvalSlice uint32 `toml:"eval-slice"`
}

// Default returns the configuration used when no fern.toml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.Repl.History == "" {
		c.Repl.History = ".fern_history"
	}
	if c.Image.Output == "" {
		c.Image.Output = "fern.image"
	}
	if c.Limits.EvalSlice == 0 {
		c.Limits.EvalSlice = 1024
	}
}

// Load parses a fern.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "fern.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	cfg.fillDefaults()
	return &cfg, nil
}

// FindAndLoad walks up from startDir to find a fern.toml file, then
// loads it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "fern.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// reached root
			return Default(), nil
		}
		dir = parent
	}
}

// HistoryPath returns the REPL history file path, anchored at the
// config directory when one was found.
func (c *Config) HistoryPath() string {
	if c.Dir == "" || filepath.IsAbs(c.Repl.History) {
		return c.Repl.History
	}
	return filepath.Join(c.Dir, c.Repl.History)
}
