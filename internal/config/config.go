// Package config loads runner configuration from .attest.yaml with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the run root.
const DefaultFile = ".attest.yaml"

// Config holds all attest configuration.
type Config struct {
	// Assert selects the assertion mode: rewrite, reinterp or plain.
	Assert string `yaml:"assert"`

	// Verbose is the default verbosity; the -v flag adds to it.
	Verbose int `yaml:"verbose"`

	// CacheDir is where transformed artifacts are persisted.
	// Defaults to <root>/.attest-cache.
	CacheDir string `yaml:"cache_dir"`

	// Exclude lists script basename globs that must never be rewritten.
	Exclude []string `yaml:"exclude"`

	// Rewrite lists extra script names (beyond the test_ convention) to
	// rewrite on load.
	Rewrite []string `yaml:"rewrite"`

	// Store is the run-history database path. Empty disables recording.
	Store string `yaml:"store"`

	// WatchDebounce bounds how often a changed script triggers a rerun.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Default returns the built-in configuration for a run rooted at root.
func Default(root string) Config {
	return Config{
		Assert:        "rewrite",
		CacheDir:      filepath.Join(root, ".attest-cache"),
		WatchDebounce: 500 * time.Millisecond,
	}
}

// Load reads <root>/.attest.yaml over the defaults. A missing file is fine;
// a malformed one is an error. Environment overrides apply last.
func Load(root string) (Config, error) {
	cfg := Default(root)

	data, err := os.ReadFile(filepath.Join(root, DefaultFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("ATTEST_ASSERT"); mode != "" {
		c.Assert = mode
	}
	if dir := os.Getenv("ATTEST_CACHE_DIR"); dir != "" {
		c.CacheDir = dir
	}
	if path := os.Getenv("ATTEST_STORE"); path != "" {
		c.Store = path
	}
}
