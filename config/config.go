// Package config handles sessiond configuration from YAML files.
//
// Loading is an explicit parse-validate-default step producing typed
// structs; nothing downstream ever sees a raw map.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sessiond configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Nav     NavConfig     `yaml:"nav"`
	Audit   AuditConfig   `yaml:"audit"`
}

// BrowserConfig controls the per-session browser pool.
type BrowserConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxSessions int           `yaml:"max_sessions"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// BinPaths are tried first, in order, before the "chrome" and
	// "chromium" channels and the launcher default.
	BinPaths []string `yaml:"bin_paths"`

	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	Locale         string `yaml:"locale"`
	UserAgent      string `yaml:"user_agent"`

	Screencast ScreencastConfig `yaml:"screencast"`
}

// ScreencastConfig controls the CDP screencast stream.
type ScreencastConfig struct {
	Format        string `yaml:"format"` // jpeg | png
	Quality       int    `yaml:"quality"`
	MaxWidth      int    `yaml:"max_width"`
	MaxHeight     int    `yaml:"max_height"`
	EveryNthFrame int    `yaml:"every_nth_frame"`
	MaxFrames     int    `yaml:"max_frames"` // ring buffer capacity
}

// SandboxConfig controls the per-session container pool.
type SandboxConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Image         string        `yaml:"image"`
	Memory        string        `yaml:"memory"` // human string, e.g. "512MB"
	CPUs          float64       `yaml:"cpus"`
	ExecTimeout   time.Duration `yaml:"exec_timeout"`
	DiskSpace     string        `yaml:"disk_space"` // tmpfs scratch cap
	NetworkAccess bool          `yaml:"network_access"`

	// Endpoint overrides daemon discovery (e.g. "unix:///var/run/docker.sock").
	Endpoint string `yaml:"endpoint"`
}

// NavConfig controls the resilient navigation engine.
type NavConfig struct {
	ReaderFetchTimeout time.Duration `yaml:"reader_fetch_timeout"`
	MaxTrackedHosts    int           `yaml:"max_tracked_hosts"`
}

// AuditConfig controls the sqlite lifecycle-event log.
type AuditConfig struct {
	// Path of the audit database. Empty disables the audit sink.
	Path string `yaml:"path"`
}

// Load reads a YAML configuration file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with both pools enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.Browser.Enabled = true
	cfg.Sandbox.Enabled = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	b := &c.Browser
	if b.MaxSessions <= 0 {
		b.MaxSessions = 4
	}
	if b.IdleTimeout <= 0 {
		b.IdleTimeout = 10 * time.Minute
	}
	if b.ViewportWidth <= 0 {
		b.ViewportWidth = 1280
	}
	if b.ViewportHeight <= 0 {
		b.ViewportHeight = 800
	}
	if b.Locale == "" {
		b.Locale = "en-US"
	}

	sc := &b.Screencast
	if sc.Format == "" {
		sc.Format = "jpeg"
	}
	if sc.Quality <= 0 {
		sc.Quality = 70
	}
	if sc.MaxWidth <= 0 {
		sc.MaxWidth = 1280
	}
	if sc.MaxHeight <= 0 {
		sc.MaxHeight = 800
	}
	if sc.EveryNthFrame <= 0 {
		sc.EveryNthFrame = 2
	}
	if sc.MaxFrames <= 0 {
		sc.MaxFrames = 100
	}

	s := &c.Sandbox
	if s.Image == "" {
		s.Image = "sessiond-sandbox:latest"
	}
	if s.Memory == "" {
		s.Memory = "512MB"
	}
	if s.CPUs <= 0 {
		s.CPUs = 1.0
	}
	if s.ExecTimeout <= 0 {
		s.ExecTimeout = 2 * time.Minute
	}
	if s.DiskSpace == "" {
		s.DiskSpace = "1GB"
	}

	n := &c.Nav
	if n.ReaderFetchTimeout <= 0 {
		n.ReaderFetchTimeout = 8 * time.Second
	}
	if n.MaxTrackedHosts <= 0 {
		n.MaxTrackedHosts = 1024
	}
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	sc := c.Browser.Screencast
	if sc.Format != "jpeg" && sc.Format != "png" {
		return fmt.Errorf("config: screencast format must be jpeg or png, got %q", sc.Format)
	}
	if sc.Quality < 0 || sc.Quality > 100 {
		return fmt.Errorf("config: screencast quality must be 0-100, got %d", sc.Quality)
	}
	if c.Browser.MaxSessions > 64 {
		return fmt.Errorf("config: max_sessions %d exceeds hard cap 64", c.Browser.MaxSessions)
	}
	if c.Sandbox.CPUs > 16 {
		return fmt.Errorf("config: cpus %g exceeds hard cap 16", c.Sandbox.CPUs)
	}
	return nil
}
