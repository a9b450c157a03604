// Package config handles configuration loading and validation for holdpoint.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "30m", "24h".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the application configuration.
type Config struct {
	Server      ServerConfig `yaml:"server"`
	Review      ReviewConfig `yaml:"review"`
	GitPath     string       `yaml:"git_path"`
	OpenCommand string       `yaml:"open_command"` // overrides the platform browser opener
	DataDir     string       `yaml:"-"`            // set by caller, not from config file
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PortAttempts is how many successive ports to try when Port is taken.
	PortAttempts int `yaml:"port_attempts"`
	// OpenBrowser controls opening the review URL on session creation.
	// nil means enabled.
	OpenBrowser *bool `yaml:"open_browser"`
	EventBuffer int   `yaml:"event_buffer"`
}

// OpenBrowserEnabled reports whether the browser opener should run.
func (s ServerConfig) OpenBrowserEnabled() bool {
	return s.OpenBrowser == nil || *s.OpenBrowser
}

// ReviewConfig holds session lifecycle settings.
type ReviewConfig struct {
	// SessionTimeout auto-cancels a review left without a decision.
	// Zero disables the timer.
	SessionTimeout Duration `yaml:"session_timeout"`
	// CleanupMaxAge is how long terminal sessions are retained.
	CleanupMaxAge Duration `yaml:"cleanup_max_age"`
	// CleanupInterval is how often the sweeper runs.
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         4477,
			PortAttempts: 10,
			EventBuffer:  64,
		},
		Review: ReviewConfig{
			SessionTimeout:  Duration(30 * time.Minute),
			CleanupMaxAge:   Duration(24 * time.Hour),
			CleanupInterval: Duration(5 * time.Minute),
		},
		GitPath: "git",
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the
// provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.PortAttempts == 0 {
		c.Server.PortAttempts = def.Server.PortAttempts
	}
	if c.Server.EventBuffer == 0 {
		c.Server.EventBuffer = def.Server.EventBuffer
	}
	if c.Review.CleanupMaxAge == 0 {
		c.Review.CleanupMaxAge = def.Review.CleanupMaxAge
	}
	if c.Review.CleanupInterval == 0 {
		c.Review.CleanupInterval = def.Review.CleanupInterval
	}
	if c.GitPath == "" {
		c.GitPath = def.GitPath
	}
}
