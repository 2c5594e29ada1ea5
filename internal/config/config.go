package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTokenURL is the authorization server token endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultAPIBaseURL is the API that issued tokens authorize.
	DefaultAPIBaseURL = "https://api.spotify.com/v1"

	DefaultStaleMarginSeconds    = 60
	DefaultRequestTimeoutSeconds = 30

	CacheFile   = "file"
	CacheMemory = "memory"
)

// Config holds the CLI configuration.
type Config struct {
	TokenURL              string `yaml:"token_url"`
	APIBaseURL            string `yaml:"api_base_url"`
	StaleMarginSeconds    int    `yaml:"stale_margin_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	Cache                 string `yaml:"cache"`
	CacheDir              string `yaml:"cache_dir,omitempty"`
}

// DefaultConfig returns a configuration with every field at its default.
func DefaultConfig() *Config {
	return &Config{
		TokenURL:              DefaultTokenURL,
		APIBaseURL:            DefaultAPIBaseURL,
		StaleMarginSeconds:    DefaultStaleMarginSeconds,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		Cache:                 CacheFile,
	}
}

// StaleMargin returns the staleness margin as a duration.
func (c *Config) StaleMargin() time.Duration {
	return time.Duration(c.StaleMarginSeconds) * time.Second
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ResolvedCacheDir returns CacheDir, or the default directory when unset.
func (c *Config) ResolvedCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return CacheDir()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"token_url": c.TokenURL, "api_base_url": c.APIBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	if c.StaleMarginSeconds < 0 {
		return fmt.Errorf("stale_margin_seconds must not be negative, got %d", c.StaleMarginSeconds)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.Cache != CacheFile && c.Cache != CacheMemory {
		return fmt.Errorf("cache must be %q or %q, got %q", CacheFile, CacheMemory, c.Cache)
	}
	return nil
}

// Load reads the configuration at path. A missing file yields the defaults,
// and fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path with 0600 permissions, creating parent
// directories with 0700 permissions.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// ConfigDir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/tokenctl.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tokenctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokenctl")
}

// ConfigPath returns the path to the configuration file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// CacheDir returns the default token cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/tokenctl.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tokenctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "tokenctl")
}
