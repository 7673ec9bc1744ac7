package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen         = "127.0.0.1:8080"
	DefaultRefresh        = "@every 1s"
	DefaultIdentityHeader = "Cf-Access-Authenticated-User-Email"
	DefaultLanguage       = "en"
	DefaultCaptureCron    = "*/5 * * * *"
)

// AuthConfig controls how the signed-in user is identified. The header is
// expected to be set by a trusted reverse proxy.
type AuthConfig struct {
	Header string `yaml:"header" json:"header"`
	// DevBypassEmail is used when the header is absent. Leave empty in
	// production.
	DevBypassEmail string `yaml:"dev_bypass_email,omitempty" json:"dev_bypass_email,omitempty"`
}

// StoreConfig describes the per-user key/value store.
type StoreConfig struct {
	// Path of the SQLite database. Empty keeps everything in memory.
	Path            string `yaml:"path" json:"path"`
	CacheSize       int    `yaml:"cache_size" json:"cache_size"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
}

// CaptureConfig enables periodic PNG screenshots of the dashboard.
type CaptureConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`
	// URL defaults to the local dashboard when empty.
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	Output string `yaml:"output" json:"output"`
	// FrameOutput receives packed black/red planes for an e-paper panel.
	FrameOutput string `yaml:"frame_output,omitempty" json:"frame_output,omitempty"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose calendar defines day/week/month
	// boundaries. Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the snapshot rebuild schedule. Seconds are optional;
	// descriptors such as "@every 1s" are accepted.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Language selects UI labels ("en", "ko").
	Language string `yaml:"language" json:"language"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Auth    AuthConfig    `yaml:"auth" json:"auth"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		RefreshCron: DefaultRefresh,
		Language:    DefaultLanguage,
		LogLevel:    "info",
		LogFormat:   "text",
		Auth: AuthConfig{
			Header: DefaultIdentityHeader,
		},
		Store: StoreConfig{
			Path:            "/var/lib/timeprogress/kv.db",
			CacheSize:       1024,
			CacheTTLSeconds: 300,
		},
		Capture: CaptureConfig{
			Cron:   DefaultCaptureCron,
			Output: "/var/lib/timeprogress/dashboard.png",
			Width:  800,
			Height: 480,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = d.LogFormat
	}
	if c.Auth.Header == "" {
		c.Auth.Header = d.Auth.Header
	}
	if c.Store.CacheSize <= 0 {
		c.Store.CacheSize = d.Store.CacheSize
	}
	if c.Store.CacheTTLSeconds <= 0 {
		c.Store.CacheTTLSeconds = d.Store.CacheTTLSeconds
	}
	if c.Capture.Cron == "" {
		c.Capture.Cron = d.Capture.Cron
	}
	if c.Capture.Output == "" {
		c.Capture.Output = d.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
		}
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if c.Capture.Enabled {
		if _, err := parser.Parse(c.Capture.Cron); err != nil {
			errs = append(errs, fmt.Errorf("capture.cron %q: %w", c.Capture.Cron, err))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CacheTTL is Store.CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Store.CacheTTLSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Still hand back the defaults so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timeprogress-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
