// ABOUTME: Console configuration stored at XDG paths with .env and environment overrides
// ABOUTME: Also builds the shared charm logger from the configured level and destination
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/harperreed/devicedrop/db"
	"github.com/harperreed/devicedrop/models"
)

const (
	AppName        = "devicedrop"
	ConfigFileName = "config.json"
	EnvPrefix      = "DEVICEDROP_"

	BackendHTTP  = "http"
	BackendLocal = "local"
)

// Config holds everything the console needs to reach its data.
type Config struct {
	// Backend is "http" for the remote admin API or "local" for the SQLite file.
	Backend string `json:"backend"`

	APIURL       string `json:"api_url,omitempty"`
	Token        string `json:"token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`

	DBPath string `json:"db_path,omitempty"`

	PageSize          int           `json:"page_size"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	Timeout           time.Duration `json:"timeout"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`

	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`

	// PrefsSync stores saved filters in charm KV instead of only locally.
	PrefsSync bool `json:"prefs_sync"`

	path string
}

// Default returns a config for the local backend with sensible defaults.
func Default() *Config {
	return &Config{
		Backend:           BackendLocal,
		DBPath:            db.DefaultPath(),
		PageSize:          models.DefaultPageSize,
		RequestsPerSecond: 10,
		Burst:             5,
		Timeout:           15 * time.Second,
		LogLevel:          "info",
		CacheSize:         512,
		CacheTTL:          30 * time.Minute,
	}
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, AppName, ConfigFileName)
}

// LogPath returns the default log file used while the TUI owns the terminal.
func LogPath() string {
	return filepath.Join(xdg.StateHome, AppName, AppName+".log")
}

// Load reads path (or the default path when empty), then applies a .env file
// from the working directory and DEVICEDROP_* variables. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.PageSize > models.MaxPageSize {
		c.PageSize = models.MaxPageSize
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
}

func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("BACKEND", &cfg.Backend)
	str("API_URL", &cfg.APIURL)
	str("TOKEN", &cfg.Token)
	str("CLIENT_ID", &cfg.ClientID)
	str("CLIENT_SECRET", &cfg.ClientSecret)
	str("TOKEN_URL", &cfg.TokenURL)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	ints := map[string]*int{
		"PAGE_SIZE":  &cfg.PageSize,
		"BURST":      &cfg.Burst,
		"CACHE_SIZE": &cfg.CacheSize,
	}
	for name, dst := range ints {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":   &cfg.Timeout,
		"CACHE_TTL": &cfg.CacheTTL,
	}
	for name, dst := range durations {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sREQUESTS_PER_SECOND: %w", EnvPrefix, err)
		}
		cfg.RequestsPerSecond = f
	}
	if v := os.Getenv(EnvPrefix + "PREFS_SYNC"); v != "" {
		cfg.PrefsSync = v == "true" || v == "1"
	}
	return nil
}

// Validate checks that the selected backend is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DBPath == "" {
			return errors.New("db_path is required for the local backend")
		}
	case BackendHTTP:
		if c.APIURL == "" {
			return errors.New("api_url is required for the http backend (set DEVICEDROP_API_URL or api_url in the config file)")
		}
	default:
		return fmt.Errorf("unknown backend %q (valid: %s, %s)", c.Backend, BackendHTTP, BackendLocal)
	}
	return nil
}

// Save writes the config with owner-only permissions.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FilePath is where Save writes.
func (c *Config) FilePath() string {
	if c.path == "" {
		return Path()
	}
	return c.path
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.Token = mask(out.Token)
	out.ClientSecret = mask(out.ClientSecret)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
