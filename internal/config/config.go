package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/poller"
	"github.com/JaimeStill/claimsync/pkg/pagination"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvClaimsyncEnv       = "CLAIMSYNC_ENV"
	EnvClaimsyncLogLevel  = "CLAIMSYNC_LOG_LEVEL"
	EnvClaimsyncLogFormat = "CLAIMSYNC_LOG_FORMAT"
)

var clientEnv = &api.Env{
	BaseURL:   "CLAIMSYNC_CLIENT_BASE_URL",
	Timeout:   "CLAIMSYNC_CLIENT_TIMEOUT",
	Token:     "CLAIMSYNC_CLIENT_TOKEN",
	UserID:    "CLAIMSYNC_CLIENT_USER_ID",
	UserEmail: "CLAIMSYNC_CLIENT_USER_EMAIL",
}

var syncEnv = &poller.Env{
	PollIntervalMs: "CLAIMSYNC_SYNC_POLL_INTERVAL_MS",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultLimit: "CLAIMSYNC_PAGINATION_DEFAULT_LIMIT",
	MaxLimit:     "CLAIMSYNC_PAGINATION_MAX_LIMIT",
}

// Config is the root configuration for claimsync.
type Config struct {
	Client     api.Config        `toml:"client"`
	Sync       poller.Config     `toml:"sync"`
	Pagination pagination.Config `toml:"pagination"`
	LogLevel   string            `toml:"log_level"`
	LogFormat  string            `toml:"log_format"`
}

// Env returns the CLAIMSYNC_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvClaimsyncEnv); env != "" {
		return env
	}
	return "local"
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	l.UnmarshalText([]byte(c.LogLevel))
	return l
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base file. The overlay is looked up
// next to it.
func LoadFile(base string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(base); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		c.LogFormat = overlay.LogFormat
	}
	c.Client.Merge(&overlay.Client)
	c.Sync.Merge(&overlay.Sync)
	c.Pagination.Merge(&overlay.Pagination)
}

// Finalize applies defaults, environment overrides, and validation to the
// root and every sub-config.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Client.Finalize(clientEnv); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Sync.Finalize(syncEnv); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvClaimsyncLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvClaimsyncLogFormat); v != "" {
		c.LogFormat = v
	}
}

func (c *Config) validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json: %s", c.LogFormat)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	env := os.Getenv(EnvClaimsyncEnv)
	if env == "" {
		return ""
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
