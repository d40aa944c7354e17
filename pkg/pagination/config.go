// Package pagination provides skip/limit paging for the claim list
// endpoint.
package pagination

import (
	"fmt"
	"os"
	"strconv"
)

// The claim list answers at most ServerMaxLimit claims per request and
// DefaultLimit when no limit is sent.
const (
	DefaultLimit   = 100
	ServerMaxLimit = 500
)

// Config bounds the limit sent with outgoing list requests.
type Config struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// ConfigEnv maps environment variable names for pagination configuration.
type ConfigEnv struct {
	DefaultLimit string
	MaxLimit     string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge applies non-zero values from the overlay configuration.
func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultLimit != 0 {
		c.DefaultLimit = overlay.DefaultLimit
	}
	if overlay.MaxLimit != 0 {
		c.MaxLimit = overlay.MaxLimit
	}
}

func (c *Config) loadDefaults() {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = ServerMaxLimit
	}
}

func (c *Config) loadEnv(env *ConfigEnv) error {
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{env.DefaultLimit, &c.DefaultLimit},
		{env.MaxLimit, &c.MaxLimit},
	} {
		if v.name == "" {
			continue
		}
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
		*v.dst = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.MaxLimit < 1 || c.MaxLimit > ServerMaxLimit {
		return fmt.Errorf("max_limit must be between 1 and %d claims per request, got %d", ServerMaxLimit, c.MaxLimit)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default_limit must be between 1 and max_limit (%d), got %d", c.MaxLimit, c.DefaultLimit)
	}
	return nil
}
