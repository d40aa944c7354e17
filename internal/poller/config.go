package poller

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultPollIntervalMs is the poll period used when none is configured.
const DefaultPollIntervalMs = 10000

// Config holds synchronization engine settings.
type Config struct {
	PollIntervalMs int `toml:"poll_interval_ms"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	PollIntervalMs string
}

// Interval returns the poll period. A nil or unfinalized config yields the
// default period.
func (c *Config) Interval() time.Duration {
	if c == nil || c.PollIntervalMs <= 0 {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.PollIntervalMs != 0 {
		c.PollIntervalMs = overlay.PollIntervalMs
	}
}

func (c *Config) loadDefaults() {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.PollIntervalMs == "" {
		return nil
	}
	if v := os.Getenv(env.PollIntervalMs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env.PollIntervalMs, err)
		}
		c.PollIntervalMs = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.PollIntervalMs < 100 {
		return fmt.Errorf("poll_interval_ms must be at least 100, got %d", c.PollIntervalMs)
	}
	return nil
}
