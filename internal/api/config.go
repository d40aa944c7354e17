package api

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds connection parameters for the remote claim API.
type Config struct {
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`
	Token     string `toml:"token"`
	UserID    string `toml:"user_id"`
	UserEmail string `toml:"user_email"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL   string
	Timeout   string
	Token     string
	UserID    string
	UserEmail string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.UserID != "" {
		c.UserID = overlay.UserID
	}
	if overlay.UserEmail != "" {
		c.UserEmail = overlay.UserEmail
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000/api/v1"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.BaseURL, &c.BaseURL)
	set(env.Timeout, &c.Timeout)
	set(env.Token, &c.Token)
	set(env.UserID, &c.UserID)
	set(env.UserEmail, &c.UserEmail)
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https: %s", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url missing host: %s", c.BaseURL)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
