package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds runtime settings for the taskkeeper CLI.
//
// Fields:
//   - ServerURL: base URL of the REST API, e.g. http://127.0.0.1:5000.
//   - SessionFile: where the session token is kept between runs.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	SessionFile    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:5000"
	c.SessionFile = ".taskkeeper/session.json"
	c.RequestTimeout = 10 * time.Second
}

// Validate checks that the server URL is absolute.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server url %q must be absolute, e.g. http://host:port", c.ServerURL)
	}
	if c.SessionFile == "" {
		return fmt.Errorf("session file must not be empty")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
