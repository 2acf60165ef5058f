// Package config parses the optional YAML override file accepted by
// cmd/txrxecho, the same way the teacher's specification package parses
// Manifest files: a typed struct, a Parse entry point, and a Validate step
// that runs before the caller ever sees the result.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint describes one endpoint to open: its transport, role, and the
// filter chain to install on it. In cmd/txrxecho, each non-empty flag
// overrides the matching field; OpenTimeout and AutoReopen supply defaults
// for zero timing fields.
type Endpoint struct {
	Transport string `yaml:"transport"` // "udp" or "tcp"
	Role      string `yaml:"role"`      // "client" or "server" (tcp only; udp is peer-to-peer)

	LocalAddr  string `yaml:"local_addr"`
	RemoteAddr string `yaml:"remote_addr"`
	Addr       string `yaml:"addr"` // tcp dial/listen address

	Filters struct {
		Slip bool `yaml:"slip"`
	} `yaml:"filters"`

	OpenTimeoutSeconds float64 `yaml:"open_timeout_seconds"`
	AutoReopenSeconds  float64 `yaml:"auto_reopen_seconds"`
}

// Config is the top-level shape of a txrxecho configuration file.
type Config struct {
	Endpoint Endpoint `yaml:"endpoint"`
}

// OpenTimeout returns the configured open deadline, defaulting to 5s.
func (e Endpoint) OpenTimeout() time.Duration {
	if e.OpenTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.OpenTimeoutSeconds * float64(time.Second))
}

// AutoReopen returns the configured auto-reopen interval, or 0 if disabled.
func (e Endpoint) AutoReopen() time.Duration {
	if e.AutoReopenSeconds <= 0 {
		return 0
	}
	return time.Duration(e.AutoReopenSeconds * float64(time.Second))
}

// Validate rejects configurations txrxecho can't act on, normalizing
// Transport/Role to lowercase in place so callers can switch on them
// directly afterwards.
func (c *Config) Validate() error {
	c.Endpoint.Transport = strings.ToLower(c.Endpoint.Transport)
	c.Endpoint.Role = strings.ToLower(c.Endpoint.Role)

	switch c.Endpoint.Transport {
	case "udp":
		if c.Endpoint.LocalAddr == "" || c.Endpoint.RemoteAddr == "" {
			return fmt.Errorf("endpoint.transport=udp requires local_addr and remote_addr")
		}
	case "tcp":
		if c.Endpoint.Addr == "" {
			return fmt.Errorf("endpoint.transport=tcp requires addr")
		}
		switch c.Endpoint.Role {
		case "client", "server":
		default:
			return fmt.Errorf("endpoint.transport=tcp requires role: client or server, got %q", c.Endpoint.Role)
		}
	case "":
		return fmt.Errorf("endpoint.transport is required (udp or tcp)")
	default:
		return fmt.Errorf("unsupported endpoint.transport %q (supported: udp, tcp)", c.Endpoint.Transport)
	}
	return nil
}

// Parse decodes YAML config data and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ParseFile reads and parses a config file from disk.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return Parse(data)
}
