// Package config defines runtime configuration for cpudetect.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// DefaultPort is the port the diagnostic server listens on.
const DefaultPort = 9273

// Config holds all settings passed in via CLI flags or environment variables.
type Config struct {
	// Output selects how results are printed: text, json or yaml.
	Output string

	// From is a capture file to replay instead of querying the host
	// processor. Empty means the host.
	From string

	// PerCPU enables per-processor hybrid classification, which pins a
	// thread to every processor in turn.
	PerCPU bool

	// LogLevel is debug, info, warn or error. Empty falls back to LOG_LEVEL.
	LogLevel string

	// Host is the network interface to bind the HTTP server to.
	Host string

	// Port is the HTTP server port.
	Port int
}

// Validate checks the fields that flags cannot constrain on their own.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output) {
	case OutputText, OutputJSON, OutputYAML:
		c.Output = strings.ToLower(c.Output)
	default:
		return fmt.Errorf("invalid output format %q: want text, json or yaml", c.Output)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EnvOrDefault returns the value of an env var, or fallback if unset.
func EnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
