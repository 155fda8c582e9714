// Package config loads runtime configuration for the V1 client from
// environment variables: transport selection, remote and detect
// addresses, the local host byte, log level, the diagnostics spool
// directory, and the admin HTTP listen address.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Transport selects which transport.Pair the client dials over.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
	TransportWS  Transport = "ws"
)

// Config holds every knob the runtime needs at startup.
type Config struct {
	Transport  Transport
	RemoteAddr string
	BindAddr   string
	DetectAddr string
	Host       byte

	LogLevel string

	DiagnosticsDir string

	AdminListenAddr string

	TunablesPath string
}

func (c *Config) applyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportUDP
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DiagnosticsDir == "" {
		c.DiagnosticsDir = "diagnostics"
	}
	if c.AdminListenAddr == "" {
		c.AdminListenAddr = ":8090"
	}
}

// Load reads configuration from the environment, applies defaults, and
// validates the result, aggregating every problem found rather than
// failing on the first one.
func Load() (*Config, error) {
	c := &Config{
		Transport:       Transport(os.Getenv("V1_TRANSPORT")),
		RemoteAddr:      os.Getenv("V1_REMOTE_ADDR"),
		BindAddr:        os.Getenv("V1_BIND_ADDR"),
		DetectAddr:      os.Getenv("V1_DETECT_ADDR"),
		LogLevel:        os.Getenv("V1_LOG_LEVEL"),
		DiagnosticsDir:  os.Getenv("V1_DIAGNOSTICS_DIR"),
		AdminListenAddr: os.Getenv("V1_ADMIN_ADDR"),
		TunablesPath:    os.Getenv("V1_TUNABLES_PATH"),
	}

	if hostStr := os.Getenv("V1_HOST"); hostStr != "" {
		n, err := strconv.ParseUint(hostStr, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("config: V1_HOST: %w", err)
		}
		c.Host = byte(n)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var problems []error

	switch c.Transport {
	case TransportTCP, TransportUDP, TransportWS:
	default:
		problems = append(problems, fmt.Errorf("config: V1_TRANSPORT must be one of tcp, udp, ws, got %q", c.Transport))
	}

	if c.RemoteAddr == "" {
		problems = append(problems, errors.New("config: V1_REMOTE_ADDR is required"))
	}

	return errors.Join(problems...)
}
