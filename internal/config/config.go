// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds framebridge configuration.
type Config struct {
	// Runtime peer: connect to RUNTIME_HOST:RUSTADDR for each round trip.
	RuntimePort int    `envconfig:"RUSTADDR" default:"5555"`
	RuntimeHost string `envconfig:"RUNTIME_HOST" default:"127.0.0.1"`

	// Timeouts
	CallTimeout time.Duration `envconfig:"BRIDGE_CALL_TIMEOUT" default:"10s"`
	DialTimeout time.Duration `envconfig:"BRIDGE_DIAL_TIMEOUT" default:"5s"`
	WorkerYield time.Duration `envconfig:"BRIDGE_WORKER_YIELD" default:"10ms"`

	// Correlation id ring size; bounds simultaneously outstanding requests.
	MaxPending int `envconfig:"BRIDGE_MAX_PENDING" default:"255"`

	// SyncPool bounds concurrently running synchronous command handlers.
	SyncPool int `envconfig:"BRIDGE_SYNC_POOL" default:"4"`

	// HTTP health endpoint
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// RuntimeAddr returns the runtime peer address in host:port form.
func (c *Config) RuntimeAddr() string {
	return net.JoinHostPort(c.RuntimeHost, strconv.Itoa(c.RuntimePort))
}

// ValidateForServe checks required config when running the bridge.
func (c *Config) ValidateForServe() error {
	if c.RuntimePort <= 0 || c.RuntimePort > 65535 {
		return fmt.Errorf("%s - RUSTADDR must be a valid TCP port, got %d", logPrefix, c.RuntimePort)
	}
	if c.RuntimeHost == "" {
		return fmt.Errorf("%s - RUNTIME_HOST must not be empty", logPrefix)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s - BRIDGE_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%s - BRIDGE_DIAL_TIMEOUT must be positive", logPrefix)
	}
	if c.WorkerYield <= 0 {
		return fmt.Errorf("%s - BRIDGE_WORKER_YIELD must be positive", logPrefix)
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("%s - BRIDGE_MAX_PENDING must be positive", logPrefix)
	}
	if c.SyncPool <= 0 {
		return fmt.Errorf("%s - BRIDGE_SYNC_POOL must be positive", logPrefix)
	}
	return nil
}
