// Package config loads and validates proxy configuration from a YAML or
// TOML file, with environment variables as overrides and as a file-less
// fallback for container deployments.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/keymux/keymux/internal/health"
	"github.com/keymux/keymux/internal/keypool"
)

// Defaults applied by normalize.
const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8080
	DefaultMaxBodyBytes        = 10 << 20
	DefaultReadHeaderTimeoutMS = 10_000
	DefaultShutdownTimeoutMS   = 15_000
)

// Config is the full proxy configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Upstream UpstreamConfig `yaml:"upstream" toml:"upstream"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig configures the listener and the gateway-facing surface.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0.
	Host string `yaml:"host" toml:"host"`

	// Port is the listen port. Default: 8080.
	Port int `yaml:"port" toml:"port"`

	// GatewayKey is the shared secret clients present to the proxy.
	GatewayKey string `yaml:"gateway_key" toml:"gateway_key"`

	// EnableH2C serves HTTP/2 over cleartext for gRPC-style clients behind
	// a TLS-terminating load balancer.
	EnableH2C bool `yaml:"enable_h2c" toml:"enable_h2c"`

	// MaxConcurrent caps in-flight proxied requests (0 = unlimited).
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent"`

	// MaxBodyBytes caps buffered request bodies. Default: 10 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`

	// ReadHeaderTimeoutMS bounds header reads on inbound connections.
	ReadHeaderTimeoutMS int `yaml:"read_header_timeout_ms" toml:"read_header_timeout_ms"`

	// ShutdownTimeoutMS bounds graceful drain on shutdown.
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms"`
}

// Addr returns the host:port bind address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadHeaderTimeout returns the header read timeout as a duration.
func (c *ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.ReadHeaderTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful drain bound as a duration.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// UpstreamConfig configures the backend API and the key pool.
type UpstreamConfig struct {
	// BaseURL is the upstream API root, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// Keys are the pooled upstream credentials.
	Keys []keypool.KeyConfig `yaml:"keys" toml:"keys"`

	// Backoff is the cooldown schedule for rate-limited keys that arrive
	// without a Retry-After hint.
	Backoff BackoffConfig `yaml:"backoff" toml:"backoff"`

	// MaxAttempts caps upstream attempts per client request (0 = one per
	// key).
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`

	// AttemptTimeoutMS bounds time-to-headers per upstream attempt.
	AttemptTimeoutMS int `yaml:"attempt_timeout_ms" toml:"attempt_timeout_ms"`

	// Breaker configures the upstream circuit breaker.
	Breaker health.Config `yaml:"breaker" toml:"breaker"`
}

// AttemptTimeout returns the per-attempt bound as a duration.
func (c *UpstreamConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMS) * time.Millisecond
}

// BackoffConfig is the file representation of the cooldown schedule.
// Durations are milliseconds so both YAML and TOML parse them as plain
// integers.
type BackoffConfig struct {
	BaseMS int     `yaml:"base_ms" toml:"base_ms"`
	CapMS  int     `yaml:"cap_ms" toml:"cap_ms"`
	Factor float64 `yaml:"factor" toml:"factor"`
}

// Schedule converts the file representation to the pool's backoff type.
// Zero fields fall through to the pool's defaults.
func (c BackoffConfig) Schedule() keypool.Backoff {
	return keypool.Backoff{
		Base:   time.Duration(c.BaseMS) * time.Millisecond,
		Cap:    time.Duration(c.CapMS) * time.Millisecond,
		Factor: c.Factor,
	}
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	// Default: info.
	Level string `yaml:"level" toml:"level"`

	// Format is "json", "pretty", or "auto" (pretty on a TTY). Default:
	// auto.
	Format string `yaml:"format" toml:"format"`
}

// normalize fills defaults for unset fields.
func (c *Config) normalize() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.ReadHeaderTimeoutMS <= 0 {
		c.Server.ReadHeaderTimeoutMS = DefaultReadHeaderTimeoutMS
	}
	if c.Server.ShutdownTimeoutMS <= 0 {
		c.Server.ShutdownTimeoutMS = DefaultShutdownTimeoutMS
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
}

// Validate checks that the configuration can actually serve traffic.
// Called once at startup; any error here is fatal.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return ErrNoBaseURL
	}
	if len(c.Upstream.Keys) == 0 {
		return ErrNoUpstreamKeys
	}
	for i, k := range c.Upstream.Keys {
		if k.Secret == "" {
			return fmt.Errorf("config: upstream key %d has empty secret", i)
		}
	}
	if c.Server.GatewayKey == "" {
		return ErrNoGatewayKey
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	return nil
}

// PoolConfig assembles the key pool configuration.
func (c *Config) PoolConfig() keypool.PoolConfig {
	return keypool.PoolConfig{
		Keys:    c.Upstream.Keys,
		Backoff: c.Upstream.Backoff.Schedule(),
	}
}
