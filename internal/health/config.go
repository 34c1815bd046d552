package health

import "time"

// Default circuit breaker parameters.
const (
	DefaultFailureThreshold = 5     // consecutive service-wide failures to open
	DefaultOpenDurationMS   = 30000 // 30s before half-open
	DefaultHalfOpenProbes   = 3     // probes allowed while half-open
)

// Config defines circuit breaker behavior for the upstream.
type Config struct {
	// FailureThreshold is the number of consecutive service-wide failures
	// before the circuit opens. Default: 5.
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`

	// OpenDurationMS is how long, in milliseconds, the circuit stays open
	// before probing again. Default: 30000.
	OpenDurationMS int `yaml:"open_duration_ms" toml:"open_duration_ms"`

	// HalfOpenProbes is the number of probe requests allowed in half-open
	// state. Default: 3.
	HalfOpenProbes int `yaml:"half_open_probes" toml:"half_open_probes"`
}

// GetFailureThreshold returns the configured threshold or the default.
func (c *Config) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenDuration returns the open duration or the default.
func (c *Config) GetOpenDuration() time.Duration {
	if c.OpenDurationMS <= 0 {
		return DefaultOpenDurationMS * time.Millisecond
	}
	return time.Duration(c.OpenDurationMS) * time.Millisecond
}

// GetHalfOpenProbes returns the half-open probe count or the default.
func (c *Config) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}
