package config

import "errors"

// Validation and load errors. All are fatal at startup.
var (
	// ErrNoUpstreamKeys means no upstream API keys were configured. The
	// proxy cannot start with an empty pool.
	ErrNoUpstreamKeys = errors.New("config: no upstream api keys configured")

	// ErrNoBaseURL means the upstream base URL is missing.
	ErrNoBaseURL = errors.New("config: upstream base_url is required")

	// ErrNoGatewayKey means the gateway secret is missing, which would
	// leave the pooled keys open to anyone who can reach the listener.
	ErrNoGatewayKey = errors.New("config: server gateway_key is required")

	// ErrUnsupportedFormat means the config file extension is not a format
	// the loader understands.
	ErrUnsupportedFormat = errors.New("config: unsupported file format (want .yaml, .yml, or .toml)")
)
