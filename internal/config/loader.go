package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/keymux/keymux/internal/keypool"
)

// Environment variables consulted by Load. They override file values and
// allow running with no file at all.
const (
	EnvUpstreamKeys    = "UPSTREAM_API_KEYS" // comma-separated secrets
	EnvUpstreamBaseURL = "UPSTREAM_BASE_URL"
	EnvGatewayKey      = "GATEWAY_API_KEY"
	EnvListen          = "KEYMUX_LISTEN" // host:port
)

// Load reads configuration from the given file, applies environment
// overrides, fills defaults, and validates. An empty path skips the file
// and configures from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("num_keys", len(cfg.Upstream.Keys)).
		Str("base_url", cfg.Upstream.BaseURL).
		Str("listen", cfg.Server.Addr()).
		Msg("configuration loaded")

	return cfg, nil
}

// loadFile parses a YAML or TOML file into cfg, expanding ${VAR}
// references against the environment first so secrets can live outside
// the file.
func loadFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := []byte(os.Expand(string(raw), os.Getenv))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(expanded, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

// applyEnv layers environment variables over the file values. Environment
// wins so deployments can patch a checked-in file without editing it.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvUpstreamKeys); v != "" {
		keys := lo.FilterMap(strings.Split(v, ","), func(secret string, _ int) (keypool.KeyConfig, bool) {
			secret = strings.TrimSpace(secret)
			return keypool.KeyConfig{Secret: secret}, secret != ""
		})
		if len(keys) > 0 {
			cfg.Upstream.Keys = keys
		}
	}

	if v := os.Getenv(EnvUpstreamBaseURL); v != "" {
		cfg.Upstream.BaseURL = v
	}

	if v := os.Getenv(EnvGatewayKey); v != "" {
		cfg.Server.GatewayKey = v
	}

	if v := os.Getenv(EnvListen); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			if p, perr := strconv.Atoi(port); perr == nil {
				if host != "" {
					cfg.Server.Host = host
				}
				cfg.Server.Port = p
				return
			}
		}
		log.Warn().Str("value", v).Msg("ignoring malformed KEYMUX_LISTEN, want host:port")
	}
}
