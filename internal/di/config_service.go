package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/config"
)

// ConfigService wraps the loaded configuration. Configuration is fixed for
// the process lifetime; changing keys or upstream settings requires a
// restart.
type ConfigService struct {
	Config *config.Config
}

// NewConfig loads and validates configuration from the bound path.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	return &ConfigService{Config: cfg}, nil
}
