package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/keypool"
)

// PoolService wraps the key pool for DI.
type PoolService struct {
	Pool *keypool.Pool
}

// NewPool creates the key pool from configuration.
func NewPool(i do.Injector) (*PoolService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	pool, err := keypool.New(cfgSvc.Config.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create key pool: %w", err)
	}
	return &PoolService{Pool: pool}, nil
}
