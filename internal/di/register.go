// Package di wires the application graph with samber/do v2.
package di

import "github.com/samber/do/v2"

// ConfigPathKey names the config file path value in the container.
const ConfigPathKey = "config.path"

// RegisterSingletons registers all service providers as singletons, in
// dependency order:
//  1. Config (no dependencies)
//  2. Logger (depends on Config)
//  3. Pool (depends on Config)
//  4. Breaker (depends on Config, Logger)
//  5. Dispatcher (depends on Config, Pool, Breaker)
//  6. Handler (depends on Config, Logger, Pool, Breaker, Dispatcher)
//  7. Server (depends on Config, Logger, Handler)
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewPool)
	do.Provide(i, NewBreaker)
	do.Provide(i, NewDispatcher)
	do.Provide(i, NewHandler)
	do.Provide(i, NewServer)
}

// NewContainer creates the container with the config path bound and all
// providers registered.
func NewContainer(configPath string) *do.RootScope {
	injector := do.New()
	do.ProvideNamedValue(injector, ConfigPathKey, configPath)
	RegisterSingletons(injector)
	return injector
}
