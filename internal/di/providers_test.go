package di_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymux/keymux/internal/di"
)

const testConfig = `
server:
  port: 18080
  gateway_key: gw-secret
upstream:
  base_url: https://api.example.com/v1
  keys:
    - secret: sk-one
    - secret: sk-two
logging:
  level: error
  format: json
`

// createTestInjector creates an injector bound to a temp config file.
func createTestInjector(t *testing.T, configContent string) *do.RootScope {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keymux.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	return di.NewContainer(path)
}

//nolint:errcheck // test cleanup shutdown errors are non-critical
func shutdownInjector(i *do.RootScope) {
	i.Shutdown()
}

func TestContainer_ResolvesFullGraph(t *testing.T) {
	injector := createTestInjector(t, testConfig)
	defer shutdownInjector(injector)

	cfgSvc, err := do.Invoke[*di.ConfigService](injector)
	require.NoError(t, err)
	assert.Equal(t, 18080, cfgSvc.Config.Server.Port)

	poolSvc, err := do.Invoke[*di.PoolService](injector)
	require.NoError(t, err)
	assert.Equal(t, 2, poolSvc.Pool.Size())

	breakerSvc, err := do.Invoke[*di.BreakerService](injector)
	require.NoError(t, err)
	assert.NotNil(t, breakerSvc.Breaker)

	dispatcherSvc, err := do.Invoke[*di.DispatcherService](injector)
	require.NoError(t, err)
	assert.NotNil(t, dispatcherSvc.Dispatcher)

	handlerSvc, err := do.Invoke[*di.HandlerService](injector)
	require.NoError(t, err)
	assert.NotNil(t, handlerSvc.Handler)

	serverSvc, err := do.Invoke[*di.ServerService](injector)
	require.NoError(t, err)
	assert.NotNil(t, serverSvc.Server)
}

func TestContainer_ConfigErrorSurfaces(t *testing.T) {
	injector := createTestInjector(t, `
server:
  gateway_key: gw-secret
upstream:
  base_url: https://api.example.com/v1
`)
	defer shutdownInjector(injector)

	// No upstream keys configured; the whole graph must fail to resolve.
	_, err := do.Invoke[*di.ServerService](injector)
	assert.Error(t, err)
}

func TestServerService_ImplementsShutdowner(t *testing.T) {
	injector := createTestInjector(t, testConfig)
	defer shutdownInjector(injector)

	serverSvc, err := do.Invoke[*di.ServerService](injector)
	require.NoError(t, err)

	var _ do.ShutdownerWithError = serverSvc
	assert.NoError(t, serverSvc.Shutdown())
}
