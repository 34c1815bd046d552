package proxy_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/keymux/keymux/internal/auth"
	"github.com/keymux/keymux/internal/keypool"
	"github.com/keymux/keymux/internal/proxy"
	"github.com/keymux/keymux/internal/upstream"
)

const gatewaySecret = "gw-test-secret"

// newStack wires pool, dispatcher, gateway, middleware, and router against
// the given fake upstream, mirroring the production assembly.
func newStack(t *testing.T, upstreamURL string, secrets ...string) (http.Handler, *keypool.Pool) {
	t.Helper()

	pool, err := keypool.New(keypool.PoolConfig{Keys: keyConfigs(secrets)})
	require.NoError(t, err)

	dispatcher, err := upstream.NewDispatcher(upstream.Config{
		BaseURL:        upstreamURL,
		AttemptTimeout: 5 * time.Second,
	}, pool, nil)
	require.NoError(t, err)

	gateway := proxy.Wrap(proxy.NewGateway(dispatcher),
		proxy.Authenticate(auth.NewGatewayChain(gatewaySecret)),
		proxy.MaxBody(1<<20),
	)

	router := proxy.Wrap(proxy.NewRouter(gateway, pool, nil),
		proxy.RequestID(zerolog.Nop()),
		proxy.AccessLog(),
	)
	return router, pool
}

func keyConfigs(secrets []string) []keypool.KeyConfig {
	keys := make([]keypool.KeyConfig, 0, len(secrets))
	for _, s := range secrets {
		keys = append(keys, keypool.KeyConfig{Secret: s})
	}
	return keys
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer " + gatewaySecret}
}

func TestGateway_ForwardsAndRelays(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream-Model", "demo")
		_, _ = io.WriteString(w, `{"choices":[{"text":"hello"}]}`)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-pool-key")

	rec := doRequest(t, router, http.MethodPost, "/v1/chat/completions",
		`{"model":"demo","messages":[]}`, authed())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-pool-key", gotAuth)
	assert.Equal(t, "demo", rec.Header().Get("X-Upstream-Model"))
	assert.Contains(t, rec.Body.String(), "hello")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGateway_RejectsMissingCredential(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-pool-key")

	rec := doRequest(t, router, http.MethodPost, "/v1/completions", "{}", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", gjson.Get(rec.Body.String(), "error.code").String())
	assert.False(t, called)
}

func TestGateway_ExhaustedPoolReturnsRateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "20")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	router, pool := newStack(t, srv.URL, "sk-a", "sk-b")

	rec := doRequest(t, router, http.MethodPost, "/v1/completions", "{}", authed())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := rec.Body.String()
	assert.Equal(t, "rate_limit_exceeded", gjson.Get(body, "error.code").String())
	assert.Equal(t, "rate_limit_error", gjson.Get(body, "error.type").String())

	assert.Equal(t, 2, pool.GetStats().CoolingDown)
}

func TestGateway_HardFailureReturnsBadGateway(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	router, pool := newStack(t, srv.URL, "sk-revoked")

	rec := doRequest(t, router, http.MethodPost, "/v1/completions", "{}", authed())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_exhausted", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, 1, pool.GetStats().Disabled)
}

func TestGateway_OversizedBodyRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-pool-key")

	rec := doRequest(t, router, http.MethodPost, "/v1/completions",
		strings.Repeat("x", 2<<20), authed())

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request_too_large", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestGateway_StreamsEventBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"data: one\n\n", "data: two\n\n", "data: [DONE]\n\n"} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-pool-key")

	rec := doRequest(t, router, http.MethodPost, "/v1/chat/completions",
		`{"stream":true}`, authed())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	assert.Contains(t, rec.Body.String(), "data: [DONE]")
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-a")

	rec := doRequest(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "keys.available_keys").Int())

	// Exhaust the only key, then the health report degrades.
	doRequest(t, router, http.MethodPost, "/v1/completions", "{}", authed())

	rec = doRequest(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "degraded", gjson.Get(rec.Body.String(), "status").String())
}

func TestPoolEndpoint_OmitsSecrets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-very-secret-value")

	rec := doRequest(t, router, http.MethodGet, "/keymux/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats keypool.Stats     `json:"stats"`
		Keys  []keypool.KeyInfo `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Stats.TotalKeys)
	require.Len(t, resp.Keys, 1)
	assert.Equal(t, "available", resp.Keys[0].Status)
	assert.NotContains(t, rec.Body.String(), "sk-very-secret-value")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	router, _ := newStack(t, srv.URL, "sk-a")

	rec := doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
