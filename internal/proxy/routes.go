package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/keymux/keymux/internal/health"
	"github.com/keymux/keymux/internal/keypool"
)

// NewRouter mounts the operational endpoints next to the forwarding
// catch-all. The gateway handler arrives already wrapped in its own
// middleware (auth, body limits); the operational endpoints stay outside
// that chain so health checks and scrapers need no credential.
func NewRouter(gateway http.Handler, pool *keypool.Pool, breaker *health.Breaker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthzHandler(pool, breaker))
	mux.HandleFunc("GET /keymux/pool", poolHandler(pool))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", gateway)

	return mux
}

type healthzResponse struct {
	Status  string        `json:"status"`
	Breaker string        `json:"breaker,omitempty"`
	Keys    keypool.Stats `json:"keys"`
}

func healthzHandler(pool *keypool.Pool, breaker *health.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := pool.GetStats()

		resp := healthzResponse{Status: "ok", Keys: stats}
		if stats.Available == 0 {
			resp.Status = "degraded"
		}
		if breaker != nil {
			resp.Breaker = breaker.State().String()
			if breaker.State() == health.StateOpen {
				resp.Status = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type poolResponse struct {
	Stats keypool.Stats     `json:"stats"`
	Keys  []keypool.KeyInfo `json:"keys"`
}

func poolHandler(pool *keypool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, poolResponse{
			Stats: pool.GetStats(),
			Keys:  pool.Snapshot(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed writing json response")
	}
}
