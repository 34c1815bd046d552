package proxy

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/keymux/keymux/internal/upstream"
)

// apiError is the OpenAI-compatible error payload clients expect from a
// completion endpoint.
type apiError struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// writeError emits a JSON error in the upstream API's own envelope so
// client SDKs parse proxy-originated failures the same way as upstream
// ones.
func writeError(w http.ResponseWriter, status int, typ, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: apiError{
		Message: message,
		Type:    typ,
		Code:    code,
	}}); err != nil {
		log.Debug().Err(err).Msg("failed writing error response")
	}
}

// writeExhausted maps pool exhaustion to the client-facing response: 429
// with a Retry-After hint when the pool is rate limited and expected to
// recover, 502 when the upstream itself looks unhealthy.
func writeExhausted(w http.ResponseWriter, exhausted *upstream.ExhaustedError) {
	if exhausted.RateLimited() {
		if hint, ok := exhausted.RetryAfter.Get(); ok && hint > 0 {
			secs := int(math.Ceil(hint.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded",
			"All upstream API keys are currently rate limited. Please retry after the indicated delay.")
		return
	}

	writeError(w, http.StatusBadGateway, "api_error", "upstream_exhausted",
		"The upstream API could not be reached with any available key.")
}

// writeUnauthorized rejects a request that failed gateway authentication.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_request_error", "invalid_api_key",
		"Incorrect API key provided for this gateway.")
}
