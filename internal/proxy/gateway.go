// Package proxy is the client-facing HTTP surface: it authenticates
// gateway requests, buffers their bodies, hands them to the dispatcher,
// and streams upstream responses back.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/keymux/keymux/internal/metrics"
	"github.com/keymux/keymux/internal/upstream"
)

// Gateway forwards any request it receives to the upstream through the
// dispatcher. It is mounted as the catch-all route so every
// OpenAI-compatible path works without per-endpoint registration.
type Gateway struct {
	dispatcher *upstream.Dispatcher
}

// NewGateway creates the forwarding handler.
func NewGateway(dispatcher *upstream.Dispatcher) *Gateway {
	return &Gateway{dispatcher: dispatcher}
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error",
				"request_too_large", "Request body exceeds the gateway limit.")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request_error",
			"invalid_body", "Request body could not be read.")
		return
	}

	log.Trace().Str("body_preview", bodyPreview(body)).Msg("forwarding request")

	resp, err := g.dispatcher.Do(r.Context(), &upstream.ForwardRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header,
		Body:     body,
	})
	if err != nil {
		g.writeFailure(w, r, err)
		return
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	streamBody(w, resp.Body, log)
}

func (g *Gateway) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeCanceled).Inc()
		log.Debug().Msg("client went away before a response was ready")
		return
	}

	var exhausted *upstream.ExhaustedError
	if errors.As(err, &exhausted) {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeExhausted).Inc()
		log.Warn().
			Str("reason", exhausted.Reason).
			Int("attempts", exhausted.Attempts).
			Int("last_status", exhausted.LastStatus).
			Str("last_body", bodyPreview(exhausted.LastBody)).
			AnErr("last_err", exhausted.LastErr).
			Msg("request exhausted the key pool")
		writeExhausted(w, exhausted)
		return
	}

	metrics.RequestsTotal.WithLabelValues(metrics.OutcomeExhausted).Inc()
	log.Error().Err(err).Msg("dispatch failed")
	writeError(w, http.StatusBadGateway, "api_error", "upstream_error",
		"The upstream API could not be reached.")
}

// streamBody copies the upstream body to the client, flushing after each
// chunk so server-sent event streams are delivered as they arrive.
func streamBody(w http.ResponseWriter, body io.Reader, log *zerolog.Logger) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32<<10)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				log.Debug().Err(werr).Msg("client closed connection mid-stream")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("upstream body ended early")
			}
			return
		}
	}
}

// hopByHopHeaders are connection-scoped and must not be relayed.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(name)]; hop {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
