// Package upstream forwards client requests to the completion backend,
// rotating across pooled credentials until one succeeds or the pool is
// exhausted.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/keymux/keymux/internal/health"
	"github.com/keymux/keymux/internal/keypool"
	"github.com/keymux/keymux/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	// DefaultAttemptTimeout bounds the wait for upstream response headers.
	// Streaming bodies are not subject to it once headers arrive.
	DefaultAttemptTimeout = 60 * time.Second
	// DefaultMaxErrorBody bounds how much of a failed attempt's body is
	// read for classification and diagnostics.
	DefaultMaxErrorBody = 32 << 10
)

// Config holds dispatcher settings.
type Config struct {
	// BaseURL is the upstream API root, e.g. "https://api.example.com/v1".
	BaseURL string
	// MaxAttempts caps billable attempts per request. Zero means one
	// attempt per pooled key.
	MaxAttempts int
	// AttemptTimeout bounds time-to-headers per attempt.
	AttemptTimeout time.Duration
	// MaxErrorBody bounds error body reads.
	MaxErrorBody int64
}

// ForwardRequest is a client request reduced to what the upstream needs.
// The body is buffered so it can be replayed across attempts.
type ForwardRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Dispatcher drives the per-request retry loop: acquire a key the request
// has not tried, call upstream with it, classify the outcome, and either
// return the response or move on to the next key.
type Dispatcher struct {
	pool         *keypool.Pool
	breaker      *health.Breaker
	client       *http.Client
	base         *url.URL
	maxAttempts  int
	maxErrorBody int64
	now          func() time.Time
}

// NewDispatcher builds a Dispatcher for the given pool. The breaker is
// optional; nil disables upstream circuit breaking.
func NewDispatcher(cfg Config, pool *keypool.Pool, breaker *health.Breaker) (*Dispatcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream: base url %q: scheme must be http or https", cfg.BaseURL)
	}

	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	maxErrorBody := cfg.MaxErrorBody
	if maxErrorBody <= 0 {
		maxErrorBody = DefaultMaxErrorBody
	}

	return &Dispatcher{
		pool:         pool,
		breaker:      breaker,
		client:       newHTTPClient(attemptTimeout),
		base:         base,
		maxAttempts:  cfg.MaxAttempts,
		maxErrorBody: maxErrorBody,
		now:          time.Now,
	}, nil
}

func newHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// lastFailure remembers the most recent failed attempt so exhaustion can
// report something concrete.
type lastFailure struct {
	status     int
	body       []byte
	err        error
	retryAfter mo.Option[time.Duration]
}

// Do runs the retry loop for one client request. On success the upstream
// response is returned with its body open; the caller owns closing it. On
// failure the error is always an *ExhaustedError unless the client context
// was canceled first.
func (d *Dispatcher) Do(ctx context.Context, fwd *ForwardRequest) (*http.Response, error) {
	log := zerolog.Ctx(ctx)

	budget := d.maxAttempts
	if budget <= 0 {
		budget = d.pool.Size()
	}

	tried := make(map[string]struct{}, budget)
	var (
		attempts int
		spent    int
		last     lastFailure
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if spent >= budget {
			return nil, d.exhausted(ReasonRetryBudgetSpent, attempts, last)
		}

		keyID, secret, err := d.pool.Acquire(ctx, tried)
		if err != nil {
			return nil, d.exhausted(ReasonPoolSaturated, attempts, last)
		}
		tried[keyID] = struct{}{}

		var release func(error)
		if d.breaker != nil {
			release, err = d.breaker.Allow()
			if err != nil {
				return nil, d.exhausted(ReasonUpstreamDown, attempts, last)
			}
		} else {
			release = func(error) {}
		}

		attempts++
		start := d.now()
		resp, err := d.attempt(ctx, fwd, secret)
		metrics.AttemptDuration.Observe(d.now().Sub(start).Seconds())

		if err != nil {
			release(err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			spent++
			last = lastFailure{err: err}
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.ClassTransient).Inc()
			log.Warn().Err(err).Str("key_id", keyID).Int("attempt", attempts).
				Msg("upstream attempt failed in transport")
			continue
		}

		class := d.classifyResponse(resp)
		metrics.UpstreamAttemptsTotal.WithLabelValues(class.String()).Inc()

		switch class {
		case ClassSuccess:
			release(nil)
			d.pool.MarkSuccess(keyID)
			d.observePool()
			return resp, nil

		case ClassRateLimited:
			release(nil)
			hint := parseRetryAfter(resp.Header, d.now())
			body := d.drain(resp)
			d.pool.MarkRateLimited(keyID, hint)
			d.observePool()
			spent++
			last = lastFailure{status: resp.StatusCode, body: body, retryAfter: hint}
			log.Info().Str("key_id", keyID).Int("attempt", attempts).
				Msg("key rate limited, rotating")

		case ClassHardFailure:
			release(nil)
			body := d.drain(resp)
			d.pool.MarkHardFailure(keyID)
			d.observePool()
			last = lastFailure{status: resp.StatusCode, body: body}
			log.Error().Str("key_id", keyID).Int("status", resp.StatusCode).
				Msg("key rejected by upstream, disabling")

		default:
			body := d.drain(resp)
			// Only server-side failures feed the breaker; an unexpected 4xx
			// is the client's problem, not evidence the upstream is down.
			if resp.StatusCode >= 500 {
				release(fmt.Errorf("upstream status %d", resp.StatusCode))
			} else {
				release(nil)
			}
			spent++
			last = lastFailure{status: resp.StatusCode, body: body}
			log.Warn().Str("key_id", keyID).Int("status", resp.StatusCode).
				Int("attempt", attempts).Msg("transient upstream failure")
		}
	}
}

// classifyResponse peeks at the body of non-2xx responses without
// consuming it, so classification and later diagnostics see the same
// bytes.
func (d *Dispatcher) classifyResponse(resp *http.Response) Class {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ClassSuccess
	}
	peek, _ := io.ReadAll(io.LimitReader(resp.Body, d.maxErrorBody))
	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peek), rest), rest}
	return classify(resp.StatusCode, peek)
}

// drain reads the bounded remainder of a failed attempt's body and closes
// the connection for reuse.
func (d *Dispatcher) drain(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, d.maxErrorBody))
	_ = resp.Body.Close()
	return body
}

func (d *Dispatcher) attempt(ctx context.Context, fwd *ForwardRequest, secret string) (*http.Response, error) {
	u := *d.base
	u.Path = joinPath(d.base.Path, fwd.Path)
	u.RawQuery = fwd.RawQuery

	req, err := http.NewRequestWithContext(ctx, fwd.Method, u.String(), bytes.NewReader(fwd.Body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}

	copyForwardHeaders(req.Header, fwd.Header)
	req.Header.Set("Authorization", "Bearer "+secret)
	req.ContentLength = int64(len(fwd.Body))

	resp, err := d.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("upstream: attempt timed out: %w", err)
		}
		return nil, err
	}
	return resp, nil
}

// droppedHeaders are never forwarded upstream: credentials are replaced
// with the pooled key, and length is recomputed from the buffered body.
var droppedHeaders = map[string]struct{}{
	"Authorization":  {},
	"X-Api-Key":      {},
	"Host":           {},
	"Content-Length": {},
}

func copyForwardHeaders(dst, src http.Header) {
	for name, values := range src {
		if _, drop := droppedHeaders[http.CanonicalHeaderKey(name)]; drop {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func joinPath(base, extra string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(extra, "/") {
		extra = "/" + extra
	}
	return base + extra
}

func (d *Dispatcher) exhausted(reason string, attempts int, last lastFailure) *ExhaustedError {
	retryAfter := last.retryAfter
	if reason == ReasonPoolSaturated {
		if hint := d.pool.EarliestRecovery(); hint.IsPresent() {
			retryAfter = hint
		}
	}
	return &ExhaustedError{
		Reason:     reason,
		Attempts:   attempts,
		LastStatus: last.status,
		LastBody:   last.body,
		LastErr:    last.err,
		RetryAfter: retryAfter,
	}
}

// observePool refreshes the pool state gauges after any key transition.
func (d *Dispatcher) observePool() {
	stats := d.pool.GetStats()
	metrics.ObservePool(stats.Available, stats.CoolingDown, stats.Disabled)
}
