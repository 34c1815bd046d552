// Package metrics exposes Prometheus instrumentation for keymux.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts inbound requests by final outcome
	// (success, exhausted, unauthorized, canceled).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keymux_requests_total",
			Help: "Total number of inbound requests by outcome",
		},
		[]string{"outcome"},
	)

	// UpstreamAttemptsTotal counts individual upstream attempts by
	// classification (success, rate_limited, hard_failure, transient).
	UpstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keymux_upstream_attempts_total",
			Help: "Total number of upstream attempts by outcome class",
		},
		[]string{"class"},
	)

	// AttemptDuration observes per-attempt upstream latency in seconds.
	AttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keymux_upstream_attempt_duration_seconds",
			Help:    "Upstream attempt duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// KeysAvailable tracks the number of currently selectable keys.
	KeysAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keymux_keys_available",
			Help: "Number of keys currently available for selection",
		},
	)

	// KeysCoolingDown tracks the number of keys in cooldown.
	KeysCoolingDown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keymux_keys_cooling_down",
			Help: "Number of keys currently cooling down after rate limits",
		},
	)

	// KeysDisabled tracks the number of permanently disabled keys.
	KeysDisabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keymux_keys_disabled",
			Help: "Number of keys permanently disabled after credential rejection",
		},
	)
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeExhausted    = "exhausted"
	OutcomeUnauthorized = "unauthorized"
	OutcomeCanceled     = "canceled"
)

// Class labels for UpstreamAttemptsTotal.
const (
	ClassSuccess     = "success"
	ClassRateLimited = "rate_limited"
	ClassHardFailure = "hard_failure"
	ClassTransient   = "transient"
)

// ObservePool updates the key availability gauges from pool counters.
func ObservePool(available, coolingDown, disabled int) {
	KeysAvailable.Set(float64(available))
	KeysCoolingDown.Set(float64(coolingDown))
	KeysDisabled.Set(float64(disabled))
}
