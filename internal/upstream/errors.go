package upstream

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Exhaustion reasons, recorded for diagnostics and response shaping.
const (
	// ReasonPoolSaturated means no key could be acquired: every key is
	// cooling down, disabled, or already tried by this request.
	ReasonPoolSaturated = "pool_saturated"
	// ReasonRetryBudgetSpent means the per-request attempt budget ran out.
	ReasonRetryBudgetSpent = "retry_budget_spent"
	// ReasonUpstreamDown means the upstream circuit is open.
	ReasonUpstreamDown = "upstream_down"
)

// ExhaustedError is the single failure surfaced when a request could not
// be completed with any credential. It preserves the most recent upstream
// status and body for diagnostics, and a recovery hint for Retry-After.
type ExhaustedError struct {
	// Reason is one of the Reason* constants.
	Reason string
	// Attempts is the number of upstream attempts made for this request.
	Attempts int
	// LastStatus is the most recent upstream HTTP status, 0 if the last
	// failure never produced a response.
	LastStatus int
	// LastBody is a bounded prefix of the most recent upstream error body.
	LastBody []byte
	// LastErr is the most recent transport-level failure, nil if the last
	// attempt produced a response.
	LastErr error
	// RetryAfter hints when pool capacity is expected back.
	RetryAfter mo.Option[time.Duration]
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	switch {
	case e.LastStatus != 0:
		return fmt.Sprintf("upstream: exhausted after %d attempts (%s, last status %d)",
			e.Attempts, e.Reason, e.LastStatus)
	case e.LastErr != nil:
		return fmt.Sprintf("upstream: exhausted after %d attempts (%s): %v",
			e.Attempts, e.Reason, e.LastErr)
	default:
		return fmt.Sprintf("upstream: exhausted after %d attempts (%s)", e.Attempts, e.Reason)
	}
}

// Unwrap exposes the transport-level cause, if any.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// RateLimited reports whether the exhaustion is a capacity condition the
// client can recover from by backing off, as opposed to a generic upstream
// failure. A pool saturated only by disabled keys has no recovery hint and
// is not rate limiting.
func (e *ExhaustedError) RateLimited() bool {
	switch e.Reason {
	case ReasonPoolSaturated:
		return e.RetryAfter.IsPresent() || e.LastStatus == 429
	case ReasonRetryBudgetSpent:
		return e.LastStatus == 429
	default:
		return false
	}
}
