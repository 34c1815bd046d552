package upstream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Class is the outcome category of a single upstream attempt. It decides
// what happens to the key that made the attempt and whether the dispatcher
// keeps retrying.
type Class int

const (
	// ClassSuccess is any 2xx response. The response is handed to the client.
	ClassSuccess Class = iota
	// ClassRateLimited means the key hit a rate or quota ceiling and should
	// cool down. The request retries on another key.
	ClassRateLimited
	// ClassHardFailure means the credential itself was rejected. The key is
	// disabled for the life of the process.
	ClassHardFailure
	// ClassTransient covers everything else: 5xx, unexpected 4xx, transport
	// errors, timeouts. The key keeps its state and the request retries.
	ClassTransient
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassRateLimited:
		return "rate_limited"
	case ClassHardFailure:
		return "hard_failure"
	default:
		return "transient"
	}
}

// quotaSignals are error codes and types that indicate capacity exhaustion
// even when the status line alone is ambiguous.
var quotaSignals = []string{
	"insufficient_quota",
	"rate_limit_exceeded",
	"quota_exceeded",
	"resource_exhausted",
	"billing_hard_limit_reached",
}

// classify maps an upstream status line and a bounded body prefix to an
// attempt class. The body is consulted only to disambiguate: a 403 carrying
// a quota error is capacity, not a bad credential, and a non-429 status
// with an explicit quota code is still treated as rate limiting.
func classify(status int, body []byte) Class {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status == 429:
		return ClassRateLimited
	case status == 401:
		return ClassHardFailure
	case status == 403:
		if hasQuotaSignal(body) {
			return ClassRateLimited
		}
		return ClassHardFailure
	default:
		if hasQuotaSignal(body) {
			return ClassRateLimited
		}
		return ClassTransient
	}
}

// hasQuotaSignal peeks at the error envelope most OpenAI-compatible
// backends emit: {"error": {"code": ..., "type": ..., "status": ...}}.
func hasQuotaSignal(body []byte) bool {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return false
	}
	for _, path := range []string{"error.code", "error.type", "error.status"} {
		v := gjson.GetBytes(body, path)
		if !v.Exists() {
			continue
		}
		s := strings.ToLower(v.String())
		for _, sig := range quotaSignals {
			if s == sig {
				return true
			}
		}
	}
	return false
}
