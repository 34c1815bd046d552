package upstream

import (
	"net/http"
	"strconv"
	"time"

	"github.com/samber/mo"
)

// maxRetryAfter caps absurd upstream hints so a single bad header cannot
// bench a key for hours.
const maxRetryAfter = 10 * time.Minute

// parseRetryAfter extracts the Retry-After hint from upstream response
// headers. Both forms defined by RFC 9110 are accepted: delta-seconds and
// an HTTP-date. Absent, malformed, or non-positive values yield None.
func parseRetryAfter(h http.Header, now time.Time) mo.Option[time.Duration] {
	raw := h.Get("Retry-After")
	if raw == "" {
		return mo.None[time.Duration]()
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return mo.None[time.Duration]()
		}
		return mo.Some(clampRetryAfter(time.Duration(secs) * time.Second))
	}

	if at, err := http.ParseTime(raw); err == nil {
		d := at.Sub(now)
		if d <= 0 {
			return mo.None[time.Duration]()
		}
		return mo.Some(clampRetryAfter(d))
	}

	return mo.None[time.Duration]()
}

func clampRetryAfter(d time.Duration) time.Duration {
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
