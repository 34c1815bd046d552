package upstream

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("delta seconds", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{"30"}}
		got := parseRetryAfter(h, now)
		assert.Equal(t, 30*time.Second, got.MustGet())
	})

	t.Run("http date", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{now.Add(90 * time.Second).Format(http.TimeFormat)}}
		got := parseRetryAfter(h, now)
		assert.Equal(t, 90*time.Second, got.MustGet())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		assert.True(t, parseRetryAfter(http.Header{}, now).IsAbsent())
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{"soon"}}
		assert.True(t, parseRetryAfter(h, now).IsAbsent())
	})

	t.Run("zero seconds", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{"0"}}
		assert.True(t, parseRetryAfter(h, now).IsAbsent())
	})

	t.Run("date in the past", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{now.Add(-time.Minute).Format(http.TimeFormat)}}
		assert.True(t, parseRetryAfter(h, now).IsAbsent())
	})

	t.Run("clamped to cap", func(t *testing.T) {
		t.Parallel()
		h := http.Header{"Retry-After": []string{"86400"}}
		got := parseRetryAfter(h, now)
		assert.Equal(t, maxRetryAfter, got.MustGet())
	})
}
