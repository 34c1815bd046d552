package proxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyPreview(t *testing.T) {
	t.Parallel()

	t.Run("redacts sensitive fields", func(t *testing.T) {
		t.Parallel()
		got := bodyPreview([]byte(`{"model":"demo","api_key":"sk-leak","user":"alice"}`))
		assert.Contains(t, got, `"model":"demo"`)
		assert.Contains(t, got, `[redacted]`)
		assert.NotContains(t, got, "sk-leak")
		assert.NotContains(t, got, "alice")
	})

	t.Run("truncates long bodies", func(t *testing.T) {
		t.Parallel()
		got := bodyPreview([]byte(strings.Repeat("a", 2048)))
		assert.Len(t, got, previewLimit+3)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, bodyPreview(nil))
	})

	t.Run("non json passes through", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "plain text", bodyPreview([]byte("plain text")))
	})
}
