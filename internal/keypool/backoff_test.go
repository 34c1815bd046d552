package keypool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: time.Second, Cap: 60 * time.Second, Factor: 2}

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"first failure uses base", 1, time.Second},
		{"second failure doubles", 2, 2 * time.Second},
		{"third failure quadruples", 3, 4 * time.Second},
		{"growth is capped", 10, 60 * time.Second},
		{"huge streak stays capped", 1000, 60 * time.Second},
		{"zero treated as first", 0, time.Second},
		{"negative treated as first", -3, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Duration(tt.failures))
		})
	}
}

func TestBackoffDefaults(t *testing.T) {
	t.Parallel()

	var b Backoff // zero value falls back to defaults

	assert.Equal(t, DefaultBackoffBase, b.Duration(1))
	assert.Equal(t, 2*DefaultBackoffBase, b.Duration(2))
	assert.Equal(t, DefaultBackoffCap, b.Duration(100))
}

func TestKeyIDStableAndShort(t *testing.T) {
	t.Parallel()

	a := newKey("sk-alpha")
	b := newKey("sk-alpha")
	c := newKey("sk-beta")

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ID, 8)
}
