package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keymux/keymux/internal/version"
)

func TestString(t *testing.T) {
	assert.NotEmpty(t, version.Version)
	assert.NotEmpty(t, version.Commit)
	assert.Contains(t, version.String(), version.Version)
	assert.Contains(t, version.String(), version.Commit)
}
