package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   Class
	}{
		{"ok", 200, "", ClassSuccess},
		{"created", 201, "", ClassSuccess},
		{"too many requests", 429, "", ClassRateLimited},
		{"unauthorized", 401, `{"error":{"message":"bad key"}}`, ClassHardFailure},
		{"forbidden", 403, "", ClassHardFailure},
		{"forbidden with quota body", 403, `{"error":{"code":"insufficient_quota"}}`, ClassRateLimited},
		{"bad request", 400, `{"error":{"type":"invalid_request_error"}}`, ClassTransient},
		{"bad request with quota type", 400, `{"error":{"type":"insufficient_quota"}}`, ClassRateLimited},
		{"resource exhausted status field", 429, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, ClassRateLimited},
		{"server error", 500, "", ClassTransient},
		{"bad gateway", 502, "<html>nope</html>", ClassTransient},
		{"service unavailable", 503, `{"error":{"status":"resource_exhausted"}}`, ClassRateLimited},
		{"not json", 500, "plain text error", ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classify(tt.status, []byte(tt.body)))
		})
	}
}

func TestClassString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", ClassSuccess.String())
	assert.Equal(t, "rate_limited", ClassRateLimited.String())
	assert.Equal(t, "hard_failure", ClassHardFailure.String())
	assert.Equal(t, "transient", ClassTransient.String())
}
