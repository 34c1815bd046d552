package proxy

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const previewLimit = 512

// sensitiveFields are overwritten before a body fragment reaches a log
// line.
var sensitiveFields = []string{
	"api_key",
	"authorization",
	"key",
	"secret",
	"user",
}

// bodyPreview renders a bounded, redacted fragment of a JSON body for
// trace logging. Non-JSON bodies are truncated without inspection.
func bodyPreview(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	if gjson.ValidBytes(body) {
		redacted := body
		for _, field := range sensitiveFields {
			if gjson.GetBytes(redacted, field).Exists() {
				redacted, _ = sjson.SetBytes(redacted, field, "[redacted]")
			}
		}
		body = redacted
	}

	if len(body) > previewLimit {
		return string(body[:previewLimit]) + "..."
	}
	return string(body)
}
