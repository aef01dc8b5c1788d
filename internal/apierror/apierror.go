// Package apierror decodes human-readable messages from remote error bodies.
package apierror

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Message extracts the most useful message from an error response body.
// It tries, in order: an "error_description" string, an "error" string,
// a Google-style {"error": {"message": ...}} object, and the trimmed raw
// text. When all of these are empty the HTTP status text is returned.
func Message(status int, body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := stringField(payload, "error_description"); msg != "" {
			return msg
		}
		if msg := stringField(payload, "error"); msg != "" {
			return msg
		}
		if raw, ok := payload["error"]; ok {
			var nested struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			}
			if json.Unmarshal(raw, &nested) == nil {
				if nested.Message != "" {
					return nested.Message
				}
				if nested.Status != "" {
					return nested.Status
				}
			}
		}
		if msg := stringField(payload, "message"); msg != "" {
			return msg
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}

// Read drains at most maxErrorBody bytes of r and decodes the message.
// Read failures fall back to the status text since the caller is already
// on an error path.
func Read(status int, r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return Message(status, nil)
	}
	return Message(status, body)
}

func stringField(payload map[string]json.RawMessage, key string) string {
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
