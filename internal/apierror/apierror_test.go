package apierror

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error description wins", 400, `{"error":"invalid_grant","error_description":"Bad Request"}`, "Bad Request"},
		{"error string", 400, `{"error":"invalid_client"}`, "invalid_client"},
		{"google error object", 403, `{"error":{"code":403,"message":"Permission denied","status":"PERMISSION_DENIED"}}`, "Permission denied"},
		{"google error object without message", 403, `{"error":{"status":"PERMISSION_DENIED"}}`, "PERMISSION_DENIED"},
		{"plain message field", 500, `{"message":"boom"}`, "boom"},
		{"raw text", 502, "  upstream unavailable\n", "upstream unavailable"},
		{"json without known fields falls back to raw", 400, `{"detail":"x"}`, `{"detail":"x"}`},
		{"empty body uses status text", 404, "", "Not Found"},
		{"unknown status", 599, "", "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRead(t *testing.T) {
	if got := Read(http.StatusBadRequest, strings.NewReader(`{"error":"nope"}`)); got != "nope" {
		t.Errorf("expected 'nope', got %q", got)
	}
	if got := Read(http.StatusServiceUnavailable, failingReader{}); got != "Service Unavailable" {
		t.Errorf("expected status text on read failure, got %q", got)
	}
}
