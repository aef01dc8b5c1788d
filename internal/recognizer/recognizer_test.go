package recognizer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecognize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recognize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("expected image field: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg" || header.Filename != "face.jpg" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"Alice","similarity":0.83,"bbox":[10,20,110,140]},{"name":"Unknown","similarity":0.12}]`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	results, err := c.Recognize(context.Background(), "face.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "Alice" || results[0].Similarity != 0.83 {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[0].BBox == nil || results[0].BBox[3] != 140 {
		t.Errorf("unexpected bbox %v", results[0].BBox)
	}
	if results[1].BBox != nil {
		t.Errorf("expected no bbox, got %v", results[1].BBox)
	}
}

func TestRecognize_EmptyAndErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		wantMsg    string
	}{
		{"no faces", http.StatusOK, `[]`, false, 0, ""},
		{"bad request", http.StatusBadRequest, `{"error":"Failed to read image data"}`, true, 400, "Failed to read image data"},
		{"server error", http.StatusInternalServerError, `{"error":"AI model inference failed: oom"}`, true, 500, "AI model inference failed: oom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, _ := NewClient(server.URL, time.Second)
			results, err := c.Recognize(context.Background(), "x.jpg", []byte("x"))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if results == nil || len(results) != 0 {
					t.Errorf("expected empty non-nil results, got %#v", results)
				}
				return
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.wantStatus || apiErr.Message != tt.wantMsg {
				t.Errorf("unexpected error %+v", apiErr)
			}
		})
	}
}

func TestEnroll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enroll" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.FormValue("name") != "Alice" {
			t.Errorf("expected name field, got %q", r.FormValue("name"))
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("expected image field: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, time.Second)
	if err := c.Enroll(context.Background(), "Alice", "alice.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := c.Enroll(context.Background(), "  ", "alice.jpg", []byte("jpeg")); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient("localhost:3000", time.Second); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
