package picker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/photo-picker/internal/credential"
)

func TestDownloadURL(t *testing.T) {
	tests := []struct {
		name string
		item PickedMediaItem
		want string
	}{
		{"photo", PickedMediaItem{Type: MediaTypePhoto, MediaFile: MediaFile{BaseURL: "https://lh3/x"}}, "https://lh3/x=d"},
		{"untyped defaults to photo", PickedMediaItem{MediaFile: MediaFile{BaseURL: "https://lh3/y"}}, "https://lh3/y=d"},
		{"video", PickedMediaItem{Type: "video", MediaFile: MediaFile{BaseURL: "https://lh3/z"}}, "https://lh3/z=dv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DownloadURL(tt.item); got != tt.want {
				t.Errorf("DownloadURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ppa/item-1=d" {
			t.Errorf("expected download marker in path, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.dl" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	item := PickedMediaItem{ID: "item-1", MediaFile: MediaFile{BaseURL: server.URL + "/ppa/item-1"}}
	dl, err := NewDownloader().Fetch(context.Background(), credential.StaticToken("ya29.dl"), item)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(dl.Data) != "jpeg-bytes" {
		t.Errorf("unexpected data %q", dl.Data)
	}
	if dl.ContentType != "image/jpeg" {
		t.Errorf("unexpected content type %q", dl.ContentType)
	}
}

func TestFetch_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden: base URL expired"))
	}))
	defer server.Close()

	tests := []struct {
		name      string
		item      PickedMediaItem
		wantLabel string
	}{
		{"with filename", PickedMediaItem{ID: "1", MediaFile: MediaFile{BaseURL: server.URL + "/a", Filename: "beach.jpg"}}, "beach.jpg"},
		{"without filename", PickedMediaItem{ID: "42", MediaFile: MediaFile{BaseURL: server.URL + "/b"}}, "photo_42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDownloader().Fetch(context.Background(), credential.StaticToken("t"), tt.item)

			var dlErr *DownloadError
			if !errors.As(err, &dlErr) {
				t.Fatalf("expected DownloadError, got %v", err)
			}
			if dlErr.StatusCode != http.StatusForbidden {
				t.Errorf("expected 403, got %d", dlErr.StatusCode)
			}
			if dlErr.Message != "forbidden: base URL expired" {
				t.Errorf("unexpected message %q", dlErr.Message)
			}
			if dlErr.ItemLabel != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, dlErr.ItemLabel)
			}
		})
	}
}

// storedToken is a token source that can forget its token, as the
// credential store does.
type storedToken struct {
	countingClearer
	token string
}

func (s *storedToken) AccessToken() (string, error) { return s.token, nil }

func TestFetch_RejectedTokenClearsCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	item := PickedMediaItem{ID: "1", MediaFile: MediaFile{BaseURL: server.URL + "/a", Filename: "beach.jpg"}}

	t.Run("stored credential", func(t *testing.T) {
		tokens := &storedToken{token: "revoked"}
		_, err := NewDownloader().Fetch(context.Background(), tokens, item)
		if !errors.Is(err, ErrAuthExpired) || !IsAuthError(err) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if tokens.n.Load() != 1 {
			t.Errorf("expected credential cleared once, got %d", tokens.n.Load())
		}
	})

	t.Run("caller supplied token", func(t *testing.T) {
		_, err := NewDownloader().Fetch(context.Background(), credential.StaticToken("revoked"), item)
		if !errors.Is(err, ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
	})
}

func TestFetch_NotAuthenticatedMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	item := PickedMediaItem{ID: "1", MediaFile: MediaFile{BaseURL: server.URL}}
	_, err := NewDownloader().Fetch(context.Background(), credential.StaticToken(""), item)
	if !errors.Is(err, credential.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls, got %d", calls.Load())
	}
}

func TestFetch_FallsBackToItemMimeType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer server.Close()

	item := PickedMediaItem{ID: "1", MediaFile: MediaFile{BaseURL: server.URL + "/p", MimeType: "image/png"}}
	dl, err := NewDownloader().Fetch(context.Background(), credential.StaticToken("t"), item)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if dl.ContentType != "image/png" {
		t.Errorf("expected item mime type, got %q", dl.ContentType)
	}
}
