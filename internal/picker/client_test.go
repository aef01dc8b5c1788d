package picker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/photo-picker/internal/credential"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

// fakeCredentials is a Credentials implementation tracking Clear calls.
type fakeCredentials struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (f *fakeCredentials) AccessToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", credential.ErrNotAuthenticated
	}
	return f.token, nil
}

func (f *fakeCredentials) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

func (f *fakeCredentials) clearedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

func newTestClient(t *testing.T, serverURL string, creds Credentials) *Client {
	t.Helper()
	c, err := NewClient(serverURL+"/v1", creds, WithPageSize(2))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "photospicker", "://bad"} {
		if _, err := NewClient(raw, &fakeCredentials{}); err == nil {
			t.Errorf("expected error for base URL %q", raw)
		}
	}
}

func TestCreateSession(t *testing.T) {
	sessionData := loadTestData(t, "session_created.json")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.valid" {
			t.Errorf("expected bearer header, got %q", got)
		}
		if r.ContentLength > 0 {
			t.Errorf("expected empty body, got %d bytes", r.ContentLength)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(sessionData)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &fakeCredentials{token: "ya29.valid"})
	session, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if session.ID != "2a8f2b0c-5f1e-4f4b-9b7e-4c1d6f0f4e21" {
		t.Errorf("unexpected id %q", session.ID)
	}
	if session.PickerURI == "" {
		t.Error("expected picker URI")
	}
	if session.MediaItemsSet {
		t.Error("new session must not have items set")
	}
	if session.PollingConfig.PollInterval.Std() != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", session.PollingConfig.PollInterval.Std())
	}
	if session.PollingConfig.TimeoutIn.Std() != 30*time.Minute {
		t.Errorf("expected 30m timeout, got %s", session.PollingConfig.TimeoutIn.Std())
	}
	if session.ExpireTime == nil || session.ExpireTime.Year() != 2026 {
		t.Errorf("unexpected expire time %v", session.ExpireTime)
	}
}

func TestCreateSession_NotAuthenticatedMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &fakeCredentials{})
	_, err := c.CreateSession(context.Background())
	if !errors.Is(err, credential.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}

func TestUnauthorizedClearsCredential(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
	}{
		{"create session", func(c *Client) error { _, err := c.CreateSession(context.Background()); return err }},
		{"get session", func(c *Client) error { _, err := c.GetSession(context.Background(), "s1"); return err }},
		{"list items", func(c *Client) error { _, err := c.ListPickedItems(context.Background(), "s1", ""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials."}}`))
			}))
			defer server.Close()

			creds := &fakeCredentials{token: "ya29.expired"}
			c := newTestClient(t, server.URL, creds)

			err := tt.call(c)
			if !errors.Is(err, ErrAuthExpired) {
				t.Fatalf("expected ErrAuthExpired, got %v", err)
			}
			if creds.clearedCount() != 1 {
				t.Errorf("expected credential to be cleared once, got %d", creds.clearedCount())
			}
			if _, err := creds.AccessToken(); err == nil {
				t.Error("expected credential to be gone")
			}
		})
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		call    func(c *Client) error
		wantOp  Op
		status  int
		body    string
		wantMsg string
	}{
		{"create", func(c *Client) error { _, err := c.CreateSession(context.Background()); return err },
			OpCreateSession, http.StatusForbidden, `{"error":{"code":403,"message":"Picker API has not been enabled"}}`, "Picker API has not been enabled"},
		{"get", func(c *Client) error { _, err := c.GetSession(context.Background(), "gone"); return err },
			OpGetSession, http.StatusNotFound, `{"error":{"code":404,"status":"NOT_FOUND"}}`, "NOT_FOUND"},
		{"list", func(c *Client) error { _, err := c.ListPickedItems(context.Background(), "s1", ""); return err },
			OpListItems, http.StatusFailedDependency, `{"error":{"code":400,"message":"FAILED_PRECONDITION: items not set"}}`, "FAILED_PRECONDITION: items not set"},
		{"raw text", func(c *Client) error { _, err := c.GetSession(context.Background(), "s1"); return err },
			OpGetSession, http.StatusBadGateway, "bad gateway from proxy", "bad gateway from proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			creds := &fakeCredentials{token: "ya29.valid"}
			err := tt.call(newTestClient(t, server.URL, creds))

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Op != tt.wantOp || apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("unexpected error %+v", apiErr)
			}
			if creds.clearedCount() != 0 {
				t.Error("non-401 errors must not clear the credential")
			}
		})
	}
}

func TestListPickedItems_NormalisesFieldNames(t *testing.T) {
	items := `[{"id":"a","mediaFile":{"baseUrl":"https://x/a","filename":"a.jpg"}},{"id":"b","mediaFile":{"baseUrl":"https://x/b"}}]`
	bodies := map[string]string{
		"picked": `{"pickedMediaItems":` + items + `}`,
		"media":  `{"mediaItems":` + items + `}`,
	}

	results := map[string][]PickedMediaItem{}
	for name, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		page, err := newTestClient(t, server.URL, &fakeCredentials{token: "t"}).ListPickedItems(context.Background(), "s1", "")
		server.Close()
		if err != nil {
			t.Fatalf("%s: ListPickedItems failed: %v", name, err)
		}
		results[name] = page.Items
	}

	if len(results["picked"]) != 2 {
		t.Fatalf("expected 2 items, got %d", len(results["picked"]))
	}
	if !reflect.DeepEqual(results["picked"], results["media"]) {
		t.Errorf("field names normalised differently:\n%+v\n%+v", results["picked"], results["media"])
	}
}

func TestListPickedItems_QueryAndEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/mediaItems" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sessionId") != "s 1" || q.Get("pageToken") != "tok" || q.Get("pageSize") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	page, err := newTestClient(t, server.URL, &fakeCredentials{token: "t"}).ListPickedItems(context.Background(), "s 1", "tok")
	if err != nil {
		t.Fatalf("ListPickedItems failed: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("expected empty non-nil item list, got %#v", page.Items)
	}
}

func TestListAllPickedItems(t *testing.T) {
	page1 := loadTestData(t, "media_items_page1.json")
	page2 := loadTestData(t, "media_items_page2.json")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			w.Write(page1)
		case "page-2":
			w.Write(page2)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer server.Close()

	items, err := newTestClient(t, server.URL, &fakeCredentials{token: "t"}).ListAllPickedItems(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListAllPickedItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.MediaFile.Filename != "IMG_0001.JPG" || first.MediaFile.MimeType != "image/jpeg" {
		t.Errorf("unexpected first item %+v", first)
	}
	if first.CreateTime == nil || first.CreateTime.Month() != time.August {
		t.Errorf("unexpected create time %v", first.CreateTime)
	}
	if first.MediaFile.Metadata == nil || first.MediaFile.Metadata.Width != 4032 {
		t.Errorf("unexpected metadata %+v", first.MediaFile.Metadata)
	}
	if items[1].Type != MediaTypeVideo {
		t.Errorf("expected video, got %q", items[1].Type)
	}
	if items[2].Label() != "photo_AF1QipM-item-3" {
		t.Errorf("expected synthesized label, got %q", items[2].Label())
	}
}

func TestDeleteSession(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var deleted atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete && r.URL.Path == "/v1/sessions/s1" {
				deleted.Store(true)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		newTestClient(t, server.URL, &fakeCredentials{token: "t"}).DeleteSession(context.Background(), "s1")
		if !deleted.Load() {
			t.Error("expected DELETE request")
		}
	})

	t.Run("failure is swallowed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		// Must not panic or block.
		newTestClient(t, server.URL, &fakeCredentials{token: "t"}).DeleteSession(context.Background(), "s1")
	})

	t.Run("unauthenticated is a no-op", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		newTestClient(t, server.URL, &fakeCredentials{}).DeleteSession(context.Background(), "s1")
		if calls.Load() != 0 {
			t.Errorf("expected no calls, got %d", calls.Load())
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		newTestClient(t, url, &fakeCredentials{token: "t"}).DeleteSession(context.Background(), "s1")
	})
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`"5s"`, 5 * time.Second, false},
		{`"1.5s"`, 1500 * time.Millisecond, false},
		{`""`, 0, false},
		{`"soon"`, 0, true},
		{`5`, 0, true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalJSON([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state %v", tt.in, err)
			continue
		}
		if d.Std() != tt.want {
			t.Errorf("%s: got %s, want %s", tt.in, d.Std(), tt.want)
		}
	}
}
