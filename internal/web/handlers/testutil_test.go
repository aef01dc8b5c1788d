package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/importer"
	"github.com/kozaktomas/photo-picker/internal/picker"
)

// fakeCredentials is an in-memory credential store.
type fakeCredentials struct {
	mu      sync.Mutex
	cred    *credential.Credential
	cleared int
}

func newFakeCredentials(token string) *fakeCredentials {
	f := &fakeCredentials{}
	if token != "" {
		f.cred = &credential.Credential{
			AccessToken:  token,
			RefreshToken: "refresh",
			Scope:        "photospicker",
			ExpiresAt:    time.Now().Add(time.Hour),
		}
	}
	return f
}

func (f *fakeCredentials) Get() *credential.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred == nil {
		return nil
	}
	c := *f.cred
	return &c
}

func (f *fakeCredentials) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred != nil && time.Now().Before(f.cred.ExpiresAt)
}

func (f *fakeCredentials) AccessToken() (string, error) {
	if !f.IsValid() {
		return "", credential.ErrNotAuthenticated
	}
	return f.Get().AccessToken, nil
}

func (f *fakeCredentials) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = nil
	f.cleared++
	return nil
}

// fakePickerAPI serves canned sessions and items.
type fakePickerAPI struct {
	mu        sync.Mutex
	session   *picker.Session
	items     []picker.PickedMediaItem
	getErr    error
	listErr   error
	gets      int
	deleted   []string
	pageToken string
}

func (f *fakePickerAPI) CreateSession(context.Context) (*picker.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.getErr
}

func (f *fakePickerAPI) GetSession(_ context.Context, id string) (*picker.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := *f.session
	s.ID = id
	return &s, nil
}

func (f *fakePickerAPI) ListPickedItems(_ context.Context, _ string, pageToken string) (*picker.ItemsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageToken = pageToken
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &picker.ItemsPage{Items: f.items}, nil
}

func (f *fakePickerAPI) ListAllPickedItems(context.Context, string) ([]picker.PickedMediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, f.listErr
}

func (f *fakePickerAPI) DeleteSession(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakePickerAPI) deletedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// importerFunc adapts a function to ItemImporter.
type importerFunc func(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource) (*importer.Result, error)

func (f importerFunc) Import(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource) (*importer.Result, error) {
	return f(ctx, items, tokens)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
