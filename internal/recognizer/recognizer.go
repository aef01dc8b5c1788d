// Package recognizer is a client for the face recognition service's
// /recognize and /enroll endpoints.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/photo-picker/internal/apierror"
)

// Result is one recognised face.
type Result struct {
	Name       string      `json:"name"`
	Similarity float64     `json:"similarity"`
	BBox       *[4]float64 `json:"bbox,omitempty"` // x1, y1, x2, y2 in image pixels
}

// APIError is a non-2xx response from the recognition service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recognition service returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the recognition service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid recognizer URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid recognizer URL %q: scheme and host are required", baseURL)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Recognize uploads an image and returns the faces the service recognised.
func (c *Client) Recognize(ctx context.Context, filename string, data []byte) ([]Result, error) {
	body, contentType, err := buildMultipart(nil, filename, data)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "recognize", body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apierror.Read(resp.StatusCode, resp.Body)}
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("could not decode recognition results: %w", err)
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// Enroll registers the single face in an image under name.
func (c *Client) Enroll(ctx context.Context, name, filename string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}

	body, contentType, err := buildMultipart(map[string]string{"name": name}, filename, data)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "enroll", body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: apierror.Read(resp.StatusCode, resp.Body)}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(endpoint).String(), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from configured service address
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	return resp, nil
}

// buildMultipart writes the text fields followed by the "image" file part.
func buildMultipart(fields map[string]string, filename string, data []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("could not write field %s: %w", key, err)
		}
	}

	if filename == "" {
		filename = "image.jpg"
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("could not copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("could not close writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}
