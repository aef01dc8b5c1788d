package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/apierror"
	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/credential"
)

// Download is the raw content of one picked item.
type Download struct {
	Data        []byte
	ContentType string
}

// Downloader fetches the original bytes of picked items.
type Downloader struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadHTTPClient sets the HTTP client used for downloads.
func WithDownloadHTTPClient(hc *http.Client) DownloaderOption {
	return func(d *Downloader) { d.httpClient = hc }
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(logger zerolog.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = logger }
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadURL returns the item's base URL with the download marker for its
// media type appended.
func DownloadURL(item PickedMediaItem) string {
	suffix := constants.PhotoDownloadSuffix
	if strings.EqualFold(item.Type, MediaTypeVideo) {
		suffix = constants.VideoDownloadSuffix
	}
	return item.MediaFile.BaseURL + suffix
}

// Fetch downloads item with the token from tokens. A missing token fails
// with credential.ErrNotAuthenticated before any request is made. A
// rejected token fails with ErrAuthExpired and, when tokens is the
// credential store, clears it.
func (d *Downloader) Fetch(ctx context.Context, tokens credential.TokenSource, item PickedMediaItem) (*Download, error) {
	token, err := tokens.AccessToken()
	if err != nil {
		return nil, err
	}
	if item.MediaFile.BaseURL == "" {
		return nil, errors.New("media item has no base URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DownloadURL(item), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req) //nolint:gosec // base URL is issued by the Picker API
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", item.Label(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		d.clearAuth(ctx, tokens, item)
		return nil, fmt.Errorf("download %s: %w", item.Label(), ErrAuthExpired)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{
			StatusCode: resp.StatusCode,
			Message:    apierror.Read(resp.StatusCode, resp.Body),
			ItemLabel:  item.Label(),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: could not read body: %w", item.Label(), err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = item.MediaFile.MimeType
	}

	d.logger.Debug().Str("item", item.Label()).Int("bytes", len(data)).Msg("downloaded picked item")
	return &Download{Data: data, ContentType: contentType}, nil
}

// clearAuth forgets the rejected credential if tokens can clear it. A token
// supplied by the caller has nothing stored to clear.
func (d *Downloader) clearAuth(ctx context.Context, tokens credential.TokenSource, item PickedMediaItem) {
	clearer, ok := tokens.(CredentialClearer)
	if !ok {
		return
	}
	d.logger.Warn().Str("item", item.Label()).Msg("download rejected the access token, clearing credential")
	if err := clearer.Clear(context.WithoutCancel(ctx)); err != nil {
		d.logger.Error().Err(err).Msg("failed to clear rejected credential")
	}
}
