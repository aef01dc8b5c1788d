package picker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Media types reported by the Picker API.
const (
	MediaTypePhoto = "PHOTO"
	MediaTypeVideo = "VIDEO"
)

// Session is a Google Photos picking session.
type Session struct {
	ID            string        `json:"id"`
	PickerURI     string        `json:"pickerUri"`
	MediaItemsSet bool          `json:"mediaItemsSet"`
	PollingConfig PollingConfig `json:"pollingConfig"`
	ExpireTime    *time.Time    `json:"expireTime,omitempty"`
}

// PollingConfig is the server's polling recommendation for a session.
type PollingConfig struct {
	PollInterval Duration `json:"pollInterval,omitempty"`
	TimeoutIn    Duration `json:"timeoutIn,omitempty"`
}

// Duration decodes Google duration strings such as "5s" or "1.5s".
type Duration time.Duration

// UnmarshalJSON accepts a duration string; an empty string is zero.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON encodes the duration in Google's seconds notation.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(fmt.Sprintf("%gs", time.Duration(d).Seconds()))
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PickedMediaItem is one item the user selected in the picker.
type PickedMediaItem struct {
	ID         string     `json:"id"`
	CreateTime *time.Time `json:"createTime,omitempty"`
	Type       string     `json:"type,omitempty"`
	MediaFile  MediaFile  `json:"mediaFile"`
}

// MediaFile references the downloadable bytes of a picked item.
type MediaFile struct {
	BaseURL  string             `json:"baseUrl"`
	MimeType string             `json:"mimeType,omitempty"`
	Filename string             `json:"filename,omitempty"`
	Metadata *MediaFileMetadata `json:"mediaFileMetadata,omitempty"`
}

// MediaFileMetadata carries the dimensions reported by the API.
type MediaFileMetadata struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Label names the item in logs and errors: its filename, or photo_<id>.
func (i PickedMediaItem) Label() string {
	if i.MediaFile.Filename != "" {
		return i.MediaFile.Filename
	}
	return "photo_" + i.ID
}

// ItemsPage is one page of picked items.
type ItemsPage struct {
	Items         []PickedMediaItem `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// itemsResponse accepts both field names the API has used for the item
// list and is normalised by toPage.
type itemsResponse struct {
	PickedMediaItems []PickedMediaItem `json:"pickedMediaItems"`
	MediaItems       []PickedMediaItem `json:"mediaItems"`
	NextPageToken    string            `json:"nextPageToken"`
}

func (r *itemsResponse) toPage() *ItemsPage {
	items := r.PickedMediaItems
	if len(items) == 0 {
		items = r.MediaItems
	}
	if items == nil {
		items = []PickedMediaItem{}
	}
	return &ItemsPage{Items: items, NextPageToken: r.NextPageToken}
}
