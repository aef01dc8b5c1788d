package handlers

import (
	"net/http"

	"github.com/kozaktomas/photo-picker/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse describes the non-secret runtime configuration.
type ConfigResponse struct {
	CredentialsBackend   string `json:"credentials_backend"`
	MetadataBackend      string `json:"metadata_backend"`
	RecognizerConfigured bool   `json:"recognizer_configured"`
	PollIntervalMS       int64  `json:"poll_interval_ms"`
	PageSize             int    `json:"page_size"`
	ImportConcurrency    int    `json:"import_concurrency"`
	GoogleConfigured     bool   `json:"google_configured"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		CredentialsBackend:   h.config.Credentials.Backend,
		MetadataBackend:      h.config.Storage.MetadataBackend,
		RecognizerConfigured: h.config.Recognizer.URL != "",
		PollIntervalMS:       h.config.Picker.PollInterval.Milliseconds(),
		PageSize:             h.config.Picker.PageSize,
		ImportConcurrency:    h.config.Picker.ImportConcurrency,
		GoogleConfigured:     h.config.Google.ClientID != "",
	})
}
