package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
	"github.com/kozaktomas/photo-picker/internal/picker"
	"github.com/kozaktomas/photo-picker/internal/recognizer"
)

// SourceUpload tags records created from multipart uploads.
const SourceUpload = "upload"

// ImageStore is the local image store used by ImagesHandler.
type ImageStore interface {
	List(ctx context.Context) ([]imagestore.Record, error)
	Get(ctx context.Context, id string) (*imagestore.Record, error)
	Open(ctx context.Context, id string) (*imagestore.Record, []byte, error)
	Save(ctx context.Context, originalFilename string, data []byte, source string) (*imagestore.Record, error)
	Analyze(ctx context.Context, id string) ([]recognizer.Result, error)
}

// Enroller registers a known person with the recognition service.
type Enroller interface {
	Enroll(ctx context.Context, name, filename string, data []byte) error
}

// ImagesHandler handles the local image endpoints
type ImagesHandler struct {
	store       ImageStore
	newImporter ImporterFactory
	enroller    Enroller
}

// NewImagesHandler creates a new images handler. enroller may be nil when
// no recognition service is configured.
func NewImagesHandler(store ImageStore, newImporter ImporterFactory, enroller Enroller) *ImagesHandler {
	return &ImagesHandler{
		store:       store,
		newImporter: newImporter,
		enroller:    enroller,
	}
}

// createImageRequest carries one picked item and the token to fetch it with.
type createImageRequest struct {
	MediaItem   picker.PickedMediaItem `json:"media_item"`
	AccessToken string                 `json:"access_token"`
}

type enrollRequest struct {
	Name string `json:"name"`
}

// List returns every stored record.
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Create downloads one picked item with the supplied access token and
// stores it.
func (h *ImagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.MediaItem.ID == "" || req.MediaItem.MediaFile.BaseURL == "" {
		respondError(w, http.StatusBadRequest, "media_item.id and media_item.mediaFile.baseUrl are required")
		return
	}

	result, err := h.newImporter(nil).Import(r.Context(), []picker.PickedMediaItem{req.MediaItem}, credential.StaticToken(req.AccessToken))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if len(result.Failures) > 0 {
		respondErr(w, r, result.Failures[0].Err)
		return
	}
	respondJSON(w, http.StatusCreated, result.Records[0])
}

// Upload stores the files of a multipart form field "files".
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	records := make([]imagestore.Record, 0, len(files))
	var failures []map[string]string
	for _, fileHeader := range files {
		rec, err := h.saveUploadedFile(r.Context(), fileHeader)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("filename", sanitizeForLog(fileHeader.Filename)).Msg("upload failed")
			failures = append(failures, map[string]string{"filename": fileHeader.Filename, "error": err.Error()})
			continue
		}
		records = append(records, *rec)
	}

	status := http.StatusCreated
	if len(records) == 0 {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]any{
		"records":  records,
		"failures": failures,
	})
}

// saveUploadedFile reads one multipart file into the store.
func (h *ImagesHandler) saveUploadedFile(ctx context.Context, fileHeader *multipart.FileHeader) (*imagestore.Record, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fileHeader.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s", fileHeader.Filename)
	}
	rec, err := h.store.Save(ctx, fileHeader.Filename, data, SourceUpload)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", fileHeader.Filename, err)
	}
	return rec, nil
}

// Get returns one record.
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// File serves the stored image bytes.
func (h *ImagesHandler) File(w http.ResponseWriter, r *http.Request) {
	rec, data, err := h.store.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	http.ServeContent(w, r, rec.Filename, rec.CreatedAt, bytes.NewReader(data))
}

// Analyze runs face recognition on a stored image.
func (h *ImagesHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// Enroll registers the person shown in a stored image under a name.
func (h *ImagesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if h.enroller == nil {
		respondErr(w, r, imagestore.ErrNoAnalyzer)
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, data, err := h.store.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.enroller.Enroll(r.Context(), req.Name, rec.Filename, data); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "name": req.Name})
}
