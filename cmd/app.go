package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/config"
	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/database"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
	"github.com/kozaktomas/photo-picker/internal/importer"
	"github.com/kozaktomas/photo-picker/internal/logging"
	"github.com/kozaktomas/photo-picker/internal/oauth"
	"github.com/kozaktomas/photo-picker/internal/picker"
	"github.com/kozaktomas/photo-picker/internal/recognizer"
)

// app holds the components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	backends   *database.Backends
	creds      *credential.Store
	oauth      *oauth.Client
	picker     *picker.Client
	downloader *picker.Downloader
	images     *imagestore.Store
	recognizer *recognizer.Client // nil when RECOGNIZER_URL is unset
}

// newApp loads the configuration and opens every backend it names.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backends, err := database.Open(ctx, cfg, logging.Component(logger, "database"))
	if err != nil {
		return nil, err
	}

	creds, err := credential.NewStore(ctx, backends.Credentials, credential.WithLogger(logging.Component(logger, "credential")))
	if err != nil {
		backends.Close()
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	pickerClient, err := picker.NewClient(cfg.Google.PickerAPIURL, creds,
		picker.WithPageSize(cfg.Picker.PageSize),
		picker.WithLogger(logging.Component(logger, "picker")),
	)
	if err != nil {
		backends.Close()
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		backends:   backends,
		creds:      creds,
		oauth:      oauth.NewClient(cfg.Google, creds, oauth.WithLogger(logging.Component(logger, "oauth"))),
		picker:     pickerClient,
		downloader: picker.NewDownloader(picker.WithDownloadLogger(logging.Component(logger, "download"))),
	}

	storeOpts := []imagestore.Option{imagestore.WithLogger(logging.Component(logger, "imagestore"))}
	if cfg.Recognizer.URL != "" {
		rec, err := recognizer.NewClient(cfg.Recognizer.URL, cfg.Recognizer.Timeout)
		if err != nil {
			backends.Close()
			return nil, err
		}
		a.recognizer = rec
		storeOpts = append(storeOpts, imagestore.WithAnalyzer(rec))
	}
	a.images = imagestore.NewStore(cfg.Storage.ImageDir, backends.Images, storeOpts...)

	return a, nil
}

// newImporter builds an import coordinator reporting to onProgress.
func (a *app) newImporter(onProgress func(importer.ProgressInfo)) *importer.Coordinator {
	return importer.New(a.downloader, a.images,
		importer.WithConcurrency(a.cfg.Picker.ImportConcurrency),
		importer.WithProgress(onProgress),
		importer.WithLogger(logging.Component(a.logger, "importer")),
	)
}

// Close releases the backend connections.
func (a *app) Close() {
	if err := a.backends.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close backends")
	}
}
