package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-picker/internal/importer"
	"github.com/kozaktomas/photo-picker/internal/logging"
	"github.com/kozaktomas/photo-picker/internal/web"
	"github.com/kozaktomas/photo-picker/internal/web/handlers"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Picker web server.
The server exposes the Google authorization flow, picking sessions, import
jobs with live progress over SSE, and the local image store.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	deps := web.Dependencies{
		Credentials: a.creds,
		OAuth:       a.oauth,
		Picker:      a.picker,
		Images:      a.images,
		NewImporter: func(onProgress func(importer.ProgressInfo)) handlers.ItemImporter {
			return a.newImporter(onProgress)
		},
		Logger: logging.Component(a.logger, "web"),
	}
	if a.recognizer != nil {
		deps.Enroller = a.recognizer
	}
	server := web.NewServer(a.cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	a.logger.Info().
		Str("credentials_backend", a.cfg.Credentials.Backend).
		Str("metadata_backend", a.cfg.Storage.MetadataBackend).
		Bool("authenticated", a.creds.IsValid()).
		Msgf("photo picker listening on http://%s:%d", a.cfg.Web.Host, a.cfg.Web.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
