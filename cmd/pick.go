package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-picker/internal/importer"
	"github.com/kozaktomas/photo-picker/internal/logging"
	"github.com/kozaktomas/photo-picker/internal/picker"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick photos in Google Photos and import them",
	Long: `Create a picking session, wait until the selection is finished in Google
Photos, and import every picked item into the local image store.

Examples:
  # Start a new session and import the selection
  photo-picker pick

  # Resume an existing session
  photo-picker pick --session 5c1a...

  # Download four items at a time and keep the session afterwards
  photo-picker pick --concurrency 4 --keep-session`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)

	pickCmd.Flags().String("session", "", "Use an existing picking session instead of creating one")
	pickCmd.Flags().Int("concurrency", 0, "Number of parallel downloads (overrides IMPORT_CONCURRENCY)")
	pickCmd.Flags().Bool("keep-session", false, "Do not delete the picking session after the import")
	pickCmd.Flags().Bool("json", false, "Output the import result as JSON")
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if n := mustGetInt(cmd, "concurrency"); n > 0 {
		a.cfg.Picker.ImportConcurrency = n
	}
	jsonOutput := mustGetBool(cmd, "json")

	if !a.creds.IsValid() {
		return errors.New("not authenticated, run \"photo-picker auth url\" first")
	}

	session, err := resolvePickSession(ctx, a, mustGetString(cmd, "session"))
	if err != nil {
		return err
	}

	poller := picker.NewPoller(a.picker, a.creds,
		picker.WithDefaultInterval(a.cfg.Picker.PollInterval),
		picker.WithPollerLogger(logging.Component(a.logger, "poller")),
	)
	session, err = picker.WaitForSession(ctx, poller, session.ID)
	if err != nil {
		return fmt.Errorf("waiting for selection: %w", err)
	}

	items, err := a.picker.ListAllPickedItems(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("listing picked items: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%d items picked\n", len(items))

	bar := newImportProgressBar(len(items), jsonOutput)
	result, err := a.newImporter(func(info importer.ProgressInfo) {
		if bar != nil {
			_ = bar.Add(1)
		}
	}).Import(ctx, items, a.creds)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil && result == nil {
		return err
	}

	if mustGetBool(cmd, "keep-session") {
		fmt.Fprintf(os.Stderr, "Keeping session %s\n", session.ID)
	} else {
		a.picker.DeleteSession(context.WithoutCancel(ctx), session.ID)
	}

	if jsonOutput {
		if outErr := outputJSON(result); outErr != nil {
			return outErr
		}
		return err
	}

	printRecords(result.Records)
	for _, f := range result.Failures {
		fmt.Printf("  FAILED %s: %s\n", f.Label, f.Error)
	}
	fmt.Printf("\nImported %d of %d items\n", len(result.Records), len(items))
	return err
}

// resolvePickSession loads the session named by id or creates a new one
// and tells the user where to pick.
func resolvePickSession(ctx context.Context, a *app, id string) (*picker.Session, error) {
	if id != "" {
		session, err := a.picker.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		return session, nil
	}

	session, err := a.picker.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Open this URL and select your photos:")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, session.PickerURI)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Waiting for session %s...\n", session.ID)
	return session, nil
}

func newImportProgressBar(count int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput || count == 0 {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
