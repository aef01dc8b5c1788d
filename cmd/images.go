package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Work with the local image store",
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored images",
	Args:  cobra.NoArgs,
	RunE:  runImagesList,
}

var imagesAnalyzeCmd = &cobra.Command{
	Use:   "analyze <image-id>",
	Short: "Run face recognition on a stored image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesAnalyze,
}

var imagesEnrollCmd = &cobra.Command{
	Use:     "enroll <image-id>",
	Short:   "Register the person in a stored image with the recognition service",
	Example: `  photo-picker images enroll 0b6f... --name "Jiří"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImagesEnroll,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
	imagesCmd.AddCommand(imagesListCmd, imagesAnalyzeCmd, imagesEnrollCmd)

	imagesListCmd.Flags().Bool("json", false, "Output as JSON")
	imagesAnalyzeCmd.Flags().Bool("json", false, "Output as JSON")
	imagesEnrollCmd.Flags().String("name", "", "Name of the person shown in the image")
}

func runImagesList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.images.List(cmd.Context())
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No images stored")
		return nil
	}
	printRecords(records)
	fmt.Printf("\n%d images\n", len(records))
	return nil
}

func runImagesAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.images.Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No faces recognised")
		return nil
	}

	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, table.Row{r.Name, strconv.FormatFloat(r.Similarity, 'f', 3, 64)})
	}
	fmt.Println(renderTable(table.Row{"Name", "Similarity"}, rows, 2))
	return nil
}

func runImagesEnroll(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(mustGetString(cmd, "name"))
	if name == "" {
		return errors.New("--name is required")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.recognizer == nil {
		return imagestore.ErrNoAnalyzer
	}
	rec, data, err := a.images.Open(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := a.recognizer.Enroll(cmd.Context(), name, rec.Filename, data); err != nil {
		return fmt.Errorf("enrolling %s: %w", name, err)
	}
	fmt.Printf("Enrolled %s from %s\n", name, rec.ID)
	return nil
}

// printRecords renders image records as a table.
func printRecords(records []imagestore.Record) {
	if len(records) == 0 {
		return
	}
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		size := "-"
		if r.Width > 0 {
			size = fmt.Sprintf("%dx%d", r.Width, r.Height)
		}
		rows = append(rows, table.Row{
			r.ID,
			r.OriginalFilename,
			r.Source,
			size,
			strconv.FormatInt(r.Size, 10),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Println(renderTable(table.Row{"ID", "Original", "Source", "Pixels", "Bytes", "Created"}, rows, 5))
}

// renderTable renders rows with a rounded style; columns from rightFrom
// (1-based) on are right aligned.
func renderTable(header table.Row, rows []table.Row, rightFrom int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	tw.AppendRows(rows)

	configs := make([]table.ColumnConfig, 0, len(header))
	for i := range header {
		align := text.AlignLeft
		if i+1 >= rightFrom {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
