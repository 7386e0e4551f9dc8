package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	exportJobID  string
	exportFormat string
	exportOut    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a persisted structured document",
	Long: `Export renders the persisted document of a completed job as JSON or
an XLSX review workbook.

Example:
  sheetwise export --job-id 5e0ee294-... --format xlsx --out review.xlsx
  sheetwise export --job-id 5e0ee294-...`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportJobID, "job-id", "", "job id to export (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default: stdout for json, <job-id>.xlsx for xlsx)")
	_ = exportCmd.MarkFlagRequired("job-id")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobID, err := uuid.Parse(exportJobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", exportJobID, err)
	}

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close()

	switch exportFormat {
	case "json":
		out, err := a.export.ExportJSON(ctx, jobID)
		if err != nil {
			return err
		}
		if exportOut == "" {
			fmt.Println(string(out))
			return nil
		}
		return os.WriteFile(exportOut, out, 0o644)
	case "xlsx":
		out, err := a.export.ExportXLSX(ctx, jobID)
		if err != nil {
			return err
		}
		path := exportOut
		if path == "" {
			path = jobID.String() + ".xlsx"
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	default:
		return fmt.Errorf("unknown format %q (expected json or xlsx)", exportFormat)
	}
}
