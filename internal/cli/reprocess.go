package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reprocessJobID string

// reprocessCmd represents the reprocess command
var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Invalidate a job so its next run supersedes the persisted result",
	Long: `Reprocess removes a job's persisted document and drops its cache
entry. Without this, a completed job's save is final: re-running it
reports already-exists and writes nothing.`,
	RunE: runReprocess,
}

func init() {
	rootCmd.AddCommand(reprocessCmd)

	reprocessCmd.Flags().StringVar(&reprocessJobID, "job-id", "", "job id to invalidate (required)")
	_ = reprocessCmd.MarkFlagRequired("job-id")
}

func runReprocess(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobID, err := uuid.Parse(reprocessJobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", reprocessJobID, err)
	}

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.gateway.Reprocess(ctx, jobID); err != nil {
		return err
	}
	fmt.Printf("%s  reset\n", jobID)
	return nil
}
