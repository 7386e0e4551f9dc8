package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/normalize"
)

var structureTimeout time.Duration

// structureCmd represents the structure command
var structureCmd = &cobra.Command{
	Use:   "structure <payload.json>...",
	Short: "Structure one or more analysis payloads into question documents",
	Long: `Structure reads raw analysis payloads (one JSON file per job),
normalizes producer field variants, assigns reading order, extracts
question-number anchors, merges elements into question trees, and
persists each result exactly once.

Jobs run concurrently up to pipeline.max_concurrent_jobs; one job's
failure never aborts the batch.

Example:
  sheetwise structure job1.json job2.json
  sheetwise structure --timeout 5m batch/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStructure,
}

func init() {
	rootCmd.AddCommand(structureCmd)

	structureCmd.Flags().DurationVar(&structureTimeout, "timeout", 2*time.Minute, "overall batch timeout")
}

func runStructure(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), structureTimeout)
	defer cancel()
	ctx = common.WithRequestID(ctx, uuid.NewString())

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close()

	inputs := make([]*normalize.JobInput, 0, len(args))
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		in, err := normalize.Normalize(raw)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}
		inputs = append(inputs, in)
	}

	reports := a.processor.ProcessAll(ctx, inputs)

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s  FAILED  %v\n", r.JobID, r.Err)
			continue
		}
		fmt.Printf("%s  %s  questions=%d\n", r.JobID, r.Outcome.String(), r.Questions)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(reports))
	}
	return nil
}
