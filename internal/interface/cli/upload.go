package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/application/orchestrator"
	fsinfra "github.com/agilenature/filelifecycle/internal/infra/fs"
	persistfile "github.com/agilenature/filelifecycle/internal/infra/persistence/file"
	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
)

func newUploadCmd(c *di.Container) *cobra.Command {
	var limit, batchSize, concurrency int
	var resetExisting bool
	var pollIntervalMS, softDeadlineS, hardDeadlineS int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Drive UNTRACKED (and, with --reset-existing, INDEXED) files through the upload pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				concurrency = c.Config.Concurrency()
			}
			pollInterval := time.Duration(pollIntervalMS) * time.Millisecond
			if pollInterval <= 0 {
				pollInterval = c.Config.PollInterval()
			}
			softDeadline := time.Duration(softDeadlineS) * time.Second
			if softDeadline <= 0 {
				softDeadline = c.Config.PollSoftDeadline()
			}
			hardDeadline := time.Duration(hardDeadlineS) * time.Second
			if hardDeadline <= 0 {
				hardDeadline = c.Config.PollHardDeadline()
			}

			opts := orchestrator.Options{
				Limit:         limit,
				BatchSize:     batchSize,
				Concurrency:   concurrency,
				ResetExisting: resetExisting,
				PollInterval:  pollInterval,
				SoftDeadline:  softDeadline,
				HardDeadline:  hardDeadline,
			}
			summary, err := c.Orchestrator.RunBatch(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			if err := recordBatch(c, summary); err != nil && c.Logger != nil {
				c.Logger.Warn("upload: batch history not recorded: %v", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			fmt.Printf("batch_run_id=%s indexed=%d failed=%d skipped=%d\n",
				summary.BatchRunID, summary.Indexed, summary.Failed, summary.Skipped)
			for _, o := range summary.Outcomes {
				if o.Reason != "" {
					fmt.Printf("  %s -> %s (%s)\n", o.FilePath, o.Final, o.Reason)
				} else {
					fmt.Printf("  %s -> %s\n", o.FilePath, o.Final)
				}
			}
			// Per-file FAILED outcomes are recorded-and-reported batch
			// content, not an engine error: the process exits 0 as long as
			// RunBatch itself completed, per the CLI's documented exit-code
			// contract (a batch that merely contains FAILED files is not a
			// reason to fail the command).
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of files to process this batch (0 = unbounded)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Reserved for future batching; currently informational only")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Bounded worker pool size (0 = configured default)")
	cmd.Flags().BoolVar(&resetExisting, "reset-existing", false, "Also reset and re-upload already-INDEXED files")
	cmd.Flags().IntVar(&pollIntervalMS, "poll-interval-ms", 0, "Interval between PollOperation calls in milliseconds (0 = configured default)")
	cmd.Flags().IntVar(&softDeadlineS, "soft-deadline-s", 0, "Seconds before falling back to FindStoreDocForRaw (0 = configured default)")
	cmd.Flags().IntVar(&hardDeadlineS, "hard-deadline-s", 0, "Seconds before giving up and failing the file (0 = configured default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the batch summary as JSON")

	return cmd
}

// recordBatch persists two operability artifacts under the engine's home
// directory, both derived from batch_run_id for log correlation: an
// overwritten "last-batch.json" snapshot of the most recent run (atomic
// write via afero, so a crash mid-write never leaves a half-written
// snapshot behind), and an appended line in "batch-history.ndjson" so an
// operator can reconstruct the sequence of runs without re-querying the DB.
func recordBatch(c *di.Container, summary *orchestrator.BatchSummary) error {
	home := c.Config.Home()
	if home == "" {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal batch summary: %w", err)
	}
	if err := persistfile.WriteFileAtomic(c.FS.Fs, filepath.Join(home, "last-batch.json"), data); err != nil {
		return fmt.Errorf("write last-batch.json: %w", err)
	}

	if err := fsinfra.AppendNDJSONLine(filepath.Join(home, "batch-history.ndjson"), summary); err != nil {
		return fmt.Errorf("append batch-history.ndjson: %w", err)
	}
	return nil
}
