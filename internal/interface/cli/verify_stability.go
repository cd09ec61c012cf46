package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	fsinfra "github.com/agilenature/filelifecycle/internal/infra/fs"
	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
	"github.com/agilenature/filelifecycle/internal/verifier"
)

func newVerifyStabilityCmd(c *di.Container) *cobra.Command {
	var minCitations, sampleSize, topM int
	var searchQuery string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify-stability",
		Short: "Run the seven temporal stability assertions against the durable store and the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			tolerance, err := verifier.LoadCategoryTolerance(c.Config.TolerancePath())
			if err != nil {
				return fmt.Errorf("verify-stability: load tolerance: %w", err)
			}
			if searchQuery == "" {
				searchQuery = c.Config.SearchQuery()
			}

			opts := verifier.Options{
				StuckThreshold:    c.Config.StuckThreshold(),
				SearchQuery:       searchQuery,
				MinCitations:      minCitations,
				SampleSize:        sampleSize,
				TopM:              topM,
				CategoryTolerance: tolerance,
			}

			report, err := c.Verifier.Run(cmd.Context(), opts)
			if err != nil {
				if errors.Is(err, verifier.ErrConfig) {
					fmt.Fprintf(os.Stderr, "verify-stability: configuration error: %v\n", err)
					os.Exit(2)
				}
				return fmt.Errorf("verify-stability: %w", err)
			}

			if err := writeReport(c, report); err != nil && c.Logger != nil {
				c.Logger.Warn("verify-stability: report not persisted: %v", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				for _, a := range report.Assertions {
					status := "PASS"
					if !a.Passed {
						status = "FAIL"
					}
					fmt.Printf("%s: %s %s\n", status, a.Name, a.Detail)
				}
			}

			os.Exit(report.ExitCode())
			return nil
		},
	}

	cmd.Flags().StringVar(&searchQuery, "search-query", "", "Canonical semantic query for the search-returns-results assertion (default: configured)")
	cmd.Flags().IntVar(&minCitations, "min-citations", 0, "Minimum citations the search assertion requires (0 = built-in default of 1)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "Number of INDEXED files sampled for per-file searchability (0 = built-in default of 20)")
	cmd.Flags().IntVar(&topM, "top-m", 0, "Result-list depth searched for each sampled file's own citation (0 = built-in default of 5)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full report as JSON")

	return cmd
}

// writeReport persists the verifier's report under home/reports, named
// with a sortable ULID so consecutive runs list in chronological order
// without parsing timestamps. A failure to persist never fails the
// command: the report printed to stdout/exit code is still authoritative.
func writeReport(c *di.Container, report *verifier.Report) error {
	home := c.Config.Home()
	if home == "" {
		return nil
	}
	path := filepath.Join(home, "reports", ulid.Make().String()+".json")
	return fsinfra.AtomicWriteJSON(path, report)
}
