package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
)

func newRecoverCmd(c *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Resume write-ahead reset intents left behind by a crash",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.Crawler.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("recover: %w", err)
			}
			fmt.Printf("resumed=%d occ_conflicts=%d\n", report.Resumed, len(report.OCCConflicts))
			for _, p := range report.OCCConflicts {
				fmt.Printf("  conflict: %s\n", p)
			}
			return nil
		},
	}
	return cmd
}
