package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
)

func newRetryFailedCmd(c *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Move every FAILED file back to UNTRACKED so it re-enters the next upload batch",
		Long:  "The only on-demand escape from FAILED; there is no silent auto-retry, so operators decide when a permanent error (expired credentials, exhausted quota) has actually been fixed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.Crawler.RetryFailed(cmd.Context())
			if err != nil {
				return fmt.Errorf("retry-failed: %w", err)
			}
			fmt.Printf("retried=%d\n", n)
			return nil
		},
	}
	return cmd
}
