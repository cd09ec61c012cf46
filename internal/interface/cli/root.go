// Package cli wires the engine's cobra command surface onto a
// di.Container built from loaded configuration. Each command's RunE
// opens nothing for itself; wiring happens once in cmd/filelifecycle.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
)

// NewRoot builds the root command with every subcommand attached,
// closing over the container every RunE needs.
func NewRoot(c *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filelifecycle",
		Short: "File Lifecycle Engine",
		RunE:  func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newUploadCmd(c))
	cmd.AddCommand(newRecoverCmd(c))
	cmd.AddCommand(newRetryFailedCmd(c))
	cmd.AddCommand(newVerifyStabilityCmd(c))
	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newVersionCmd())
	return cmd
}
