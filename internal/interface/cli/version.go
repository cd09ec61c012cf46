package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("filelifecycle %s (%s/%s, %s)\n",
				buildinfo.GetVersion(), runtime.GOOS, runtime.GOARCH, runtime.Version())
			return nil
		},
	}
}
