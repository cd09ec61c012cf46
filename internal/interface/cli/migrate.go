package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
	"github.com/agilenature/filelifecycle/internal/infrastructure/persistence/sqlite"
)

// newMigrateCmd is a doctor-style diagnostic: it reports the schema
// version already applied and applies any pending migration, but never
// touches file or transition rows.
func newMigrateCmd(c *di.Container) *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Print the current schema version and apply any pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator := sqlite.NewMigrator(c.RawDB())

			before, err := migrator.Version()
			if err != nil {
				return fmt.Errorf("migrate: read version: %w", err)
			}
			fmt.Printf("schema_version=%s db_path=%s\n", before, c.Config.DBPath())

			if checkOnly {
				return nil
			}

			if err := migrator.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			after, err := migrator.Version()
			if err != nil {
				return fmt.Errorf("migrate: read version: %w", err)
			}
			if after != before {
				fmt.Printf("migrated: %s -> %s\n", before, after)
			} else {
				fmt.Println("no pending migrations")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Report the schema version without applying pending migrations")
	return cmd
}
