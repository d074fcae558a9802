package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rewards/internal/adapters/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations to the portal and API databases",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			targets := []struct {
				path   string
				schema storage.Schema
			}{
				{a.cfg.DBPath, storage.PortalSchema},
				{a.cfg.APIDBPath, storage.APISchema},
			}
			for _, t := range targets {
				version, err := migrateOne(t.path, t.schema)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %s at version %d\n", t.schema, t.path, version)
			}
			return nil
		},
	}
}

func migrateOne(path string, schema storage.Schema) (uint, error) {
	db, err := storage.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%s database: %w", schema, err)
	}
	defer db.Close()
	return storage.Migrate(db, schema)
}
