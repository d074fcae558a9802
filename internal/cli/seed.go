package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rewards/internal/adapters/storage"
	principalStore "rewards/internal/adapters/storage/principal"
	"rewards/internal/application/orchestrators"
)

func newSeedCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load principals into the API database",
		Long: `seed creates every principal listed in a YAML file that does not exist
yet. Without --file the built-in demo accounts are loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(a.cfg.APIDBPath, storage.APISchema, nil)
			if err != nil {
				return err
			}
			defer db.Close()
			return a.seedPrincipals(cmd.Context(), principalStore.NewSQLiteStore(db), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (default: built-in demo principals)")
	return cmd
}

// seedStore is what seeding needs from the principal store.
type seedStore interface {
	orchestrators.PrincipalStoreForSeed
	Count(ctx context.Context) (int, error)
}

// seedPrincipals runs the seed orchestrator and reports what it did.
func (a *app) seedPrincipals(ctx context.Context, store seedStore, file string) error {
	var data []byte
	if file != "" {
		var err error
		if data, err = os.ReadFile(file); err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
	}
	report, err := orchestrators.ExecuteSeedPrincipals(ctx,
		orchestrators.SeedPrincipalsInput{Data: data, BcryptCost: a.cfg.BcryptCost},
		orchestrators.SeedPrincipalsDeps{Principals: store})
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count principals: %w", err)
	}
	slog.Info("seed_event", "event", "principals_seeded", "created", report.Created, "skipped", report.Skipped, "total", total)
	fmt.Fprintf(a.out, "principals: %d created, %d already present, %d total\n", report.Created, report.Skipped, total)
	return nil
}
