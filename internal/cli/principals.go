package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rewards/internal/adapters/storage"
	principalStore "rewards/internal/adapters/storage/principal"
	"rewards/internal/domain/role"
)

func newPrincipalsCommand(a *app) *cobra.Command {
	var roleTag string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "principals",
		Short: "List principals in the API database",
		Long: `principals prints the accounts the loyalty API can sign in, oldest first,
with their lockout state. Use it after seeding or to find a locked account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := principalStore.ListFilter{Limit: limit, Offset: offset}
			if roleTag != "" {
				r, err := role.Parse(roleTag)
				if err != nil {
					return err
				}
				filter.Role = r
			}
			if filter.Limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			db, err := openDB(a.cfg.APIDBPath, storage.APISchema, nil)
			if err != nil {
				return err
			}
			defer db.Close()
			return a.listPrincipals(cmd.Context(), principalStore.NewSQLiteStore(db), filter)
		},
	}
	cmd.Flags().StringVar(&roleTag, "role", "", "only list this role")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

// listPrincipals prints one page of principals followed by the store total.
// PRE: filter.Limit > 0
// POST: Writes a table to a.out
func (a *app) listPrincipals(ctx context.Context, store principalStore.Store, filter principalStore.ListFilter) error {
	list, err := store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list principals: %w", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count principals: %w", err)
	}

	now := time.Now()
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tLOGIN\tNAME\tSTATUS")
	for _, p := range list {
		login := p.Email
		if login == "" {
			login = p.Phone
		}
		status := "active"
		switch {
		case p.IsLocked(now):
			status = "locked until " + p.LockedUntil.UTC().Format(time.RFC3339)
		case !p.Active:
			status = "inactive"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Role, login, p.Name, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d shown, %d principals in total\n", len(list), total)
	return nil
}
