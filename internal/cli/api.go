package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"rewards/internal/adapters/email"
	"rewards/internal/adapters/loyaltyapi"
	"rewards/internal/adapters/metrics"
	"rewards/internal/adapters/storage"
	principalStore "rewards/internal/adapters/storage/principal"
)

func newAPICommand(a *app) *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the loyalty auth API",
		Long: `api serves the role-specific login endpoints and /auth/me that the
portal signs users in against. Use it for local development and tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.APIAddr = addr
			}
			return a.runAPI(cmd.Context(), seed)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides REWARDS_API_ADDR)")
	cmd.Flags().BoolVar(&seed, "seed", false, "load the demo principals before serving")
	return cmd
}

// buildAPI opens the API database and assembles the API handler.
// PRE: a.cfg is loaded
// POST: The returned close func releases the database
func (a *app) buildAPI(ctx context.Context, seed bool) (http.Handler, func() error, error) {
	reg, m := metrics.NewRegistry()
	db, err := openDB(a.cfg.APIDBPath, storage.APISchema, m)
	if err != nil {
		return nil, nil, err
	}
	principals := principalStore.NewSQLiteStore(db)

	if seed {
		if err := a.seedPrincipals(ctx, principals, ""); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	notices := email.New(a.cfg.ResendKey, a.cfg.ResendFrom)
	if a.cfg.ResendKey == "" && a.cfg.Production() {
		slog.Warn("server_event", "event", "email_disabled", "reason", "REWARDS_RESEND_KEY is not set")
	}

	handler := loyaltyapi.NewServer(loyaltyapi.Deps{
		Principals: principals,
		Tokens:     loyaltyapi.NewIssuer(a.cfg.JWTSecret, a.cfg.AccessTokenTTL),
		Notices:    notices,
		Metrics:    m,
		Gatherer:   reg,
	}).Handler()
	return handler, db.Close, nil
}

func (a *app) runAPI(ctx context.Context, seed bool) error {
	handler, closeDB, err := a.buildAPI(ctx, seed)
	if err != nil {
		return err
	}
	defer closeDB()

	slog.Info("server_event", "event", "starting", "server", "api",
		"version", a.version, "env", a.cfg.Env, "db", a.cfg.APIDBPath)
	return serve(ctx, "api", a.cfg.APIAddr, handler)
}
