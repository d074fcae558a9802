package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"rewards/internal/adapters/backend"
	web "rewards/internal/adapters/http"
	"rewards/internal/adapters/http/middleware"
	"rewards/internal/adapters/metrics"
	"rewards/internal/adapters/storage"
	auditStore "rewards/internal/adapters/storage/audit"
	"rewards/internal/adapters/storage/browserstate"
)

func newWebCommand(a *app) *cobra.Command {
	var addr, backendURL string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run the rewards portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			if backendURL != "" {
				a.cfg.BackendURL = backendURL
			}
			return a.runWeb(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides REWARDS_ADDR)")
	cmd.Flags().StringVar(&backendURL, "backend-url", "", "rewards backend base URL (overrides REWARDS_BACKEND_URL)")
	return cmd
}

// portal is the assembled web server and the pieces runWeb manages around it.
type portal struct {
	handler http.Handler
	metrics http.Handler
	backend *backend.Client
	close   func() error
}

// buildPortal opens the portal database and assembles the portal handler.
// PRE: a.cfg is loaded
// POST: p.close releases the database
func (a *app) buildPortal() (*portal, error) {
	proxies, err := middleware.ParseTrustedProxies(a.cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("REWARDS_TRUSTED_PROXIES: %w", err)
	}
	reg, m := metrics.NewRegistry()
	db, err := openDB(a.cfg.DBPath, storage.PortalSchema, m)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(a.cfg.BackendURL, &http.Client{Timeout: a.cfg.BackendTimeout})
	handler := web.NewMux(web.Deps{
		Backend:      client,
		BrowserState: browserstate.NewSQLiteStore(db),
		Audit:        auditStore.NewSQLiteStore(db),
		Metrics:      m,
	}, web.Options{
		CSRFKey:            a.cfg.CSRFKey,
		CookieHashKey:      a.cfg.CookieKey,
		Secure:             a.cfg.Production(),
		TrustedOrigins:     a.cfg.TrustedOrigins,
		TrustedProxies:     proxies,
		RateLimitPerSecond: a.cfg.RateLimitPerSecond,
		SlowRequest:        a.cfg.SlowRequest,
	})
	return &portal{handler: handler, metrics: metrics.Handler(reg), backend: client, close: db.Close}, nil
}

func (a *app) runWeb(ctx context.Context) error {
	p, err := a.buildPortal()
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.backend.Ping(ctx); err != nil {
		// The portal still serves; logins report the backend as unreachable.
		slog.Warn("server_event", "event", "backend_unreachable", "url", a.cfg.BackendURL, "error", err)
	}
	slog.Info("server_event", "event", "starting", "server", "web",
		"version", a.version, "env", a.cfg.Env, "db", a.cfg.DBPath, "backend", a.cfg.BackendURL)

	if a.cfg.MetricsAddr == "" {
		return serve(ctx, "web", a.cfg.Addr, p.handler)
	}

	// Metrics stay off the public listener. Either server failing stops both.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	metricsErr := make(chan error, 1)
	go func() {
		err := serve(ctx, "metrics", a.cfg.MetricsAddr, p.metrics)
		cancel()
		metricsErr <- err
	}()
	err = serve(ctx, "web", a.cfg.Addr, p.handler)
	cancel()
	return errors.Join(err, <-metricsErr)
}

// openDB opens and migrates a database and wraps it with query timing.
func openDB(path string, schema storage.Schema, m *metrics.Metrics) (*storage.TimedDB, error) {
	db, err := storage.OpenAndMigrate(path, schema)
	if err != nil {
		return nil, fmt.Errorf("%s database: %w", schema, err)
	}
	return storage.NewTimedDB(db, m, 0), nil
}
