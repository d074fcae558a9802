// Package cli defines the rewards command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"rewards/internal/config"
	"rewards/internal/logging"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	envFile string
	version string
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
}

// NewRootCommand builds the rewards command with every subcommand attached.
// PRE: none
// POST: Config and the default logger are loaded before any subcommand runs
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "rewards",
		Short: "Car wash rewards portal",
		Long: `rewards runs the multi-tenant car wash loyalty portal and the auth API
it signs users in against. Configuration comes from REWARDS_* environment
variables and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat, version)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "env file to read (default .env)")

	root.AddCommand(
		newWebCommand(a),
		newAPICommand(a),
		newMigrateCommand(a),
		newSeedCommand(a),
		newPrincipalsCommand(a),
	)
	return root
}

// Execute runs the command tree until ctx is cancelled or the command returns.
func Execute(ctx context.Context, version string, args []string) error {
	root := NewRootCommand(version)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("rewards: %w", err)
	}
	return nil
}
