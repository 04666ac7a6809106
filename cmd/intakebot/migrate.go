package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the draft store schema",
		Long: `Applies the draft store schema for STORE_DRIVER.

postgres runs the embedded SQL migrations; sqlite auto-migrates the tables.
Safe to run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runMigrate(ctx context.Context, out io.Writer, cfg *config.Config) error {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("migrate: init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	s, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer s.close()

	fmt.Fprintf(out, "%s schema is up to date\n", cfg.Store.Driver)
	return nil
}
