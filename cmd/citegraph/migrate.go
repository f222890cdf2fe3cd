package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/observability"
)

const migrateConnectTimeout = 30 * time.Second

// migrateAction runs against an open migrator.
type migrateAction func(m *database.Migrator) error

func newMigrateCommand() *cobra.Command {
	var configPath, path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schema of the PostgreSQL mirror",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml)")
	cmd.PersistentFlags().StringVar(&path, "path", "", "read migrations from this directory instead of the embedded set")

	with := func(action migrateAction) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if path != "" {
				cfg.Database.MigrationPath = path
			}
			return withMigrator(cmd.Context(), cfg, cmd.OutOrStdout(), action)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  with((*database.Migrator).Up),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE:  with((*database.Migrator).Down),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations, or roll back -n",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
				}
				return with(func(m *database.Migrator) error {
					return m.Steps(n)
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: with(func(*database.Migrator) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the migration version without running it, to recover from a failed migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
				}
				return with(func(m *database.Migrator) error {
					return m.Force(v)
				})(cmd, args)
			},
		},
	)
	return cmd
}

// withMigrator connects to the database, runs action and prints the
// resulting schema version to out.
func withMigrator(ctx context.Context, cfg *config.Config, out io.Writer, action migrateAction) error {
	logCfg := observability.DefaultLoggingConfig()
	logCfg.Format = "console"
	logger, closer, err := observability.NewLogger(logCfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = logger.With().Str("component", "migrate").Logger()

	ctx, cancel := context.WithTimeout(ctx, migrateConnectTimeout)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := action(m); err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	_, err = fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)
	return err
}
