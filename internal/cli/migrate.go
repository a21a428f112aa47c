package cli

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/migrate"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/store"
)

// MigrateOptions holds flags shared by the migrate subcommands.
type MigrateOptions struct {
	*RootOptions
	Driver   string
	Database string
	DSN      string
	Schema   string
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the cast_embeds schema",
		Long: `Apply, reverse, and inspect schema migrations for the normalized
embed table.

Example:
  fcembeds migrate up --driver sqlite --db ./embeds.db
  fcembeds migrate status --dsn postgres://... --schema public`,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "sqlite", "database driver (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (sqlite driver)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "Postgres DSN (postgres driver)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", store.DefaultTargetSchema, "Postgres schema (postgres driver)")

	cmd.AddCommand(newMigrateUpCommand(opts))
	cmd.AddCommand(newMigrateDownCommand(opts))
	cmd.AddCommand(newMigrateStatusCommand(opts))
	cmd.AddCommand(newMigrateHistoryCommand(opts))

	return cmd
}

func newMigrateUpCommand(opts *MigrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "up [revision]",
		Short:         "Apply migrations up to a revision (default: head)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(m *migrate.Manager) error {
				target := "head"
				if len(args) == 1 {
					target = args[0]
				}
				if err := m.Upgrade(cmd.Context(), target); err != nil {
					return WrapExitError(ExitFailure, "upgrade failed", err)
				}
				return reportRevision(opts, cmd, m)
			})
		},
	}
}

func newMigrateDownCommand(opts *MigrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "down [revision]",
		Short:         "Reverse migrations down to a revision (default: base)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(m *migrate.Manager) error {
				target := "base"
				if len(args) == 1 {
					target = args[0]
				}
				if err := m.Downgrade(cmd.Context(), target); err != nil {
					return WrapExitError(ExitFailure, "downgrade failed", err)
				}
				return reportRevision(opts, cmd, m)
			})
		},
	}
}

func newMigrateStatusCommand(opts *MigrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the current and pending revisions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(m *migrate.Manager) error {
				current, err := m.CurrentRevision(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "reading revision", err)
				}
				pending, err := m.PendingRevisions(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "reading revision", err)
				}

				if opts.Format == "json" {
					formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
					return formatter.Success(map[string]any{
						"current": current,
						"pending": pending,
					})
				}
				if current == "" {
					current = "(none)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current: %s\n", current)
				for _, rev := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending: %s\n", rev)
				}
				return nil
			})
		},
	}
}

func newMigrateHistoryCommand(opts *MigrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "List all known revisions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(m *migrate.Manager) error {
				history := m.History()
				if opts.Format == "json" {
					formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
					return formatter.Success(history)
				}
				for _, entry := range history {
					parent := entry.Parent
					if parent == "" {
						parent = "(base)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s <- %s: %s\n", entry.Revision, parent, entry.Description)
				}
				return nil
			})
		},
	}
}

// withManager opens the configured database, builds a manager, and
// ensures the connection is released.
func withManager(opts *MigrateOptions, cmd *cobra.Command, fn func(*migrate.Manager) error) error {
	switch opts.Driver {
	case "sqlite":
		if opts.Database == "" {
			return NewExitError(ExitCommandError, "sqlite driver requires --db")
		}
		db, err := sql.Open("sqlite3", opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		m, err := migrate.New(migrate.NewSQLConn(db), migrate.DialectSQLite)
		if err != nil {
			return WrapExitError(ExitCommandError, "building migration manager", err)
		}
		return fn(m)

	case "postgres":
		if opts.DSN == "" {
			return NewExitError(ExitCommandError, "postgres driver requires --dsn")
		}
		pool, err := pgxpool.New(cmd.Context(), opts.DSN)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer pool.Close()

		m, err := migrate.New(migrate.NewPoolConn(pool), migrate.DialectPostgres,
			migrate.WithSchema(opts.Schema))
		if err != nil {
			return WrapExitError(ExitCommandError, "building migration manager", err)
		}
		return fn(m)

	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown driver %q", opts.Driver))
	}
}

func reportRevision(opts *MigrateOptions, cmd *cobra.Command, m *migrate.Manager) error {
	current, err := m.CurrentRevision(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "reading revision", err)
	}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(map[string]any{"current": current})
	}
	if current == "" {
		current = "(none)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "current: %s\n", current)
	return nil
}
