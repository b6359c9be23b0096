package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// schemaMigrator is the part of postgres.Migrator the migrate commands use.
type schemaMigrator interface {
	Up() error
	Down(steps int) error
	Version() (postgres.MigrationStatus, error)
	Force(version int) error
	Close() error
}

var openMigrator = func(dsn, dir string, log logging.Logger) (schemaMigrator, error) {
	return postgres.NewMigrator(dsn, dir, log)
}

type migrateOptions struct {
	dsn  string
	path string
}

// NewMigrateCmd groups the schema migration subcommands. The database comes
// from the config file unless --dsn is given.
func NewMigrateCmd() *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "database URL (default: built from the database config)")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "migrations directory (default: database.migration_path)")

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, opts, func(m schemaMigrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m, fmt.Sprintf("rolled back %d step(s)", steps))
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, opts, func(m schemaMigrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printVersion(cmd, m, "migrations applied")
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, opts, func(m schemaMigrator) error {
					return printVersion(cmd, m, "")
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.Newf(errors.ErrCodeBadRequest, "invalid version %q", args[0])
				}
				return withMigrator(cmd, opts, func(m schemaMigrator) error {
					if err := m.Force(v); err != nil {
						return err
					}
					return printVersion(cmd, m, "version forced")
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, opts *migrateOptions, fn func(schemaMigrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	dsn := opts.dsn
	if dsn == "" {
		dsn = cliCtx.Config.Database.DSN()
	}
	dir := opts.path
	if dir == "" {
		dir = cliCtx.Config.Database.MigrationPath
	}
	if dir == "" {
		return errors.New(errors.ErrCodeBadRequest, "no migrations directory: set --path or database.migration_path")
	}

	m, err := openMigrator(dsn, dir, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cliCtx.Logger.Warn("Failed to close migrator", logging.Err(cerr))
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m schemaMigrator, action string) error {
	st, err := m.Version()
	if err != nil {
		return err
	}
	return PrintResult(cmd, &migrationReport{Action: action, Version: st.Version, Dirty: st.Dirty})
}

type migrationReport struct {
	Action  string `json:"action,omitempty"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func (r *migrationReport) RenderText(w io.Writer) error {
	if r.Action != "" {
		fmt.Fprintf(w, "OK: %s\n", r.Action)
	}
	fmt.Fprintf(w, "Schema version: %d", r.Version)
	if r.Dirty {
		warnf(w, " (dirty)")
	}
	fmt.Fprintln(w)
	return nil
}
