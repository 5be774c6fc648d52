package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"v.io/x/lib/cmdline"

	"github.com/vibesql/connector/internal/database"
	"github.com/vibesql/connector/internal/migrate"
)

const mysqlWarning = `
WARNING: MySQL doesn't support rolling back DDL transactions, so any failure
after migrations have started requires restoring from backup or manually
repairing database state!
`

var cmdMigrate = &cmdline.Command{
	Name:  "migrate",
	Short: "Database schema migrations",
	Long: `
Applies or rolls back the .sql migrations in a directory. Each file holds
"-- +migrate Up" and "-- +migrate Down" sections, see
github.com/rubenv/sql-migrate.
` + mysqlWarning,
	Children: []*cmdline.Command{cmdMigrateUp, cmdMigrateDown},
}

var cmdMigrateUp = &cmdline.Command{
	Runner: runWithConn(runMigrate(migrate.Up)),
	Name:   "up",
	Short:  "Apply new database schema migrations",
	Long: `
Applies pending migrations in order.
` + mysqlWarning,
}

var cmdMigrateDown = &cmdline.Command{
	Runner: runWithConn(runMigrate(migrate.Down)),
	Name:   "down",
	Short:  "Roll back database schema migrations",
	Long: `
Rolls back applied migrations, newest first.
` + mysqlWarning,
}

var (
	flagMigrationsDir   string
	flagMigrationsTable string
	flagDryRun          bool
	flagUpLimit         int
	flagDownLimit       int
)

func init() {
	cmdMigrate.Flags.StringVar(&flagMigrationsDir, "dir", migrate.DefaultDir, "Path to directory containing migrations.")
	cmdMigrate.Flags.StringVar(&flagMigrationsTable, "table", migrate.DefaultTable, "Table recording applied migrations.")
	cmdMigrate.Flags.BoolVar(&flagDryRun, "dry-run", false, "Show the planned migrations, but do not apply them.")
	cmdMigrateUp.Flags.IntVar(&flagUpLimit, "limit", 0, "Maximum number of up migrations to apply. 0 for unlimited.")
	cmdMigrateDown.Flags.IntVar(&flagDownLimit, "limit", 1, "Maximum number of down migrations to apply. 0 for unlimited.")
}

// connCommand is wrapped with runWithConn.
type connCommand func(conn *database.Connection, env *cmdline.Env, args []string) error

// runWithConn opens the configured database around fx and closes it after.
func runWithConn(fx connCommand) cmdline.Runner {
	return cmdline.RunnerFunc(func(env *cmdline.Env, args []string) (rerr error) {
		if len(args) > 0 {
			return env.UsageErrorf("unexpected arguments: %s", strings.Join(args, " "))
		}

		cfg := database.ConfigFromEnv()
		conn, err := database.NewConnection(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
		}
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("[ERROR] Failed to close database connection: %v", cerr)
				if rerr == nil {
					rerr = cerr
				}
			}
		}()

		if cfg.Driver == database.DriverMySQL {
			log.Printf("[WARN] MySQL cannot roll back DDL; a failed migration may need manual repair")
		}

		return fx(conn, env, args)
	})
}

// runMigrate returns a connCommand applying migrations in direction.
func runMigrate(direction migrate.Direction) connCommand {
	return func(conn *database.Connection, env *cmdline.Env, _ []string) error {
		limit := flagUpLimit
		if direction == migrate.Down {
			limit = flagDownLimit
		}

		m := migrate.NewFromDir(conn, flagMigrationsDir, flagMigrationsTable)

		if flagDryRun {
			planned, err := m.Plan(direction, limit)
			if err != nil {
				return err
			}
			for i, p := range planned {
				fmt.Fprintf(env.Stdout, "#%d: %q\n", i, p.ID)
				for _, q := range p.Queries {
					fmt.Fprintln(env.Stdout, strings.TrimSpace(q))
				}
			}
			return nil
		}

		var (
			applied int
			err     error
		)
		if direction == migrate.Down {
			applied, err = m.Down(limit)
		} else {
			applied, err = m.Up(limit)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(env.Stdout, "Successfully applied %d migrations\n", applied)
		return nil
	}
}
