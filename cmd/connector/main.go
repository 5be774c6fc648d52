// Command connector serves key/value SQL over HTTP and manages the schema
// migrations of the database behind it.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"v.io/x/lib/cmdline"

	"github.com/vibesql/connector/internal/connector"
	"github.com/vibesql/connector/internal/database"
	"github.com/vibesql/connector/internal/server"
	"github.com/vibesql/connector/internal/version"
)

const envHelp = `
Environment:
  CONNECTOR_DRIVER         mysql, postgres or sqlite (default mysql)
  DB_HOST, DB_PORT         Database server address (default 127.0.0.1 and the driver's port)
  DB_USER, DB_PASSWORD     Credentials (default user root)
  DB_SCHEMA                Database name
  DB_PATH                  Database file when CONNECTOR_DRIVER=sqlite
  DB_SSLMODE               PostgreSQL sslmode (default disable)
  CONNECTOR_BIND_HOST      Address the server binds to (default 127.0.0.1)
  CONNECTOR_PORT           Port the server listens on (default 5174)
  CONNECTOR_QUERY_TIMEOUT  Statement timeout, e.g. 30s (default none)
  CONNECTOR_MAX_ROWS       Maximum rows returned by a select (default unlimited)
  CONNECTOR_LOG_LEVEL      debug, info or error (default info)
`

func main() {
	cmdline.Main(cmdRoot)
}

var cmdRoot = &cmdline.Command{
	Name:  "connector",
	Short: "Key/value SQL over MySQL, PostgreSQL and SQLite",
	Long: `
Connector runs key/value shaped statements against a single database
connection and exposes them over a JSON HTTP API. It also applies and rolls
back schema migrations.
` + envHelp,
	Children: []*cmdline.Command{cmdServe, cmdMigrate, cmdVersion},
}

var cmdServe = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runServe),
	Name:   "serve",
	Short:  "Start the HTTP server",
	Long: `
Connects to the configured database and serves the connector API until
interrupted.
` + envHelp,
}

var cmdVersion = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runVersion),
	Name:   "version",
	Short:  "Print version information",
	Long: `
Prints the version, commit, build date and supported drivers.
`,
}

func runServe(env *cmdline.Env, args []string) error {
	if len(args) > 0 {
		return env.UsageErrorf("serve: unexpected arguments %v", args)
	}

	log.Printf("[INFO] Starting Connector %s", version.Get().Short())

	cfg := database.ConfigFromEnv()
	opts, err := optionsFromEnv()
	if err != nil {
		return err
	}

	startTime := time.Now()
	conn, err := connector.New(context.Background(), cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}
	defer func() {
		if err := conn.Destroy(); err != nil {
			log.Printf("[ERROR] Failed to close database connection: %v", err)
		}
	}()
	log.Printf("[INFO] Connected to %s database in %v", cfg.Driver, time.Since(startTime))

	httpServer := server.NewServer(conn)

	log.Printf("[INFO] Starting HTTP server...")
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	defer func() {
		if err := httpServer.Stop(); err != nil {
			log.Printf("[ERROR] Failed to stop HTTP server: %v", err)
		}
	}()

	log.Printf("[INFO] Connector ready in %v", time.Since(startTime))
	log.Printf("[INFO] HTTP API: http://%s", httpServer.Addr())
	log.Printf("[INFO] Press Ctrl+C to stop")

	httpServer.WaitForShutdown()

	log.Printf("[INFO] Shutdown complete")
	return nil
}

func runVersion(env *cmdline.Env, args []string) error {
	if len(args) > 0 {
		return env.UsageErrorf("version: unexpected arguments %v", args)
	}
	fmt.Fprintln(env.Stdout, version.Get().Full())
	return nil
}
