package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/simaogato/capitalflow-backend/internal/cli"
	"github.com/simaogato/capitalflow-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	env := &cli.Env{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	var dsn string
	flag.StringVar(&env.Driver, "driver", config.DriverSQLite, "Ledger store: sqlite, postgres or memory.")
	flag.StringVar(&dsn, "db", "", "SQLite path or Postgres connection string (defaults to SQLITE_PATH / DB_CONN_STR).")
	flag.StringVar(&env.Currency, "currency", cfg.Currency, "ISO currency used to display amounts.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, env)

	// Answers shell completion requests (COMP_LINE set) and exits.
	cli.Completion(flag.CommandLine, env).Complete(path.Base(os.Args[0]))

	flag.Parse()

	env.DSN = dsn
	if env.DSN == "" {
		switch env.Driver {
		case config.DriverPostgres:
			env.DSN = cfg.DBConnStr
		default:
			env.DSN = cfg.SQLitePath
		}
	}

	os.Exit(int(commander.Execute(context.Background())))
}
