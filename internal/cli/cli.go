// Package cli implements capitalctl, an operator tool that works directly on a capital ledger store.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/capitalflow-backend/internal/config"
	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/simaogato/capitalflow-backend/internal/usecase/capital"
	"github.com/simaogato/capitalflow-backend/internal/usecase/wacc"
)

// Env is shared by every command
type Env struct {
	Driver   string // sqlite, postgres or memory
	DSN      string // SQLite path or Postgres connection string
	Currency string

	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger
	Clock  func() time.Time
}

func (e *Env) stdout() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) stderr() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

// services holds one opened store and the services built on it
type services struct {
	history *capital.HistoryService
	wacc    *wacc.WACCService
	close   func() error
}

// open connects to the configured store and hydrates the ledger
func (e *Env) open(ctx context.Context) (*services, error) {
	var (
		repo    domain.CapitalHistoryRepository
		closeFn = func() error { return nil }
	)

	switch e.Driver {
	case config.DriverSQLite:
		r, err := sqlite.Open(ctx, e.DSN)
		if err != nil {
			return nil, err
		}
		repo, closeFn = r, r.Close
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, e.DSN)
		if err != nil {
			return nil, err
		}
		r, err := postgres.NewCapitalHistoryRepository(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		repo, closeFn = r, db.Close
	case config.DriverMemory:
		repo = memory.NewRepository()
	default:
		return nil, fmt.Errorf("unsupported driver %q", e.Driver)
	}

	opts := []capital.Option{}
	if e.Clock != nil {
		opts = append(opts, capital.WithClock(e.Clock))
	}
	if e.Logger != nil {
		opts = append(opts, capital.WithLogger(e.Logger))
	}

	history := capital.NewHistoryService(repo, opts...)
	if err := history.Hydrate(ctx); err != nil {
		_ = closeFn()
		return nil, err
	}

	return &services{
		history: history,
		wacc:    wacc.NewWACCService(history),
		close:   closeFn,
	}, nil
}

// run opens the store, calls fn and maps any error to an exit status
func (e *Env) run(ctx context.Context, fn func(*services) error) subcommands.ExitStatus {
	svc, err := e.open(ctx)
	if err != nil {
		fmt.Fprintln(e.stderr(), "Error:", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := svc.close(); err != nil {
			fmt.Fprintln(e.stderr(), "Error closing store:", err)
		}
	}()

	if err := fn(svc); err != nil {
		fmt.Fprintln(e.stderr(), "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// usageError prints msg and reports a usage error
func (e *Env) usageError(msg string) subcommands.ExitStatus {
	fmt.Fprintln(e.stderr(), "Error:", msg)
	return subcommands.ExitUsageError
}

// Commands returns every capitalctl command keyed by its help group
func Commands(env *Env) map[string][]subcommands.Command {
	return map[string][]subcommands.Command{
		"ledger": {
			&addCmd{env: env},
			&setAmountCmd{env: env},
			&setRateCmd{env: env},
			&removeCmd{env: env},
			&historyCmd{env: env},
		},
		"reports": {
			&activeCmd{env: env},
			&waccCmd{env: env},
			&trendCmd{env: env},
			&summaryCmd{env: env},
		},
	}
}

// Register adds every capitalctl command to the commander
func Register(c *subcommands.Commander, env *Env) {
	for group, cmds := range Commands(env) {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// parseDate accepts RFC 3339 instants and YYYY-MM-DD days (midnight UTC).
// An empty string yields fallback.
func parseDate(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// parseEndDate is parseDate for the closing bound of a range: a bare YYYY-MM-DD
// covers the whole day, up to its last nanosecond.
func parseEndDate(s string) (time.Time, error) {
	t, err := parseDate(s, time.Time{})
	if err != nil {
		return time.Time{}, err
	}
	if _, dateOnly := time.Parse(time.DateOnly, strings.TrimSpace(s)); dateOnly == nil {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
