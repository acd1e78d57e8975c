// Package ledgersql persists the capital-source ledger in a single SQL table.
// The Postgres and SQLite adapters share it and differ only in their Dialect.
package ledgersql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// Dialect describes the few places where the SQL differs between drivers
type Dialect struct {
	Name        string
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	SQLite   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
)

// Instants are stored as RFC 3339 text with nanoseconds so the offset and
// sub-microsecond ordering both survive a round trip.
const timeLayout = time.RFC3339Nano

const schema = `
	CREATE TABLE IF NOT EXISTS capital_source_history (
		id              TEXT PRIMARY KEY,
		sequence        BIGINT NOT NULL UNIQUE,
		source_id       TEXT NOT NULL,
		effective_date  TEXT NOT NULL,
		name            TEXT NOT NULL,
		annual_rate     TEXT NOT NULL,
		available_cents BIGINT NOT NULL,
		action          TEXT NOT NULL,
		previous_rate   TEXT,
		previous_amount BIGINT,
		notes           TEXT NOT NULL DEFAULT ''
	)`

const sourceIndex = `CREATE INDEX IF NOT EXISTS idx_capital_source_history_source ON capital_source_history (source_id)`

var columns = []string{
	"id", "sequence", "source_id", "effective_date", "name", "annual_rate",
	"available_cents", "action", "previous_rate", "previous_amount", "notes",
}

// Store implements domain.CapitalHistoryRepository on a database/sql handle
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore creates a new ledger store
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// EnsureSchema creates the ledger table and its index if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schema, sourceIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create capital history schema: %w", err)
		}
	}
	return nil
}

// Load returns every persisted entry in insertion order
func (s *Store) Load(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM capital_source_history ORDER BY sequence`, strings.Join(columns, ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query capital history: %w", err)
	}
	defer rows.Close()

	var entries []domain.CapitalSourceHistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capital history: %w", err)
	}
	return entries, nil
}

// Append inserts one entry. A duplicate id or sequence is an error.
func (s *Store) Append(ctx context.Context, entry domain.CapitalSourceHistoryEntry) error {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO capital_source_history (%s) VALUES (%s)`,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, entryArgs(entry)...); err != nil {
		return fmt.Errorf("failed to insert capital history entry: %w", err)
	}
	return nil
}

// Count returns the number of persisted entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capital_source_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count capital history: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.CapitalSourceHistoryEntry, error) {
	var (
		entry          domain.CapitalSourceHistoryEntry
		id             string
		sourceID       string
		effectiveDate  string
		action         string
		availableCents int64
		previousRate   decimal.NullDecimal
		previousAmount sql.NullInt64
	)

	err := row.Scan(
		&id,
		&entry.Sequence,
		&sourceID,
		&effectiveDate,
		&entry.Name,
		&entry.AnnualRate,
		&availableCents,
		&action,
		&previousRate,
		&previousAmount,
		&entry.Notes,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan capital history entry: %w", err)
	}

	entry.ID, err = uuid.Parse(id)
	if err != nil {
		return entry, fmt.Errorf("failed to parse entry id %q: %w", id, err)
	}
	entry.EffectiveDate, err = time.Parse(timeLayout, effectiveDate)
	if err != nil {
		return entry, fmt.Errorf("failed to parse effective date %q: %w", effectiveDate, err)
	}

	entry.SourceID = domain.SourceID(sourceID)
	entry.Action = domain.HistoryAction(action)
	entry.AvailableCents = domain.Cents(availableCents)
	entry.PreviousRate = previousRate
	if previousAmount.Valid {
		entry.PreviousAmount = domain.NewNullCents(domain.Cents(previousAmount.Int64))
	}

	return entry, nil
}

func entryArgs(entry domain.CapitalSourceHistoryEntry) []any {
	var previousAmount sql.NullInt64
	if entry.PreviousAmount.Valid {
		previousAmount = sql.NullInt64{Int64: int64(entry.PreviousAmount.Cents), Valid: true}
	}

	return []any{
		entry.ID.String(),
		entry.Sequence,
		string(entry.SourceID),
		entry.EffectiveDate.Format(timeLayout),
		entry.Name,
		entry.AnnualRate.String(),
		int64(entry.AvailableCents),
		string(entry.Action),
		entry.PreviousRate,
		previousAmount,
		entry.Notes,
	}
}
