package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/ledgersql"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured
const DefaultPath = "capitalflow.db"

// Repository keeps the capital ledger in a local SQLite file
type Repository struct {
	*ledgersql.Store
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and prepares the ledger table
func Open(ctx context.Context, path string) (*Repository, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps appends strictly ordered and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	repo := &Repository{Store: ledgersql.NewStore(db, ledgersql.SQLite), db: db}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}
