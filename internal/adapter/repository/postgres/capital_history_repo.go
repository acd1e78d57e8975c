package postgres

import (
	"context"

	"github.com/simaogato/capitalflow-backend/internal/adapter/repository/ledgersql"
	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// capitalHistoryRepository implements domain.CapitalHistoryRepository
type capitalHistoryRepository struct {
	*ledgersql.Store
}

// NewCapitalHistoryRepository creates a new capital history repository and makes sure its table exists
func NewCapitalHistoryRepository(ctx context.Context, db *DB) (domain.CapitalHistoryRepository, error) {
	repo := &capitalHistoryRepository{Store: ledgersql.NewStore(db.DB, ledgersql.Postgres)}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}
