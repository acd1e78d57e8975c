package domain

import (
	"context"
)

// CapitalHistoryRepository defines the storage contract for the capital-source ledger.
// It only ever loads the whole ledger or appends to it.
type CapitalHistoryRepository interface {
	// Load returns every persisted entry
	Load(ctx context.Context) ([]CapitalSourceHistoryEntry, error)

	// Append durably persists a single new entry
	// An error means the entry must not be considered committed
	Append(ctx context.Context, entry CapitalSourceHistoryEntry) error
}
