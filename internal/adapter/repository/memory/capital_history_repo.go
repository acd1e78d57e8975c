// Package memory holds the capital ledger in process memory.
// Nothing survives a restart; it backs tests and STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// Repository is an in-memory domain.CapitalHistoryRepository
type Repository struct {
	mu      sync.RWMutex
	entries []domain.CapitalSourceHistoryEntry
	seen    map[int64]struct{}
}

// NewRepository creates an empty in-memory ledger, optionally pre-filled with entries
func NewRepository(entries ...domain.CapitalSourceHistoryEntry) *Repository {
	r := &Repository{seen: make(map[int64]struct{}, len(entries))}
	for _, e := range entries {
		r.entries = append(r.entries, e)
		r.seen[e.Sequence] = struct{}{}
	}
	return r
}

// Load returns a copy of every stored entry in insertion order
func (r *Repository) Load(_ context.Context) ([]domain.CapitalSourceHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CapitalSourceHistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// Append stores entry, rejecting a sequence number that is already taken
func (r *Repository) Append(_ context.Context, entry domain.CapitalSourceHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[entry.Sequence]; dup {
		return fmt.Errorf("sequence %d already stored", entry.Sequence)
	}
	r.seen[entry.Sequence] = struct{}{}
	r.entries = append(r.entries, entry)
	return nil
}

// Len returns the number of stored entries
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
