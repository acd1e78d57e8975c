package capital

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// Operation names reported to the MetricsRecorder
const (
	OpAddSource        = "add_source"
	OpUpdateAmount     = "update_amount"
	OpUpdateRate       = "update_rate"
	OpRemoveSource     = "remove_source"
	OpHistory          = "history"
	OpHistoryForSource = "history_for_source"
	OpHistoryInRange   = "history_in_range"
	OpActiveSources    = "active_sources"
)

// MetricsRecorder receives the outcome of every HistoryService operation
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Option configures a HistoryService
type Option func(*HistoryService)

// WithClock overrides the source of "now" used for future-date checks
func WithClock(now func() time.Time) Option {
	return func(s *HistoryService) { s.now = now }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *HistoryService) { s.logger = logger }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(s *HistoryService) { s.metrics = m }
}

// HistoryService owns the capital-source ledger.
// It is the only writer of ledger entries: every write is validated, persisted
// through the repository and only then becomes visible to readers.
//
// Writes are serialized; validate-then-append runs under one exclusive lock.
type HistoryService struct {
	Repo domain.CapitalHistoryRepository

	now     func() time.Time
	logger  *slog.Logger
	metrics MetricsRecorder

	mu      sync.RWMutex
	loaded  bool
	entries []domain.CapitalSourceHistoryEntry // ordered by (EffectiveDate, Sequence)
	lastSeq int64
}

// NewHistoryService creates a new HistoryService instance
func NewHistoryService(repo domain.CapitalHistoryRepository, opts ...Option) *HistoryService {
	s := &HistoryService{
		Repo:    repo,
		now:     time.Now,
		logger:  slog.Default(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current instant
func (s *HistoryService) Now() time.Time {
	return s.now()
}

// Hydrate loads the ledger from storage if it has not been loaded yet
func (s *HistoryService) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateLocked(ctx)
}

func (s *HistoryService) hydrateLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	entries, err := s.Repo.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load capital history", "error", err)
		return fmt.Errorf("%w: load capital history: %w", domain.ErrStorageUnavailable, err)
	}

	s.entries = domain.SortEntries(entries)
	s.lastSeq = 0
	for _, entry := range s.entries {
		if entry.Sequence > s.lastSeq {
			s.lastSeq = entry.Sequence
		}
	}
	s.loaded = true

	s.logger.DebugContext(ctx, "capital history loaded", "entries", len(s.entries))
	return nil
}

// AddSource starts a new funding-source lineage and returns its generated id
func (s *HistoryService) AddSource(ctx context.Context, input domain.NewCapitalSource, effectiveDate time.Time, notes string) (domain.SourceID, error) {
	start := time.Now()
	id, err := s.addSource(ctx, input, effectiveDate, notes)
	s.metrics.Observe(ctx, OpAddSource, err == nil, time.Since(start))
	return id, err
}

func (s *HistoryService) addSource(ctx context.Context, input domain.NewCapitalSource, effectiveDate time.Time, notes string) (domain.SourceID, error) {
	if err := s.checkEffectiveDate(ctx, effectiveDate); err != nil {
		return "", err
	}
	if err := input.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return "", err
	}

	entry := domain.CapitalSourceHistoryEntry{
		ID:             uuid.New(),
		SourceID:       domain.NewSourceID(),
		EffectiveDate:  effectiveDate,
		Name:           strings.TrimSpace(input.Name),
		AnnualRate:     input.AnnualRate,
		AvailableCents: input.AvailableCents,
		Action:         domain.ActionAdded,
		Notes:          notes,
	}

	if err := s.commitLocked(ctx, entry); err != nil {
		return "", err
	}
	return entry.SourceID, nil
}

// UpdateAmount records a new available amount for an active source
func (s *HistoryService) UpdateAmount(ctx context.Context, sourceID domain.SourceID, newAmount domain.Cents, effectiveDate time.Time, notes string) error {
	start := time.Now()
	err := newAmount.Validate()
	if err == nil {
		err = s.change(ctx, sourceID, effectiveDate, notes, domain.ActionAmountChanged, func(current domain.CapitalSource, entry *domain.CapitalSourceHistoryEntry) {
			entry.AvailableCents = newAmount
			entry.PreviousAmount = domain.NewNullCents(current.AvailableCents)
		})
	}
	s.metrics.Observe(ctx, OpUpdateAmount, err == nil, time.Since(start))
	return err
}

// UpdateRate records a new annual rate for an active source
func (s *HistoryService) UpdateRate(ctx context.Context, sourceID domain.SourceID, newRate decimal.Decimal, effectiveDate time.Time, notes string) error {
	start := time.Now()
	err := domain.ValidateRate(newRate)
	if err == nil {
		err = s.change(ctx, sourceID, effectiveDate, notes, domain.ActionRateChanged, func(current domain.CapitalSource, entry *domain.CapitalSourceHistoryEntry) {
			entry.AnnualRate = newRate
			entry.PreviousRate = decimal.NewNullDecimal(current.AnnualRate)
		})
	}
	s.metrics.Observe(ctx, OpUpdateRate, err == nil, time.Since(start))
	return err
}

// RemoveSource ends a lineage; the source id stays inactive from effectiveDate on
func (s *HistoryService) RemoveSource(ctx context.Context, sourceID domain.SourceID, effectiveDate time.Time, notes string) error {
	start := time.Now()
	err := s.change(ctx, sourceID, effectiveDate, notes, domain.ActionRemoved, nil)
	s.metrics.Observe(ctx, OpRemoveSource, err == nil, time.Since(start))
	return err
}

// change resolves the source at effectiveDate and appends an entry derived from that state.
// A change may share the instant of the lineage's latest entry but never precede it,
// apply may adjust the new entry; it runs before anything is persisted.
func (s *HistoryService) change(
	ctx context.Context,
	sourceID domain.SourceID,
	effectiveDate time.Time,
	notes string,
	action domain.HistoryAction,
	apply func(current domain.CapitalSource, entry *domain.CapitalSourceHistoryEntry),
) error {
	if err := s.checkEffectiveDate(ctx, effectiveDate); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return err
	}

	current, ok := domain.Resolve(s.entries, sourceID, effectiveDate)
	if !ok {
		s.logger.WarnContext(ctx, "capital source not active",
			"source_id", sourceID, "action", action, "effective_date", effectiveDate)
		return fmt.Errorf("%w: %q as of %s", domain.ErrSourceNotFound, sourceID, effectiveDate.Format(time.RFC3339))
	}
	if latest, _ := domain.LatestEntry(s.entries, sourceID); latest.EffectiveDate.After(effectiveDate) {
		s.logger.WarnContext(ctx, "rejected out-of-order capital change",
			"source_id", sourceID, "action", action, "effective_date", effectiveDate, "latest", latest.EffectiveDate)
		return fmt.Errorf("%w: %q has a %s entry at %s", domain.ErrOutOfOrder, sourceID,
			latest.Action, latest.EffectiveDate.Format(time.RFC3339))
	}

	entry := domain.CapitalSourceHistoryEntry{
		ID:             uuid.New(),
		SourceID:       sourceID,
		EffectiveDate:  effectiveDate,
		Name:           current.Name,
		AnnualRate:     current.AnnualRate,
		AvailableCents: current.AvailableCents,
		Action:         action,
		Notes:          notes,
	}
	if apply != nil {
		apply(current, &entry)
	}

	return s.commitLocked(ctx, entry)
}

// commitLocked persists entry and, only on success, inserts it into the in-memory ledger.
// Caller must hold s.mu for writing.
func (s *HistoryService) commitLocked(ctx context.Context, entry domain.CapitalSourceHistoryEntry) error {
	entry.Sequence = s.lastSeq + 1
	if err := entry.Validate(); err != nil {
		return err
	}

	if err := s.Repo.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist capital history entry",
			"source_id", entry.SourceID, "action", entry.Action, "error", err)
		return fmt.Errorf("%w: append %s entry: %w", domain.ErrStorageUnavailable, entry.Action, err)
	}

	idx := sort.Search(len(s.entries), func(i int) bool {
		return entry.Before(s.entries[i])
	})
	next := make([]domain.CapitalSourceHistoryEntry, 0, len(s.entries)+1)
	next = append(next, s.entries[:idx]...)
	next = append(next, entry)
	next = append(next, s.entries[idx:]...)
	s.entries = next
	s.lastSeq = entry.Sequence

	s.logger.InfoContext(ctx, "capital history entry committed",
		"source_id", entry.SourceID,
		"action", entry.Action,
		"effective_date", entry.EffectiveDate,
		"sequence", entry.Sequence,
	)
	return nil
}

// checkEffectiveDate rejects effective dates after now; exactly now is allowed
func (s *HistoryService) checkEffectiveDate(ctx context.Context, effectiveDate time.Time) error {
	now := s.now()
	if effectiveDate.After(now) {
		s.logger.WarnContext(ctx, "rejected future-dated capital change",
			"effective_date", effectiveDate, "now", now)
		return fmt.Errorf("%w: %s is after %s", domain.ErrFutureDate,
			effectiveDate.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

// snapshot returns a private copy of the committed ledger, hydrating it first if needed
func (s *HistoryService) snapshot(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error) {
	s.mu.RLock()
	if s.loaded {
		out := make([]domain.CapitalSourceHistoryEntry, len(s.entries))
		copy(out, s.entries)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.CapitalSourceHistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// History returns every ledger entry ordered by effective date.
// The returned slice is a copy; changing it never affects the ledger.
func (s *HistoryService) History(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error) {
	start := time.Now()
	entries, err := s.snapshot(ctx)
	s.metrics.Observe(ctx, OpHistory, err == nil, time.Since(start))
	return entries, err
}

// HistoryForSource returns the ordered entries of one lineage
func (s *HistoryService) HistoryForSource(ctx context.Context, sourceID domain.SourceID) ([]domain.CapitalSourceHistoryEntry, error) {
	start := time.Now()
	entries, err := s.snapshot(ctx)
	if err == nil {
		entries = domain.EntriesForSource(entries, sourceID)
	}
	s.metrics.Observe(ctx, OpHistoryForSource, err == nil, time.Since(start))
	return entries, err
}

// HistoryInRange returns the entries with start <= EffectiveDate <= end
func (s *HistoryService) HistoryInRange(ctx context.Context, from, to time.Time) ([]domain.CapitalSourceHistoryEntry, error) {
	start := time.Now()
	entries, err := s.snapshot(ctx)
	if err == nil {
		entries = domain.EntriesInRange(entries, from, to)
	}
	s.metrics.Observe(ctx, OpHistoryInRange, err == nil, time.Since(start))
	return entries, err
}

// ActiveSources returns every source active as of asOf
func (s *HistoryService) ActiveSources(ctx context.Context, asOf time.Time) ([]domain.CapitalSource, error) {
	start := time.Now()
	var sources []domain.CapitalSource
	entries, err := s.snapshot(ctx)
	if err == nil {
		sources = domain.ActiveSources(entries, asOf)
	}
	s.metrics.Observe(ctx, OpActiveSources, err == nil, time.Since(start))
	return sources, err
}
