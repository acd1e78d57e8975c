package capital

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCapitalHistoryRepository is a mock implementation of CapitalHistoryRepository for testing
type MockCapitalHistoryRepository struct {
	mock.Mock
}

func (m *MockCapitalHistoryRepository) Load(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CapitalSourceHistoryEntry), args.Error(1)
}

func (m *MockCapitalHistoryRepository) Append(ctx context.Context, entry domain.CapitalSourceHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockMetricsRecorder records observed operations
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	m.Called(ctx, operation, success)
}

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.AddDate(0, 0, -n) }

func newEmptyService(t *testing.T) (*HistoryService, *MockCapitalHistoryRepository) {
	t.Helper()
	repo := new(MockCapitalHistoryRepository)
	repo.On("Load", mock.Anything).Return([]domain.CapitalSourceHistoryEntry{}, nil).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(nil)
	return NewHistoryService(repo, WithClock(func() time.Time { return now })), repo
}

func grantCapital() domain.NewCapitalSource {
	return domain.NewCapitalSource{
		Name:           "Grant Capital",
		AnnualRate:     decimal.RequireFromString("0.05"),
		AvailableCents: 50_000_000,
	}
}

func bankLOC() domain.NewCapitalSource {
	return domain.NewCapitalSource{
		Name:           "Bank LOC",
		AnnualRate:     decimal.RequireFromString("0.14"),
		AvailableCents: 75_000_000,
	}
}

func TestHistoryService_WalkThrough(t *testing.T) {
	ctx := context.Background()
	service, repo := newEmptyService(t)

	// 1. Two sources funded 90 days ago
	grantID, err := service.AddSource(ctx, grantCapital(), daysAgo(90), "initial grant")
	require.NoError(t, err)
	bankID, err := service.AddSource(ctx, bankLOC(), daysAgo(90), "")
	require.NoError(t, err)
	assert.NotEqual(t, grantID, bankID)

	active, err := service.ActiveSources(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.True(t, decimal.RequireFromString("0.104").Equal(domain.ComputeWACC(active)))

	// 2. Grant reduced 10 days ago
	require.NoError(t, service.UpdateAmount(ctx, grantID, 30_000_000, daysAgo(10), "partial clawback"))

	active, err = service.ActiveSources(ctx, daysAgo(5))
	require.NoError(t, err)
	assert.InDelta(t, 0.11428571, domain.ComputeWACC(active).InexactFloat64(), 1e-8)

	// Before the change the original amount still applies
	active, err = service.ActiveSources(ctx, daysAgo(11))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.104").Equal(domain.ComputeWACC(active)))

	// 3. Bank line removed today
	require.NoError(t, service.RemoveSource(ctx, bankID, now, "facility closed"))

	active, err = service.ActiveSources(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Grant Capital", active[0].Name)
	assert.Equal(t, grantID, active[0].SourceID)
	assert.True(t, decimal.RequireFromString("0.05").Equal(domain.ComputeWACC(active)))

	history, err := service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, entry := range history {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}

	repo.AssertNumberOfCalls(t, "Load", 1)
	repo.AssertNumberOfCalls(t, "Append", 4)
}

func TestHistoryService_AuditFields(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	id, err := service.AddSource(ctx, bankLOC(), daysAgo(30), "")
	require.NoError(t, err)
	require.NoError(t, service.UpdateAmount(ctx, id, 60_000_000, daysAgo(20), "paydown"))
	require.NoError(t, service.UpdateRate(ctx, id, decimal.RequireFromString("0.12"), daysAgo(10), "repriced"))

	history, err := service.HistoryForSource(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)

	added := history[0]
	assert.Equal(t, domain.ActionAdded, added.Action)
	assert.False(t, added.PreviousAmount.Valid)
	assert.False(t, added.PreviousRate.Valid)

	amountChange := history[1]
	assert.Equal(t, domain.ActionAmountChanged, amountChange.Action)
	assert.Equal(t, domain.Cents(60_000_000), amountChange.AvailableCents)
	assert.Equal(t, domain.NewNullCents(75_000_000), amountChange.PreviousAmount)
	assert.True(t, decimal.RequireFromString("0.14").Equal(amountChange.AnnualRate))
	assert.Equal(t, "paydown", amountChange.Notes)

	rateChange := history[2]
	assert.Equal(t, domain.ActionRateChanged, rateChange.Action)
	assert.True(t, decimal.RequireFromString("0.12").Equal(rateChange.AnnualRate))
	require.True(t, rateChange.PreviousRate.Valid)
	assert.True(t, decimal.RequireFromString("0.14").Equal(rateChange.PreviousRate.Decimal))
	assert.Equal(t, domain.Cents(60_000_000), rateChange.AvailableCents)
	assert.Equal(t, "Bank LOC", rateChange.Name)
}

func TestHistoryService_FutureDateRejected(t *testing.T) {
	ctx := context.Background()
	service, repo := newEmptyService(t)

	id, err := service.AddSource(ctx, grantCapital(), daysAgo(1), "")
	require.NoError(t, err)

	tomorrow := now.AddDate(0, 0, 1)
	justAfterNow := now.Add(time.Nanosecond)

	writes := map[string]func(at time.Time) error{
		"add": func(at time.Time) error {
			_, err := service.AddSource(ctx, bankLOC(), at, "")
			return err
		},
		"update amount": func(at time.Time) error { return service.UpdateAmount(ctx, id, 10, at, "") },
		"update rate": func(at time.Time) error {
			return service.UpdateRate(ctx, id, decimal.RequireFromString("0.2"), at, "")
		},
		"remove": func(at time.Time) error { return service.RemoveSource(ctx, id, at, "") },
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			for _, at := range []time.Time{tomorrow, justAfterNow} {
				err := write(at)
				assert.ErrorIs(t, err, domain.ErrFutureDate)
			}

			history, err := service.History(ctx)
			require.NoError(t, err)
			assert.Len(t, history, 1, "ledger must be unchanged")
		})
	}

	repo.AssertNumberOfCalls(t, "Append", 1)
}

func TestHistoryService_EffectiveNowIsAllowed(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	id, err := service.AddSource(ctx, grantCapital(), now, "")
	require.NoError(t, err)
	assert.NoError(t, service.UpdateRate(ctx, id, decimal.RequireFromString("0.06"), now, ""))
	assert.NoError(t, service.RemoveSource(ctx, id, now, ""))

	active, err := service.ActiveSources(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHistoryService_SourceNotFound(t *testing.T) {
	ctx := context.Background()
	service, repo := newEmptyService(t)

	id, err := service.AddSource(ctx, bankLOC(), daysAgo(30), "")
	require.NoError(t, err)
	require.NoError(t, service.RemoveSource(ctx, id, daysAgo(10), ""))

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "unknown id",
			call: func() error {
				return service.UpdateRate(ctx, "unknown-id", decimal.RequireFromString("0.2"), now, "")
			},
		},
		{
			name: "before the source was added",
			call: func() error { return service.UpdateAmount(ctx, id, 10, daysAgo(40), "") },
		},
		{
			name: "after removal",
			call: func() error { return service.UpdateAmount(ctx, id, 10, daysAgo(5), "") },
		},
		{
			name: "removing twice",
			call: func() error { return service.RemoveSource(ctx, id, now, "") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrSourceNotFound)
		})
	}

	// Active at that date, but dated before the removal
	assert.ErrorIs(t, service.UpdateAmount(ctx, id, 10, daysAgo(20), "late correction"), domain.ErrOutOfOrder)
	repo.AssertNumberOfCalls(t, "Append", 2)
}

func TestHistoryService_OutOfOrderChanges(t *testing.T) {
	ctx := context.Background()
	service, repo := newEmptyService(t)

	id, err := service.AddSource(ctx, bankLOC(), daysAgo(30), "")
	require.NoError(t, err)
	require.NoError(t, service.UpdateRate(ctx, id, decimal.RequireFromString("0.12"), daysAgo(5), "repriced"))

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "removal before a later rate change",
			call: func() error { return service.RemoveSource(ctx, id, daysAgo(20), "") },
		},
		{
			name: "amount change before a later rate change",
			call: func() error { return service.UpdateAmount(ctx, id, 10, daysAgo(10), "") },
		},
		{
			name: "rate change before a later rate change",
			call: func() error { return service.UpdateRate(ctx, id, decimal.RequireFromString("0.1"), daysAgo(6), "") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrOutOfOrder)
		})
	}
	repo.AssertNumberOfCalls(t, "Append", 2)

	// Same instant as the latest entry is accepted and ordered after it
	require.NoError(t, service.RemoveSource(ctx, id, daysAgo(5), "closed"))

	for _, at := range []time.Time{daysAgo(5), daysAgo(1), now} {
		active, err := service.ActiveSources(ctx, at)
		require.NoError(t, err)
		assert.Empty(t, active, "removed source must stay inactive at %s", at)
	}
}

func TestHistoryService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	service, repo := newEmptyService(t)

	id, err := service.AddSource(ctx, grantCapital(), daysAgo(3), "")
	require.NoError(t, err)

	negative := grantCapital()
	negative.AvailableCents = -1
	_, err = service.AddSource(ctx, negative, now, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	unnamed := grantCapital()
	unnamed.Name = " "
	_, err = service.AddSource(ctx, unnamed, now, "")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	assert.ErrorIs(t, service.UpdateAmount(ctx, id, -100, now, ""), domain.ErrInvalidAmount)
	assert.ErrorIs(t, service.UpdateRate(ctx, id, decimal.RequireFromString("1.5"), now, ""), domain.ErrInvalidRate)

	// Bad input is reported before the source is looked up
	assert.ErrorIs(t, service.UpdateAmount(ctx, "unknown", -5, now, ""), domain.ErrInvalidAmount)
	assert.ErrorIs(t, service.UpdateRate(ctx, "unknown", decimal.RequireFromString("-0.1"), now, ""), domain.ErrInvalidRate)

	repo.AssertNumberOfCalls(t, "Append", 1)
}

func TestHistoryService_AppendFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCapitalHistoryRepository)
	repo.On("Load", mock.Anything).Return([]domain.CapitalSourceHistoryEntry{}, nil).Once()
	service := NewHistoryService(repo, WithClock(func() time.Time { return now }))

	repo.On("Append", mock.Anything, mock.MatchedBy(func(e domain.CapitalSourceHistoryEntry) bool {
		return e.Action == domain.ActionAdded
	})).Return(nil).Once()

	id, err := service.AddSource(ctx, grantCapital(), daysAgo(5), "")
	require.NoError(t, err)

	repo.On("Append", mock.Anything, mock.MatchedBy(func(e domain.CapitalSourceHistoryEntry) bool {
		return e.Action == domain.ActionAmountChanged
	})).Return(errors.New("connection reset")).Once()

	err = service.UpdateAmount(ctx, id, 1, now, "")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "connection reset")

	history, err := service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)

	active, err := service.ActiveSources(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.Cents(50_000_000), active[0].AvailableCents)

	// The failed entry did not consume a sequence number
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e domain.CapitalSourceHistoryEntry) bool {
		return e.Sequence == 2
	})).Return(nil).Once()
	assert.NoError(t, service.RemoveSource(ctx, id, now, ""))

	repo.AssertExpectations(t)
}

func TestHistoryService_LoadFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCapitalHistoryRepository)
	service := NewHistoryService(repo, WithClock(func() time.Time { return now }))

	repo.On("Load", mock.Anything).Return(nil, errors.New("disk unavailable")).Once()

	_, err := service.History(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	// The next call retries the load
	repo.On("Load", mock.Anything).Return([]domain.CapitalSourceHistoryEntry{}, nil).Once()
	history, err := service.History(ctx)
	assert.NoError(t, err)
	assert.Empty(t, history)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestHistoryService_LoadFailureBlocksWrites(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCapitalHistoryRepository)
	service := NewHistoryService(repo, WithClock(func() time.Time { return now }))

	repo.On("Load", mock.Anything).Return(nil, errors.New("timeout"))

	_, err := service.AddSource(ctx, grantCapital(), now, "")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestHistoryService_HydrateContinuesSequence(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCapitalHistoryRepository)
	existing := []domain.CapitalSourceHistoryEntry{
		{
			ID: uuid.New(), Sequence: 7, SourceID: "bank", EffectiveDate: daysAgo(10),
			Name: "Bank LOC", AnnualRate: decimal.RequireFromString("0.14"), AvailableCents: 75_000_000,
			Action: domain.ActionRateChanged, PreviousRate: decimal.NewNullDecimal(decimal.RequireFromString("0.15")),
		},
		{
			ID: uuid.New(), Sequence: 3, SourceID: "bank", EffectiveDate: daysAgo(60),
			Name: "Bank LOC", AnnualRate: decimal.RequireFromString("0.15"), AvailableCents: 75_000_000,
			Action: domain.ActionAdded,
		},
	}
	repo.On("Load", mock.Anything).Return(existing, nil).Once()
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e domain.CapitalSourceHistoryEntry) bool {
		return e.Sequence == 8 && e.SourceID == "bank"
	})).Return(nil).Once()

	service := NewHistoryService(repo, WithClock(func() time.Time { return now }))
	require.NoError(t, service.Hydrate(ctx))

	history, err := service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].Sequence, "loaded entries are put in ledger order")

	require.NoError(t, service.UpdateAmount(ctx, "bank", 1_000, now, ""))
	repo.AssertExpectations(t)
}

func TestHistoryService_ReturnedHistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	_, err := service.AddSource(ctx, grantCapital(), daysAgo(2), "")
	require.NoError(t, err)

	first, err := service.History(ctx)
	require.NoError(t, err)
	first[0].Name = "tampered"
	first[0].AvailableCents = 1
	first = append(first, domain.CapitalSourceHistoryEntry{Name: "injected"})
	_ = first

	second, err := service.History(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "Grant Capital", second[0].Name)
	assert.Equal(t, domain.Cents(50_000_000), second[0].AvailableCents)
}

func TestHistoryService_HistoryInRange(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	id, err := service.AddSource(ctx, grantCapital(), daysAgo(30), "")
	require.NoError(t, err)
	require.NoError(t, service.UpdateAmount(ctx, id, 40_000_000, daysAgo(20), ""))
	require.NoError(t, service.UpdateAmount(ctx, id, 30_000_000, daysAgo(10), ""))

	entries, err := service.HistoryInRange(ctx, daysAgo(20), daysAgo(10))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.Cents(40_000_000), entries[0].AvailableCents)
	assert.Equal(t, domain.Cents(30_000_000), entries[1].AvailableCents)
}

func TestHistoryService_SameInstantChangesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	at := daysAgo(1)
	id, err := service.AddSource(ctx, grantCapital(), at, "")
	require.NoError(t, err)
	require.NoError(t, service.UpdateAmount(ctx, id, 1_000, at, ""))
	require.NoError(t, service.UpdateAmount(ctx, id, 2_000, at, ""))

	active, err := service.ActiveSources(ctx, at)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.Cents(2_000), active[0].AvailableCents)
}

func TestHistoryService_ConcurrentWritesAreSerialized(t *testing.T) {
	ctx := context.Background()
	service, _ := newEmptyService(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.AddSource(ctx, domain.NewCapitalSource{
				Name:           fmt.Sprintf("Facility %d", i),
				AnnualRate:     decimal.RequireFromString("0.1"),
				AvailableCents: domain.Cents(1_000 * (i + 1)),
			}, daysAgo(i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, writers)

	seen := make(map[int64]bool)
	for _, entry := range history {
		assert.False(t, seen[entry.Sequence], "duplicate sequence %d", entry.Sequence)
		seen[entry.Sequence] = true
	}
	for seq := int64(1); seq <= writers; seq++ {
		assert.True(t, seen[seq], "missing sequence %d", seq)
	}
}

func TestHistoryService_ReportsMetrics(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCapitalHistoryRepository)
	repo.On("Load", mock.Anything).Return([]domain.CapitalSourceHistoryEntry{}, nil).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(nil)

	metrics := new(MockMetricsRecorder)
	metrics.On("Observe", ctx, OpAddSource, true).Once()
	metrics.On("Observe", ctx, OpAddSource, false).Once()
	metrics.On("Observe", ctx, OpActiveSources, true).Once()

	service := NewHistoryService(repo, WithClock(func() time.Time { return now }), WithMetrics(metrics))

	_, err := service.AddSource(ctx, grantCapital(), now, "")
	require.NoError(t, err)
	_, err = service.AddSource(ctx, grantCapital(), now.Add(time.Hour), "")
	require.Error(t, err)
	_, err = service.ActiveSources(ctx, now)
	require.NoError(t, err)

	metrics.AssertExpectations(t)
}
