package wacc

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// HistoryReader exposes the committed capital ledger
type HistoryReader interface {
	History(ctx context.Context) ([]domain.CapitalSourceHistoryEntry, error)
}

// TrendPoint is the WACC of one reporting period
type TrendPoint struct {
	Period            string
	Start             time.Time
	End               time.Time
	WACC              decimal.Decimal
	TotalCapitalCents domain.Cents
}

// PeriodSummary describes how WACC moved across a reporting window
type PeriodSummary struct {
	From    time.Time
	To      time.Time
	Start   decimal.Decimal // WACC at From
	End     decimal.Decimal // WACC at To
	Average decimal.Decimal // Time-weighted WACC over [From, To]
}

// WACCService computes point-in-time and period WACC figures from the ledger
type WACCService struct {
	History HistoryReader
}

// NewWACCService creates a new WACCService instance
func NewWACCService(history HistoryReader) *WACCService {
	return &WACCService{History: history}
}

// SnapshotAt returns the portfolio's WACC snapshot as of date
func (s *WACCService) SnapshotAt(ctx context.Context, date time.Time) (*domain.WACCSnapshot, error) {
	entries, err := s.History.History(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := domain.SnapshotAt(entries, date)
	return &snapshot, nil
}

// Trend returns one point per period, in period order
func (s *WACCService) Trend(ctx context.Context, periods []domain.DateRange) ([]TrendPoint, error) {
	entries, err := s.History.History(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTrend(periods, entries), nil
}

// PeriodSummary generates the periods for periodType at reference and summarizes them.
// custom is only used when periodType is custom.
func (s *WACCService) PeriodSummary(ctx context.Context, periodType domain.PeriodType, reference time.Time, custom *domain.DateRange) (*PeriodSummary, error) {
	periods, err := domain.GeneratePeriods(periodType, reference, custom)
	if err != nil {
		return nil, err
	}

	entries, err := s.History.History(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := SummarizePeriods(periods, entries)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// BuildTrend evaluates the snapshot at the end of each period
func BuildTrend(periods []domain.DateRange, entries []domain.CapitalSourceHistoryEntry) []TrendPoint {
	points := make([]TrendPoint, 0, len(periods))
	for _, period := range periods {
		snapshot := domain.SnapshotAt(entries, period.End)
		points = append(points, TrendPoint{
			Period:            period.Label,
			Start:             period.Start,
			End:               period.End,
			WACC:              snapshot.WACC,
			TotalCapitalCents: snapshot.TotalCapitalCents,
		})
	}
	return points
}

// SummarizePeriods reports WACC at the start of the first period, at the end of the last
// one, and its time-weighted average over the whole span.
func SummarizePeriods(periods []domain.DateRange, entries []domain.CapitalSourceHistoryEntry) (PeriodSummary, error) {
	if len(periods) == 0 {
		return PeriodSummary{}, fmt.Errorf("%w: no periods to summarize", domain.ErrInvalidPeriod)
	}

	from := periods[0].Start
	to := periods[len(periods)-1].End

	return PeriodSummary{
		From:    from,
		To:      to,
		Start:   domain.SnapshotAt(entries, from).WACC,
		End:     domain.SnapshotAt(entries, to).WACC,
		Average: TimeWeightedWACC(entries, from, to),
	}, nil
}

// TimeWeightedWACC averages WACC over [from, to], weighting each value by how long it held.
// WACC is piecewise constant between the effective dates of ledger entries.
// Weights are in milliseconds; a span shorter than that yields the WACC at from.
func TimeWeightedWACC(entries []domain.CapitalSourceHistoryEntry, from, to time.Time) decimal.Decimal {
	current := domain.SnapshotAt(entries, from).WACC
	if !to.After(from) {
		return current
	}

	weighted := decimal.Zero
	total := decimal.Zero
	cursor := from

	for _, entry := range domain.EntriesInRange(entries, from, to) {
		changeAt := entry.EffectiveDate
		if !changeAt.After(cursor) {
			continue
		}
		span := decimal.NewFromInt(changeAt.Sub(cursor).Milliseconds())
		weighted = weighted.Add(current.Mul(span))
		total = total.Add(span)

		cursor = changeAt
		current = domain.SnapshotAt(entries, changeAt).WACC
	}

	span := decimal.NewFromInt(to.Sub(cursor).Milliseconds())
	weighted = weighted.Add(current.Mul(span))
	total = total.Add(span)

	if total.IsZero() {
		return domain.SnapshotAt(entries, from).WACC
	}
	return weighted.Div(total)
}
