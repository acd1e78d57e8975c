package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComputeWACC returns the capital-weighted average annual rate of the given sources.
// Logic: WACC = Sum(AvailableCents * AnnualRate) / Sum(AvailableCents)
//
// With no capital at all the WACC is 0, not an error.
// With a single source it is that source's rate whatever its amount.
func ComputeWACC(sources []CapitalSource) decimal.Decimal {
	total := decimal.Zero
	weighted := decimal.Zero
	for _, source := range sources {
		amount := source.AvailableCents.Decimal()
		total = total.Add(amount)
		weighted = weighted.Add(amount.Mul(source.AnnualRate))
	}

	if total.IsZero() {
		return decimal.Zero
	}

	return weighted.Div(total)
}

// TotalCapital sums the available amount of the given sources
func TotalCapital(sources []CapitalSource) Cents {
	var total Cents
	for _, source := range sources {
		total += source.AvailableCents
	}
	return total
}

// SnapshotAt computes the portfolio's WACC snapshot as of date from the full ledger
func SnapshotAt(entries []CapitalSourceHistoryEntry, date time.Time) WACCSnapshot {
	sources := ActiveSources(entries, date)
	return WACCSnapshot{
		Date:              date,
		Sources:           sources,
		TotalCapitalCents: TotalCapital(sources),
		WACC:              ComputeWACC(sources),
	}
}
