package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryAction represents the kind of change a ledger entry records
type HistoryAction string

const (
	ActionAdded         HistoryAction = "ADDED"
	ActionAmountChanged HistoryAction = "AMOUNT_CHANGED"
	ActionRateChanged   HistoryAction = "RATE_CHANGED"
	ActionRemoved       HistoryAction = "REMOVED"
)

// Valid reports whether the action is one of the known ledger actions
func (a HistoryAction) Valid() bool {
	switch a {
	case ActionAdded, ActionAmountChanged, ActionRateChanged, ActionRemoved:
		return true
	default:
		return false
	}
}

// SourceID identifies one funding-source lineage.
// It is assigned once when the source is added and never reused.
type SourceID string

// NewSourceID generates a fresh lineage identifier
func NewSourceID() SourceID {
	return SourceID(uuid.NewString())
}

// CapitalSourceHistoryEntry is one immutable record in the capital-source ledger.
// Entries are never mutated or deleted; every state change is a new entry.
type CapitalSourceHistoryEntry struct {
	ID             uuid.UUID
	Sequence       int64 // Monotonic insertion order, tie-breaker for equal EffectiveDate
	SourceID       SourceID
	EffectiveDate  time.Time
	Name           string
	AnnualRate     decimal.Decimal // Decimal fraction, 0.14 = 14%
	AvailableCents Cents
	Action         HistoryAction
	PreviousRate   decimal.NullDecimal // Audit only, set on RATE_CHANGED
	PreviousAmount NullCents           // Audit only, set on AMOUNT_CHANGED
	Notes          string
}

// Before reports whether e sorts before other in ledger order (EffectiveDate, then Sequence)
func (e CapitalSourceHistoryEntry) Before(other CapitalSourceHistoryEntry) bool {
	if !e.EffectiveDate.Equal(other.EffectiveDate) {
		return e.EffectiveDate.Before(other.EffectiveDate)
	}
	return e.Sequence < other.Sequence
}

// Validate ensures a ledger entry is well formed before it is persisted
func (e *CapitalSourceHistoryEntry) Validate() error {
	if e.SourceID == "" {
		return ErrInvalidSource
	}
	if !e.Action.Valid() {
		return ErrInvalidAction
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if err := ValidateRate(e.AnnualRate); err != nil {
		return err
	}
	if err := e.AvailableCents.Validate(); err != nil {
		return err
	}
	return nil
}

// NewCapitalSource is the input for adding a funding source to the ledger
type NewCapitalSource struct {
	Name           string
	AnnualRate     decimal.Decimal
	AvailableCents Cents
}

// Validate checks the name, rate and amount of a new source
func (s NewCapitalSource) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if err := ValidateRate(s.AnnualRate); err != nil {
		return err
	}
	return s.AvailableCents.Validate()
}

// CapitalSource is the derived state of one source at a point in time.
// It is a projection of the ledger and is never persisted.
type CapitalSource struct {
	SourceID       SourceID
	Name           string
	AnnualRate     decimal.Decimal
	AvailableCents Cents
	UsedCents      Cents // Usage is tracked outside the ledger, always 0 here
	RemainingCents Cents
}

// WACCSnapshot is the portfolio's funding state and weighted cost at one instant
type WACCSnapshot struct {
	Date              time.Time
	Sources           []CapitalSource
	TotalCapitalCents Cents
	WACC              decimal.Decimal
}

// ValidateName rejects blank source names
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}
