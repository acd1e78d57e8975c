package domain

import "errors"

// Error kinds returned by the capital ledger.
// Callers match them with errors.Is; wrapped errors carry the detail.
var (
	// ErrFutureDate rejects any write whose effective date is after now
	ErrFutureDate = errors.New("effective date is in the future")

	// ErrSourceNotFound means the source does not resolve to an active state at the effective date
	ErrSourceNotFound = errors.New("capital source not found")

	// ErrOutOfOrder means a change would be dated before an existing entry of the same lineage
	ErrOutOfOrder = errors.New("change precedes the latest entry of the capital source")

	// ErrStorageUnavailable means the ledger could not be loaded or persisted
	ErrStorageUnavailable = errors.New("capital history storage unavailable")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("invalid annual rate")
	ErrInvalidName   = errors.New("invalid source name: name cannot be empty")
	ErrInvalidSource = errors.New("invalid source id")
	ErrInvalidAction = errors.New("invalid history action")
	ErrInvalidPeriod = errors.New("invalid period")
)
