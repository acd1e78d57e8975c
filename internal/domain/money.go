package domain

import (
	"fmt"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Cents is an amount in the integer minor currency unit.
// Money never travels as floating point.
type Cents int64

// Validate rejects negative amounts
func (c Cents) Validate() error {
	if c < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, int64(c))
	}
	return nil
}

// Decimal returns the amount as a decimal number of cents
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c))
}

// Display formats the amount in the given ISO currency, e.g. "$500,000.00"
func (c Cents) Display(currency string) string {
	if money.GetCurrency(currency) == nil {
		return strconv.FormatInt(int64(c), 10)
	}
	return money.New(int64(c), currency).Display()
}

// ParseCents parses a base-10 integer amount of cents.
// Fractional or negative input is rejected.
func ParseCents(s string) (Cents, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer amount of cents", ErrInvalidAmount, s)
	}
	c := Cents(v)
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return c, nil
}

// NullCents is an optional Cents value, shaped like decimal.NullDecimal
type NullCents struct {
	Cents Cents
	Valid bool
}

// NewNullCents returns a set NullCents
func NewNullCents(c Cents) NullCents {
	return NullCents{Cents: c, Valid: true}
}

var (
	minRate = decimal.Zero
	maxRate = decimal.NewFromInt(1)
)

// ValidateRate ensures an annual rate is a decimal fraction in [0, 1]
func ValidateRate(rate decimal.Decimal) error {
	if rate.LessThan(minRate) || rate.GreaterThan(maxRate) {
		return fmt.Errorf("%w: %s is outside [0, 1]", ErrInvalidRate, rate.String())
	}
	return nil
}

// ParseRate parses and validates a decimal rate such as "0.14"
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrInvalidRate, s)
	}
	if err := ValidateRate(rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}
