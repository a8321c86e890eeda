// Package credit implements the bank's lending rules: the collateral ceiling
// on outstanding loans and per-turn interest accrual.
//
// The collateral check is measured against a player's pre-loan net worth
// (cash plus holdings at cost basis, less existing debt), so a new loan can
// never count towards its own collateral.
package credit

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrCollateralExceeded is returned when a loan would push the balance
	// beyond the allowed multiple of net worth.
	ErrCollateralExceeded = errors.New("credit: loan exceeds collateral limit")

	hundred = decimal.NewFromInt(100)
)

// Limiter enforces the collateral ceiling.
type Limiter struct {
	// Multiplier is the maximum loan balance as a multiple of net worth.
	Multiplier decimal.Decimal
}

// Default allows a loan balance of up to 2x pre-loan net worth.
var Default = NewLimiter(decimal.NewFromInt(2))

// NewLimiter creates a limiter. A non-positive multiplier disables lending.
func NewLimiter(multiplier decimal.Decimal) *Limiter {
	if multiplier.IsNegative() {
		multiplier = decimal.Zero
	}
	return &Limiter{Multiplier: multiplier}
}

// Ceiling returns the maximum total loan balance for a net worth.
func (l *Limiter) Ceiling(netWorth decimal.Decimal) decimal.Decimal {
	if !netWorth.IsPositive() {
		return decimal.Zero
	}
	return netWorth.Mul(l.Multiplier)
}

// CheckBorrow validates a new loan of amount on top of currentLoan.
// Returns nil when currentLoan + amount <= Multiplier × netWorth.
func (l *Limiter) CheckBorrow(currentLoan, amount, netWorth decimal.Decimal) error {
	if currentLoan.Add(amount).GreaterThan(l.Ceiling(netWorth)) {
		return ErrCollateralExceeded
	}
	return nil
}

// Headroom returns how much more can be borrowed, never negative.
func (l *Limiter) Headroom(currentLoan, netWorth decimal.Decimal) decimal.Decimal {
	h := l.Ceiling(netWorth).Sub(currentLoan)
	if h.IsNegative() {
		return decimal.Zero
	}
	return h
}

// Accrue returns one turn of interest on loan at ratePercent, rounded to cents.
func Accrue(loan, ratePercent decimal.Decimal) decimal.Decimal {
	if !loan.IsPositive() || !ratePercent.IsPositive() {
		return decimal.Zero
	}
	return loan.Mul(ratePercent).Div(hundred).Round(2)
}
