// Package instrument models a tradable company: its price state, share
// supply, price history and the corporate actions applied to it.
//
// All monetary values use shopspring/decimal. Never float64 for money.
package instrument

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
)

var (
	// ErrBankrupt is returned when trading against a bankrupt instrument.
	ErrBankrupt = errors.New("instrument: instrument is bankrupt")

	// ErrInsufficientSupply is returned when fewer shares remain than requested.
	ErrInsufficientSupply = errors.New("instrument: not enough shares available")

	// ErrInvalidShares is returned for non-positive share counts.
	ErrInvalidShares = errors.New("instrument: share count must be positive")
)

var (
	// MinPrice is the floor applied to a non-bankrupt instrument after an update.
	MinPrice = decimal.NewFromInt(1)

	// BankruptcyThreshold is the price below which a bankruptcy check runs.
	BankruptcyThreshold = decimal.RequireFromString("0.5")

	// BankruptcyProbability is the chance the check flips the instrument bankrupt.
	BankruptcyProbability = 0.3

	// SplitThreshold is the minimum price for a stock split.
	SplitThreshold = decimal.NewFromInt(140)

	// DividendThreshold is the price an instrument must exceed to pay dividends.
	DividendThreshold = decimal.NewFromInt(10)

	// DividendRate is the per-share payout as a fraction of price.
	DividendRate = decimal.RequireFromString("0.01")

	two = decimal.NewFromInt(2)
)

// SplitRatios lists the ratios a split can draw from.
var SplitRatios = []int{2, 3, 4}

// Instrument is one listed company.
type Instrument struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`

	CurrentPrice  decimal.Decimal   `json:"current_price"`
	PreviousPrice decimal.Decimal   `json:"previous_price"`
	PriceHistory  []decimal.Decimal `json:"price_history"`

	TotalShares     int64 `json:"total_shares"`
	RemainingShares int64 `json:"remaining_shares"`

	Bankrupt bool `json:"is_bankrupt"`
}

// New creates a listed instrument with its full supply available.
func New(id, symbol, name, sector string, price decimal.Decimal, totalShares int64) *Instrument {
	return &Instrument{
		ID:              id,
		Symbol:          symbol,
		Name:            name,
		Sector:          sector,
		CurrentPrice:    price,
		PreviousPrice:   price,
		PriceHistory:    []decimal.Decimal{price},
		TotalShares:     totalShares,
		RemainingShares: totalShares,
	}
}

// Tradable reports whether the instrument can be traded or receive corporate actions.
func (i *Instrument) Tradable() bool {
	return !i.Bankrupt
}

// UpdatePrice applies one turn's combined move. A result below 1 is floored
// at 1 unless it is also below 0.5 and the 30% bankruptcy draw hits, in which
// case the instrument goes bankrupt at price 0. Returns true when this call
// bankrupted the instrument. Bankrupt instruments are left untouched.
func (i *Instrument) UpdatePrice(baseChange, eventChange decimal.Decimal, src rng.Source) bool {
	if i.Bankrupt {
		return false
	}

	old := i.CurrentPrice
	next := old.Add(baseChange).Add(eventChange)
	bankrupted := false

	if next.LessThan(MinPrice) {
		if next.LessThan(BankruptcyThreshold) && rng.Chance(src, BankruptcyProbability) {
			i.Bankrupt = true
			next = decimal.Zero
			bankrupted = true
		} else {
			next = MinPrice
		}
	}

	i.PreviousPrice = old
	i.CurrentPrice = next
	i.PriceHistory = append(i.PriceHistory, next)
	return bankrupted
}

// Split performs a stock split when the price is at least 140. The ratio is
// drawn from {2,3,4}; share counts scale by the ratio while the price is
// always halved, whatever the ratio. Returns the ratio, or 0 when the
// instrument does not qualify.
func (i *Instrument) Split(src rng.Source) int {
	if i.Bankrupt || i.CurrentPrice.LessThan(SplitThreshold) {
		return 0
	}
	ratio := SplitRatios[src.IntN(len(SplitRatios))]

	i.CurrentPrice = i.CurrentPrice.Div(two)
	i.TotalShares *= int64(ratio)
	i.RemainingShares *= int64(ratio)
	return ratio
}

// PaysDividend reports whether the instrument currently qualifies for dividends.
func (i *Instrument) PaysDividend() bool {
	return !i.Bankrupt && i.CurrentPrice.GreaterThan(DividendThreshold)
}

// CalculateDividend returns the payout for sharesHeld: 1% of price per share,
// rounded to cents. Zero when the price is 10 or less.
func (i *Instrument) CalculateDividend(sharesHeld int64) decimal.Decimal {
	if !i.PaysDividend() || sharesHeld <= 0 {
		return decimal.Zero
	}
	return i.CurrentPrice.Mul(DividendRate).Mul(decimal.NewFromInt(sharesHeld)).Round(2)
}

// CheckIssue validates that shares can be sold to a buyer without mutating anything.
func (i *Instrument) CheckIssue(shares int64) error {
	if shares <= 0 {
		return ErrInvalidShares
	}
	if i.Bankrupt {
		return ErrBankrupt
	}
	if i.RemainingShares < shares {
		return ErrInsufficientSupply
	}
	return nil
}

// Issue removes shares from the available inventory after a buy and applies
// block-trade impact. Callers validate with CheckIssue first.
func (i *Instrument) Issue(shares int64) {
	i.RemainingShares -= shares
	if p, ok := pricing.BuyImpact(i.CurrentPrice, shares); ok {
		i.CurrentPrice = p
	}
}

// Return puts sold shares back into the available inventory and applies
// block-trade impact.
func (i *Instrument) Return(shares int64) {
	i.RemainingShares += shares
	if i.RemainingShares > i.TotalShares {
		i.RemainingShares = i.TotalShares
	}
	if p, ok := pricing.SellImpact(i.CurrentPrice, shares); ok {
		i.CurrentPrice = p
	}
}

// ChangePercent is the move from the previous to the current price in percent.
func (i *Instrument) ChangePercent() decimal.Decimal {
	if i.PreviousPrice.IsZero() {
		return decimal.Zero
	}
	return i.CurrentPrice.Sub(i.PreviousPrice).Div(i.PreviousPrice).Mul(decimal.NewFromInt(100)).Round(2)
}

// Clone returns a deep copy.
func (i *Instrument) Clone() *Instrument {
	c := *i
	c.PriceHistory = append([]decimal.Decimal(nil), i.PriceHistory...)
	return &c
}
