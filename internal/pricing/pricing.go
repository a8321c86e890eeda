// Package pricing implements the per-turn price dynamics of the game market:
// the bull/bear regime draw, the random-walk base change, news-event impact
// magnitudes and the immediate price impact of block trades.
//
// All monetary values use shopspring/decimal. Never float64 for money.
// Random magnitudes are drawn in whole cents so every result is exact.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/rng"
)

// Regime is the per-turn market classification.
type Regime string

const (
	Bull Regime = "bull"
	Bear Regime = "bear"
)

// BullProbability is the chance a turn resolves as Bull.
const BullProbability = 0.6

// Band is an inclusive magnitude range in whole currency units.
type Band struct {
	Min, Max int64
}

var (
	// BaseBands bound the random-walk magnitude per regime.
	BaseBands = map[Regime]Band{
		Bull: {Min: 8, Max: 38},
		Bear: {Min: 5, Max: 19},
	}

	// EventBands bound the news-event impact magnitude per regime.
	EventBands = map[Regime]Band{
		Bull: {Min: 5, Max: 15},
		Bear: {Min: 3, Max: 10},
	}

	// EventUpProbability is the chance an event pushes prices up.
	EventUpProbability = map[Regime]float64{
		Bull: 0.6,
		Bear: 0.5,
	}
)

// Block-trade thresholds.
var (
	BlockTradeShares int64 = 250_000

	BuyImpactMinPrice  = decimal.NewFromInt(4)
	SellImpactMinPrice = decimal.NewFromInt(10)
	SellImpactFloor    = decimal.NewFromInt(10)

	buyImpact  = decimal.RequireFromString("1.05")
	sellImpact = decimal.RequireFromString("0.95")
)

// PriceScale is the number of decimal places prices are rounded to after a
// multiplicative adjustment.
var PriceScale int32 = 2

// DrawRegime flips the weighted regime coin.
func DrawRegime(src rng.Source) Regime {
	if rng.Chance(src, BullProbability) {
		return Bull
	}
	return Bear
}

// drawMagnitude returns a uniform value in [b.Min, b.Max] in cent steps.
func drawMagnitude(src rng.Source, b Band) decimal.Decimal {
	lo := b.Min * 100
	span := (b.Max - b.Min) * 100
	cents := lo + int64(src.IntN(int(span)+1))
	return decimal.New(cents, -2)
}

// BaseChange draws the random-walk delta for one instrument. The sign is an
// independent fair coin in both regimes.
func BaseChange(r Regime, src rng.Source) decimal.Decimal {
	m := drawMagnitude(src, bandFor(BaseBands, r))
	if src.IntN(2) == 0 {
		return m.Neg()
	}
	return m
}

// EventImpact draws the signed price impact of one news event.
func EventImpact(r Regime, src rng.Source) decimal.Decimal {
	m := drawMagnitude(src, bandFor(EventBands, r))
	p, ok := EventUpProbability[r]
	if !ok {
		p = 0.5
	}
	if rng.Chance(src, p) {
		return m
	}
	return m.Neg()
}

func bandFor(bands map[Regime]Band, r Regime) Band {
	if b, ok := bands[r]; ok {
		return b
	}
	return bands[Bear]
}

// IsBlockTrade reports whether a share count is large enough to move the tape.
func IsBlockTrade(shares int64) bool {
	return shares >= BlockTradeShares
}

// BuyImpact returns the price after a buy of the given size. The second
// result is false when the trade does not qualify and price is unchanged.
// Qualifies at >= 250,000 shares with price >= 4; there is no upper bound.
func BuyImpact(price decimal.Decimal, shares int64) (decimal.Decimal, bool) {
	if !IsBlockTrade(shares) || price.LessThan(BuyImpactMinPrice) {
		return price, false
	}
	return price.Mul(buyImpact).Round(PriceScale), true
}

// SellImpact returns the price after a sell of the given size. Qualifies at
// >= 250,000 shares with price > 10; the result never drops below 10.
func SellImpact(price decimal.Decimal, shares int64) (decimal.Decimal, bool) {
	if !IsBlockTrade(shares) || price.LessThanOrEqual(SellImpactMinPrice) {
		return price, false
	}
	next := price.Mul(sellImpact).Round(PriceScale)
	if next.LessThan(SellImpactFloor) {
		next = SellImpactFloor
	}
	return next, true
}
