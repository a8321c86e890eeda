package player

import "github.com/shopspring/decimal"

// Holding is a player's position in one instrument. A holding with zero
// shares is deleted from the player, never retained.
type Holding struct {
	InstrumentID string          `json:"instrument_id"`
	Shares       int64           `json:"shares"`
	AverageCost  decimal.Decimal `json:"average_cost"`
}

// CostBasis is shares × average cost.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(decimal.NewFromInt(h.Shares))
}

// Value marks the holding to price.
func (h *Holding) Value(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Shares))
}

// UnrealizedPnL is value minus cost basis.
func (h *Holding) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return h.Value(price).Sub(h.CostBasis())
}

// PnLPercent is unrealized P/L relative to cost basis, in percent.
func (h *Holding) PnLPercent(price decimal.Decimal) decimal.Decimal {
	basis := h.CostBasis()
	if basis.IsZero() {
		return decimal.Zero
	}
	return h.UnrealizedPnL(price).Div(basis).Mul(decimal.NewFromInt(100)).Round(2)
}
