package game

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/tradegame/internal/instrument"
)

// InstrumentStats summarizes an instrument's price history for display.
// Mean, StdDev and Volatility are float64 because they are never used in
// settlement.
type InstrumentStats struct {
	InstrumentID  string          `json:"instrument_id"`
	Symbol        string          `json:"symbol"`
	Samples       int             `json:"samples"`
	Current       decimal.Decimal `json:"current"`
	Min           decimal.Decimal `json:"min"`
	Max           decimal.Decimal `json:"max"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Mean          float64         `json:"mean"`
	StdDev        float64         `json:"std_dev"`
	Volatility    float64         `json:"volatility"` // std-dev of turn-over-turn returns
	Bankrupt      bool            `json:"is_bankrupt"`
}

// ComputeStats derives InstrumentStats from the price history.
func ComputeStats(inst *instrument.Instrument) InstrumentStats {
	out := InstrumentStats{
		InstrumentID:  inst.ID,
		Symbol:        inst.Symbol,
		Samples:       len(inst.PriceHistory),
		Current:       inst.CurrentPrice,
		ChangePercent: inst.ChangePercent(),
		Bankrupt:      inst.Bankrupt,
	}
	if len(inst.PriceHistory) == 0 {
		return out
	}

	prices := make([]float64, len(inst.PriceHistory))
	out.Min = inst.PriceHistory[0]
	out.Max = inst.PriceHistory[0]
	for i, p := range inst.PriceHistory {
		prices[i] = p.InexactFloat64()
		out.Min = decimal.Min(out.Min, p)
		out.Max = decimal.Max(out.Max, p)
	}

	out.Mean = stat.Mean(prices, nil)
	out.StdDev = stdDev(prices)

	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	out.Volatility = stdDev(returns)
	return out
}

// stdDev is the sample standard deviation, zero below two samples.
func stdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}
