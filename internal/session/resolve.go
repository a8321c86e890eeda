package session

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/event"
	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
)

// Dividend payer selection bounds per turn.
const (
	MinDividendPayers = 1
	MaxDividendPayers = 3
)

// PriceMove records one instrument's update for a turn.
type PriceMove struct {
	InstrumentID string          `json:"instrument_id"`
	Previous     decimal.Decimal `json:"previous"`
	Current      decimal.Decimal `json:"current"`
	BaseChange   decimal.Decimal `json:"base_change"`
	EventChange  decimal.Decimal `json:"event_change"`
}

// TurnReport summarizes what ResolveTurn did.
type TurnReport struct {
	Turn           int                        `json:"turn"`
	Condition      pricing.Regime             `json:"condition"`
	Moves          []PriceMove                `json:"moves"`
	Splits         map[string]int             `json:"splits"`
	DividendPayers []string                   `json:"dividend_payers"`
	Dividends      map[string]decimal.Decimal `json:"dividends"` // player id → amount
	Bankruptcies   []string                   `json:"bankruptcies"`
	NetWorth       map[string]decimal.Decimal `json:"net_worth"` // player id → snapshot
}

// ResolveTurn settles the open turn in order: price updates (base move plus
// the summed impact of this turn's events), splits, dividends, removal of
// bankrupt holdings, then a net-worth snapshot for every player.
func (s *Session) ResolveTurn() (*TurnReport, error) {
	if s.Phase != PhaseTrading {
		return nil, ErrNotInTurn
	}

	report := &TurnReport{
		Turn:      s.CurrentTurn,
		Condition: s.Condition,
		Splits:    make(map[string]int),
		Dividends: make(map[string]decimal.Decimal),
		NetWorth:  make(map[string]decimal.Decimal),
	}

	// 1. Prices.
	impacts := event.ImpactByInstrument(s.CurrentTurn, s.MarketEvents)
	for _, inst := range s.Instruments {
		if !inst.Tradable() {
			continue
		}
		base := pricing.BaseChange(s.Condition, s.src)
		ev := impacts[inst.ID]
		prev := inst.CurrentPrice
		if inst.UpdatePrice(base, ev, s.src) {
			report.Bankruptcies = append(report.Bankruptcies, inst.ID)
		}
		report.Moves = append(report.Moves, PriceMove{
			InstrumentID: inst.ID,
			Previous:     prev,
			Current:      inst.CurrentPrice,
			BaseChange:   base,
			EventChange:  ev,
		})
	}

	// 2. Splits.
	for _, inst := range s.Instruments {
		if ratio := inst.Split(s.src); ratio > 0 {
			report.Splits[inst.ID] = ratio
		}
	}
	if len(report.Splits) > 0 {
		for _, p := range s.Players {
			p.HandleStockSplits(report.Splits)
		}
	}

	// 3. Dividends.
	payers := s.selectDividendPayers()
	if len(payers) > 0 {
		for id := range payers {
			report.DividendPayers = append(report.DividendPayers, id)
		}
		sort.Strings(report.DividendPayers)
		for _, p := range s.Players {
			if paid := p.ReceiveDividends(payers); paid.IsPositive() {
				report.Dividends[p.ID] = paid
			}
		}
	}

	// 4. Bankruptcy cleanup.
	bankrupt := make(map[string]bool)
	for _, inst := range s.Instruments {
		if inst.Bankrupt {
			bankrupt[inst.ID] = true
		}
	}
	if len(bankrupt) > 0 {
		for _, p := range s.Players {
			p.HandleBankruptcies(bankrupt)
		}
	}

	// 5. Snapshot.
	prices := s.Prices()
	for _, p := range s.Players {
		report.NetWorth[p.ID] = p.RecordAssets(prices)
	}

	s.Phase = PhaseResolved
	s.CurrentPlayerIndex = -1
	s.log("turn resolved",
		"turn", s.CurrentTurn,
		"splits", len(report.Splits),
		"dividend_payers", len(report.DividendPayers),
		"bankruptcies", len(report.Bankruptcies),
	)
	return report, nil
}

// selectDividendPayers picks 1-3 random instruments among those that
// currently qualify for a dividend.
func (s *Session) selectDividendPayers() map[string]player.DividendPayer {
	var eligible []*instrument.Instrument
	for _, inst := range s.Instruments {
		if inst.PaysDividend() {
			eligible = append(eligible, inst)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	k := rng.Between(s.src, MinDividendPayers, MaxDividendPayers)
	out := make(map[string]player.DividendPayer, k)
	for _, idx := range rng.Pick(s.src, len(eligible), k) {
		out[eligible[idx].ID] = eligible[idx]
	}
	return out
}
