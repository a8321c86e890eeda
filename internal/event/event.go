// Package event generates the synthetic market news that moves prices each
// turn. Only the numeric impact and target set are produced here; headline
// text is left to whatever renders the event.
package event

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
)

// Per-turn event and per-event target bounds.
const (
	MinEvents  = 1
	MaxEvents  = 3
	MinTargets = 1
	MaxTargets = 3
)

// Generate draws 1-3 events for a turn. Each targets 1-3 distinct instruments
// from candidates. No events are produced when there are no candidates.
func Generate(turn int, regime pricing.Regime, candidates []string, src rng.Source) []model.MarketEvent {
	if len(candidates) == 0 {
		return nil
	}
	n := rng.Between(src, MinEvents, MaxEvents)
	events := make([]model.MarketEvent, 0, n)
	for i := 0; i < n; i++ {
		k := rng.Between(src, MinTargets, MaxTargets)
		picked := rng.Pick(src, len(candidates), k)
		ids := make([]string, len(picked))
		for j, idx := range picked {
			ids[j] = candidates[idx]
		}
		events = append(events, model.MarketEvent{
			ID:                    uuid.New().String(),
			Turn:                  turn,
			PriceImpact:           pricing.EventImpact(regime, src),
			AffectedInstrumentIDs: ids,
		})
	}
	return events
}

// ImpactByInstrument sums the impact of every event on each targeted
// instrument. Events for other turns are ignored.
func ImpactByInstrument(turn int, events []model.MarketEvent) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range events {
		if e.Turn != turn {
			continue
		}
		for _, id := range e.AffectedInstrumentIDs {
			out[id] = out[id].Add(e.PriceImpact)
		}
	}
	return out
}

// ForTurn filters a log to one turn.
func ForTurn(turn int, events []model.MarketEvent) []model.MarketEvent {
	var out []model.MarketEvent
	for _, e := range events {
		if e.Turn == turn {
			out = append(out, e)
		}
	}
	return out
}
