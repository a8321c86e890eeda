// Package model defines the plain structural records shared across the game
// engine, persistence and transport layers. Records carry no behaviour; a
// full game can be rebuilt from a GameSnapshot.
// All monetary values use shopspring/decimal. Never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game status values.
const (
	StatusNotStarted = "not_started"
	StatusTrading    = "trading"
	StatusResolved   = "resolved"
	StatusEnded      = "ended"
)

// MarketEvent is a synthetic news item for one turn. The engine fills the
// numeric fields; Headline, Category and Icon belong to whoever renders it.
type MarketEvent struct {
	ID                    string          `json:"id" msgpack:"id"`
	Turn                  int             `json:"turn" msgpack:"turn"`
	PriceImpact           decimal.Decimal `json:"price_impact" msgpack:"price_impact"`
	AffectedInstrumentIDs []string        `json:"affected_instrument_ids" msgpack:"affected_instrument_ids"`
	Headline              string          `json:"headline,omitempty" msgpack:"headline"`
	Category              string          `json:"category,omitempty" msgpack:"category"`
	Icon                  string          `json:"icon,omitempty" msgpack:"icon"`
}

// Affects reports whether the event targets an instrument.
func (e MarketEvent) Affects(instrumentID string) bool {
	for _, id := range e.AffectedInstrumentIDs {
		if id == instrumentID {
			return true
		}
	}
	return false
}

// CloneEvents deep-copies an event log, including each target list.
func CloneEvents(events []MarketEvent) []MarketEvent {
	if events == nil {
		return nil
	}
	out := make([]MarketEvent, len(events))
	for i, e := range events {
		e.AffectedInstrumentIDs = append([]string(nil), e.AffectedInstrumentIDs...)
		out[i] = e
	}
	return out
}

// InstrumentRecord is the stored form of an instrument.
type InstrumentRecord struct {
	ID              string            `json:"id" msgpack:"id"`
	Symbol          string            `json:"symbol" msgpack:"symbol"`
	Name            string            `json:"name" msgpack:"name"`
	Sector          string            `json:"sector" msgpack:"sector"`
	CurrentPrice    decimal.Decimal   `json:"current_price" msgpack:"current_price"`
	PreviousPrice   decimal.Decimal   `json:"previous_price" msgpack:"previous_price"`
	PriceHistory    []decimal.Decimal `json:"price_history" msgpack:"price_history"`
	TotalShares     int64             `json:"total_shares" msgpack:"total_shares"`
	RemainingShares int64             `json:"remaining_shares" msgpack:"remaining_shares"`
	Bankrupt        bool              `json:"is_bankrupt" msgpack:"is_bankrupt"`
}

// HoldingRecord is the stored form of a holding.
type HoldingRecord struct {
	InstrumentID string          `json:"instrument_id" msgpack:"instrument_id"`
	Shares       int64           `json:"shares" msgpack:"shares"`
	AverageCost  decimal.Decimal `json:"average_cost" msgpack:"average_cost"`
}

// PlayerRecord is the stored form of a player.
type PlayerRecord struct {
	ID               string            `json:"id" msgpack:"id"`
	Name             string            `json:"name" msgpack:"name"`
	IsAI             bool              `json:"is_ai" msgpack:"is_ai"`
	Cash             decimal.Decimal   `json:"cash" msgpack:"cash"`
	LoanAmount       decimal.Decimal   `json:"loan_amount" msgpack:"loan_amount"`
	LoanInterestRate decimal.Decimal   `json:"loan_interest_rate" msgpack:"loan_interest_rate"`
	Holdings         []HoldingRecord   `json:"holdings" msgpack:"holdings"`
	AssetsHistory    []decimal.Decimal `json:"assets_history" msgpack:"assets_history"`
	FinalScore       decimal.Decimal   `json:"final_score" msgpack:"final_score"`
	Ranking          int               `json:"ranking" msgpack:"ranking"`
}

// ScoreEntry is one row of the high-score list.
type ScoreEntry struct {
	PlayerName string          `json:"player_name" msgpack:"player_name" db:"player_name"`
	Score      decimal.Decimal `json:"score" msgpack:"score" db:"score"`
	GameID     string          `json:"game_id" msgpack:"game_id" db:"game_id"`
	Turns      int             `json:"turns" msgpack:"turns" db:"turns"`
	RecordedAt time.Time       `json:"recorded_at" msgpack:"recorded_at" db:"recorded_at"`
}

// GameSnapshot captures every entity of a game.
type GameSnapshot struct {
	ID                 string             `json:"id" msgpack:"id"`
	Status             string             `json:"status" msgpack:"status"`
	CurrentTurn        int                `json:"current_turn" msgpack:"current_turn"`
	TotalTurns         int                `json:"total_turns" msgpack:"total_turns"`
	MarketCondition    string             `json:"market_condition" msgpack:"market_condition"`
	PlayerOrder        []int              `json:"player_order" msgpack:"player_order"`
	CurrentPlayerIndex int                `json:"current_player_index" msgpack:"current_player_index"`
	BankInterestRate   decimal.Decimal    `json:"bank_interest_rate" msgpack:"bank_interest_rate"`
	StartingCash       decimal.Decimal    `json:"starting_cash" msgpack:"starting_cash"`
	FastMode           bool               `json:"fast_mode" msgpack:"fast_mode"`
	Players            []PlayerRecord     `json:"players" msgpack:"players"`
	Instruments        []InstrumentRecord `json:"instruments" msgpack:"instruments"`
	MarketEvents       []MarketEvent      `json:"market_events" msgpack:"market_events"`
	HighScores         []ScoreEntry       `json:"high_scores" msgpack:"high_scores"`
	UpdatedAt          time.Time          `json:"updated_at" msgpack:"updated_at"`
}

// GameSummary is the listing view of a stored game.
type GameSummary struct {
	ID          string    `json:"id" db:"id"`
	Status      string    `json:"status" db:"status"`
	CurrentTurn int       `json:"current_turn" db:"current_turn"`
	TotalTurns  int       `json:"total_turns" db:"total_turns"`
	Players     int       `json:"players" db:"players"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Summary derives the listing view.
func (g *GameSnapshot) Summary() GameSummary {
	return GameSummary{
		ID:          g.ID,
		Status:      g.Status,
		CurrentTurn: g.CurrentTurn,
		TotalTurns:  g.TotalTurns,
		Players:     len(g.Players),
		UpdatedAt:   g.UpdatedAt,
	}
}

// Clone returns a deep copy of the snapshot.
func (g *GameSnapshot) Clone() *GameSnapshot {
	c := *g
	c.PlayerOrder = append([]int(nil), g.PlayerOrder...)
	c.Players = make([]PlayerRecord, len(g.Players))
	for i, p := range g.Players {
		p.Holdings = append([]HoldingRecord(nil), p.Holdings...)
		p.AssetsHistory = append([]decimal.Decimal(nil), p.AssetsHistory...)
		c.Players[i] = p
	}
	c.Instruments = make([]InstrumentRecord, len(g.Instruments))
	for i, inst := range g.Instruments {
		inst.PriceHistory = append([]decimal.Decimal(nil), inst.PriceHistory...)
		c.Instruments[i] = inst
	}
	c.MarketEvents = CloneEvents(g.MarketEvents)
	c.HighScores = append([]ScoreEntry(nil), g.HighScores...)
	return &c
}
