package session

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/player"
)

// Player actions are only accepted while a turn is open for trading. Every
// rejection leaves the session untouched.

func (s *Session) resolveActors(playerID, instrumentID string) (*player.Player, *instrument.Instrument, error) {
	if s.Phase != PhaseTrading {
		return nil, nil, ErrNotInTurn
	}
	p, err := s.Player(playerID)
	if err != nil {
		return nil, nil, err
	}
	if instrumentID == "" {
		return p, nil, nil
	}
	inst, err := s.Instrument(instrumentID)
	if err != nil {
		return nil, nil, err
	}
	return p, inst, nil
}

// Buy executes a purchase for a player.
func (s *Session) Buy(playerID, instrumentID string, shares int64) (decimal.Decimal, error) {
	p, inst, err := s.resolveActors(playerID, instrumentID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Buy(inst, shares)
}

// Sell executes a sale for a player; player.SellAll sells the position.
func (s *Session) Sell(playerID, instrumentID string, shares int64) (player.SaleResult, error) {
	p, inst, err := s.resolveActors(playerID, instrumentID)
	if err != nil {
		return player.SaleResult{}, err
	}
	return p.Sell(inst, shares)
}

// Borrow takes a loan at the bank's current rate.
func (s *Session) Borrow(playerID string, amount decimal.Decimal) error {
	p, _, err := s.resolveActors(playerID, "")
	if err != nil {
		return err
	}
	return p.Borrow(amount, s.BankInterestRate)
}

// Repay pays down a player's loan; player.RepayAll pays what cash allows.
func (s *Session) Repay(playerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, _, err := s.resolveActors(playerID, "")
	if err != nil {
		return decimal.Zero, err
	}
	return p.Repay(amount)
}
