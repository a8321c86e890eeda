package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/rng"
	"github.com/atmx/tradegame/internal/session"
)

// budgetFraction of a player's cash goes into each new position.
var budgetFraction = decimal.RequireFromString("0.2")

// simResult is the outcome of a headless game.
type simResult struct {
	Session   *session.Session
	Standings []session.Standing
	Reports   []*session.TurnReport
}

// runGame plays every turn with the momentum strategy below and ends the game.
// onTurn, when set, is called after each resolved turn.
func runGame(cfg session.Config, seats []session.Seat, seed uint64, logger *slog.Logger, onTurn func(*session.Session, *session.TurnReport)) (*simResult, error) {
	opts := []session.Option{}
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	sess, err := session.New(cfg, seats, rng.NewSeeded(seed), opts...)
	if err != nil {
		return nil, err
	}

	res := &simResult{Session: sess}
	for {
		if err := sess.StartTurn(); err != nil {
			if errors.Is(err, session.ErrGameOver) {
				break
			}
			return nil, err
		}
		for sess.NextPlayer() {
			if err := playTurn(sess, sess.CurrentPlayer()); err != nil {
				return nil, fmt.Errorf("turn %d: %w", sess.CurrentTurn, err)
			}
		}
		report, err := sess.ResolveTurn()
		if err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, report)
		if onTurn != nil {
			onTurn(sess, report)
		}
	}

	res.Standings = sess.EndGame()
	return res, nil
}

// playTurn sells positions whose price fell last turn, then buys the
// strongest riser with a slice of cash. Rule rejections are skipped, not fatal.
func playTurn(sess *session.Session, p *player.Player) error {
	if p == nil {
		return nil
	}

	for _, inst := range sess.Instruments {
		h := p.Holding(inst.ID)
		if h == nil || !inst.Tradable() || !inst.CurrentPrice.LessThan(inst.PreviousPrice) {
			continue
		}
		if _, err := sess.Sell(p.ID, inst.ID, player.SellAll); err != nil && !isRuleViolation(err) {
			return err
		}
	}

	best := strongest(sess.Instruments)
	if best == nil {
		return nil
	}
	budget := p.Cash.Mul(budgetFraction)
	shares := budget.Div(best.CurrentPrice).IntPart()
	if shares > best.RemainingShares {
		shares = best.RemainingShares
	}
	if shares <= 0 {
		return nil
	}
	if _, err := sess.Buy(p.ID, best.ID, shares); err != nil && !isRuleViolation(err) {
		return err
	}
	return nil
}

// strongest returns the tradable instrument with the highest percentage change.
func strongest(insts []*instrument.Instrument) *instrument.Instrument {
	var best *instrument.Instrument
	for _, inst := range insts {
		if !inst.Tradable() || inst.RemainingShares == 0 {
			continue
		}
		if best == nil || inst.ChangePercent().GreaterThan(best.ChangePercent()) {
			best = inst
		}
	}
	return best
}

func isRuleViolation(err error) bool {
	return errors.Is(err, player.ErrInsufficientFunds) ||
		errors.Is(err, player.ErrInsufficientShares) ||
		errors.Is(err, instrument.ErrInsufficientSupply) ||
		errors.Is(err, instrument.ErrBankrupt)
}
