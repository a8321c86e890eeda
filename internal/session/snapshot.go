package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
)

var ErrInvalidSnapshot = errors.New("session: invalid snapshot")

// Snapshot copies the full game state into plain records.
func (s *Session) Snapshot() *model.GameSnapshot {
	snap := &model.GameSnapshot{
		ID:                 s.ID,
		Status:             string(s.Phase),
		CurrentTurn:        s.CurrentTurn,
		TotalTurns:         s.TotalTurns,
		MarketCondition:    string(s.Condition),
		PlayerOrder:        append([]int(nil), s.PlayerOrder...),
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		BankInterestRate:   s.BankInterestRate,
		StartingCash:       s.StartingCash,
		FastMode:           s.FastMode,
		MarketEvents:       model.CloneEvents(s.MarketEvents),
		HighScores:         append([]model.ScoreEntry(nil), s.HighScores...),
		UpdatedAt:          time.Now().UTC(),
	}

	for _, inst := range s.Instruments {
		snap.Instruments = append(snap.Instruments, model.InstrumentRecord{
			ID:              inst.ID,
			Symbol:          inst.Symbol,
			Name:            inst.Name,
			Sector:          inst.Sector,
			CurrentPrice:    inst.CurrentPrice,
			PreviousPrice:   inst.PreviousPrice,
			PriceHistory:    append([]decimal.Decimal(nil), inst.PriceHistory...),
			TotalShares:     inst.TotalShares,
			RemainingShares: inst.RemainingShares,
			Bankrupt:        inst.Bankrupt,
		})
	}

	for _, p := range s.Players {
		rec := model.PlayerRecord{
			ID:               p.ID,
			Name:             p.Name,
			IsAI:             p.IsAI,
			Cash:             p.Cash,
			LoanAmount:       p.LoanAmount,
			LoanInterestRate: p.LoanInterestRate,
			AssetsHistory:    append([]decimal.Decimal(nil), p.AssetsHistory...),
			FinalScore:       p.FinalScore,
			Ranking:          p.Ranking,
		}
		// Holdings follow instrument order so snapshots are stable.
		for _, inst := range s.Instruments {
			if h := p.Holding(inst.ID); h != nil {
				rec.Holdings = append(rec.Holdings, model.HoldingRecord{
					InstrumentID: h.InstrumentID,
					Shares:       h.Shares,
					AverageCost:  h.AverageCost,
				})
			}
		}
		snap.Players = append(snap.Players, rec)
	}
	return snap
}

// Restore rebuilds a session from a snapshot. The random source is not part
// of the snapshot; callers supply a fresh one.
func Restore(snap *model.GameSnapshot, src rng.Source, logger *slog.Logger) (*Session, error) {
	if snap == nil || snap.ID == "" || len(snap.Players) == 0 || len(snap.Instruments) == 0 {
		return nil, ErrInvalidSnapshot
	}
	if snap.CurrentTurn < 0 || snap.CurrentTurn > snap.TotalTurns {
		return nil, ErrInvalidSnapshot
	}
	if len(snap.PlayerOrder) != len(snap.Players) {
		return nil, ErrInvalidSnapshot
	}
	if src == nil {
		src = rng.New()
	}

	s := &Session{
		ID:                 snap.ID,
		CurrentTurn:        snap.CurrentTurn,
		TotalTurns:         snap.TotalTurns,
		Condition:          pricing.Regime(snap.MarketCondition),
		PlayerOrder:        append([]int(nil), snap.PlayerOrder...),
		CurrentPlayerIndex: snap.CurrentPlayerIndex,
		BankInterestRate:   snap.BankInterestRate,
		MarketEvents:       model.CloneEvents(snap.MarketEvents),
		HighScores:         append([]model.ScoreEntry(nil), snap.HighScores...),
		Phase:              Phase(snap.Status),
		StartingCash:       snap.StartingCash,
		FastMode:           snap.FastMode,
		src:                src,
		logger:             logger,
	}
	if s.Phase == "" {
		s.Phase = PhaseNotStarted
	}

	for _, r := range snap.Instruments {
		s.Instruments = append(s.Instruments, &instrument.Instrument{
			ID:              r.ID,
			Symbol:          r.Symbol,
			Name:            r.Name,
			Sector:          r.Sector,
			CurrentPrice:    r.CurrentPrice,
			PreviousPrice:   r.PreviousPrice,
			PriceHistory:    append([]decimal.Decimal(nil), r.PriceHistory...),
			TotalShares:     r.TotalShares,
			RemainingShares: r.RemainingShares,
			Bankrupt:        r.Bankrupt,
		})
	}

	for _, r := range snap.Players {
		p := player.New(r.ID, r.Name, r.IsAI, r.Cash)
		p.LoanAmount = r.LoanAmount
		p.LoanInterestRate = r.LoanInterestRate
		p.AssetsHistory = append([]decimal.Decimal(nil), r.AssetsHistory...)
		p.FinalScore = r.FinalScore
		p.Ranking = r.Ranking
		for _, h := range r.Holdings {
			if h.Shares <= 0 {
				continue
			}
			p.Holdings[h.InstrumentID] = &player.Holding{
				InstrumentID: h.InstrumentID,
				Shares:       h.Shares,
				AverageCost:  h.AverageCost,
			}
		}
		s.Players = append(s.Players, p)
	}
	return s, nil
}
