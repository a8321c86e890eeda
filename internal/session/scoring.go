package session

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/model"
)

// Standing is one row of the final ranking.
type Standing struct {
	Rank       int             `json:"rank"`
	PlayerID   string          `json:"player_id"`
	PlayerName string          `json:"player_name"`
	IsAI       bool            `json:"is_ai"`
	Score      decimal.Decimal `json:"score"`
}

// EndGame closes the game, scores every player at final prices and ranks
// them by descending score, ties going to whoever joined first. Non-AI
// players are entered on the high-score list once; calling EndGame again
// recomputes the same ranking without re-entering scores.
func (s *Session) EndGame() []Standing {
	alreadyEnded := s.Phase == PhaseEnded

	s.CurrentTurn = s.TotalTurns
	s.CurrentPlayerIndex = -1
	s.Phase = PhaseEnded

	prices := s.Prices()
	order := make([]int, len(s.Players))
	for i, p := range s.Players {
		p.FinalScore = p.CalculateTotalAssets(prices)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Players[order[a]].FinalScore.GreaterThan(s.Players[order[b]].FinalScore)
	})

	standings := make([]Standing, len(order))
	for rank, idx := range order {
		p := s.Players[idx]
		p.Ranking = rank + 1
		standings[rank] = Standing{
			Rank:       rank + 1,
			PlayerID:   p.ID,
			PlayerName: p.Name,
			IsAI:       p.IsAI,
			Score:      p.FinalScore,
		}
	}

	if !alreadyEnded {
		now := time.Now().UTC()
		var entries []model.ScoreEntry
		for _, p := range s.Players {
			if p.IsAI {
				continue
			}
			entries = append(entries, model.ScoreEntry{
				PlayerName: p.Name,
				Score:      p.FinalScore,
				GameID:     s.ID,
				Turns:      s.TotalTurns,
				RecordedAt: now,
			})
		}
		s.HighScores = MergeHighScores(s.HighScores, entries, HighScoreLimit)
		s.log("game ended", "players", len(s.Players), "high_score_entries", len(entries))
	}
	return standings
}

// NewEntries returns the high-score entries this game contributed.
func (s *Session) NewEntries() []model.ScoreEntry {
	var out []model.ScoreEntry
	for _, e := range s.HighScores {
		if e.GameID == s.ID {
			out = append(out, e)
		}
	}
	return out
}

// MergeHighScores appends entries to list and keeps the top limit by score,
// descending. Earlier entries win ties.
func MergeHighScores(list, entries []model.ScoreEntry, limit int) []model.ScoreEntry {
	merged := make([]model.ScoreEntry, 0, len(list)+len(entries))
	merged = append(merged, list...)
	merged = append(merged, entries...)
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Score.GreaterThan(merged[b].Score)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
