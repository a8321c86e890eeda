package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/tradegame/internal/session"
)

func TestRunGame_PlaysAllTurns(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.TotalTurns = 5
	cfg.InstrumentCount = 6
	seats := []session.Seat{{Name: "Alice"}, {Name: "Bob"}, {Name: "AI 1", IsAI: true}}

	turns := 0
	res, err := runGame(cfg, seats, 42, nil, func(*session.Session, *session.TurnReport) { turns++ })
	require.NoError(t, err)

	assert.Equal(t, 5, turns)
	assert.Len(t, res.Reports, 5)
	assert.Equal(t, session.PhaseEnded, res.Session.Phase)
	require.Len(t, res.Standings, 3)
	for i, s := range res.Standings {
		assert.Equal(t, i+1, s.Rank)
		if i > 0 {
			assert.False(t, s.Score.GreaterThan(res.Standings[i-1].Score), "standings must be descending")
		}
	}
	// Only the two humans reach the high-score list.
	assert.Len(t, res.Session.HighScores, 2)
	for _, p := range res.Session.Players {
		assert.Len(t, p.AssetsHistory, 5)
		assert.False(t, p.Cash.IsNegative())
	}
}

func TestRunGame_Deterministic(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.TotalTurns = 4
	seats := []session.Seat{{Name: "Alice"}, {Name: "AI 1", IsAI: true}}

	a, err := runGame(cfg, seats, 99, nil, nil)
	require.NoError(t, err)
	b, err := runGame(cfg, seats, 99, nil, nil)
	require.NoError(t, err)

	require.Len(t, b.Standings, len(a.Standings))
	for i := range a.Standings {
		assert.Equal(t, a.Standings[i].PlayerName, b.Standings[i].PlayerName)
		assert.True(t, a.Standings[i].Score.Equal(b.Standings[i].Score))
	}
}

func TestBuildSeats(t *testing.T) {
	seats, err := buildSeats([]string{" Alice ", "", "Bob"}, 2)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	assert.Equal(t, "Alice", seats[0].Name)
	assert.False(t, seats[1].IsAI)
	assert.Equal(t, "AI 2", seats[3].Name)
	assert.True(t, seats[3].IsAI)

	_, err = buildSeats(nil, 0)
	assert.Error(t, err)
	_, err = buildSeats([]string{"Alice"}, -1)
	assert.Error(t, err)
}
