package session

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func assertDecimal(t *testing.T, want float64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, got.Equal(d(want)), "expected %v, got %s %v", want, got, msgAndArgs)
}

func oneInstrument(price float64) Option {
	return WithInstruments([]*instrument.Instrument{
		instrument.New("acme", "ACME", "Acme Corp", "Industrials", d(price), 1_000_000),
	})
}

func newSeededSession(t *testing.T, seats ...Seat) *Session {
	t.Helper()
	if len(seats) == 0 {
		seats = []Seat{{Name: "Alice"}, {Name: "Bob"}}
	}
	s, err := New(DefaultConfig(), seats, rng.NewSeeded(42))
	require.NoError(t, err)
	return s
}

// --- setup ---

func TestNew_SeedsDefaultRoster(t *testing.T) {
	s := newSeededSession(t)

	assert.Len(t, s.Players, 2)
	assert.NotEmpty(t, s.Instruments)
	assert.Equal(t, PhaseNotStarted, s.Phase)
	assert.Equal(t, 0, s.CurrentTurn)
	assert.Equal(t, DefaultTotalTurns, s.TotalTurns)
	assert.Equal(t, -1, s.CurrentPlayerIndex)
	for _, p := range s.Players {
		assertDecimal(t, 100000, p.Cash)
		assert.Empty(t, p.Holdings)
	}
	for _, inst := range s.Instruments {
		assert.True(t, inst.CurrentPrice.IsPositive())
		assert.Equal(t, inst.TotalShares, inst.RemainingShares)
	}
}

func TestNew_InstrumentCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InstrumentCount = 4
	s, err := New(cfg, []Seat{{Name: "Alice"}}, rng.NewSeeded(1))
	require.NoError(t, err)
	assert.Len(t, s.Instruments, 4)
}

func TestNew_Rejections(t *testing.T) {
	_, err := New(DefaultConfig(), nil, rng.NewSeeded(1))
	assert.ErrorIs(t, err, ErrNoPlayers)

	_, err = New(DefaultConfig(), []Seat{{Name: ""}}, rng.NewSeeded(1))
	assert.ErrorIs(t, err, ErrEmptyName)

	cfg := DefaultConfig()
	cfg.TotalTurns = -1
	_, err = New(cfg, []Seat{{Name: "Alice"}}, rng.NewSeeded(1))
	assert.ErrorIs(t, err, ErrInvalidTurns)

	cfg = DefaultConfig()
	cfg.BankInterestRate = d(-1)
	_, err = New(cfg, []Seat{{Name: "Alice"}}, rng.NewSeeded(1))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = New(DefaultConfig(), []Seat{{Name: "Alice"}}, rng.NewSeeded(1),
		WithInstruments([]*instrument.Instrument{}))
	assert.ErrorIs(t, err, ErrNoInstruments)
}

// --- turn state machine ---

func TestStartTurn_TenTurnLimit(t *testing.T) {
	s := newSeededSession(t)

	for turn := 1; turn <= 10; turn++ {
		require.NoError(t, s.StartTurn(), "turn %d", turn)
		assert.Equal(t, turn, s.CurrentTurn)
		assert.Equal(t, PhaseTrading, s.Phase)
		_, err := s.ResolveTurn()
		require.NoError(t, err)
	}

	assert.True(t, s.Terminal())
	err := s.StartTurn()
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, 10, s.CurrentTurn)
	assert.Equal(t, PhaseResolved, s.Phase)
}

func TestStartTurn_AfterEndGame(t *testing.T) {
	s := newSeededSession(t)
	s.EndGame()
	assert.ErrorIs(t, s.StartTurn(), ErrGameOver)
}

func TestStartTurn_GeneratesEvents(t *testing.T) {
	s := newSeededSession(t)
	require.NoError(t, s.StartTurn())

	events := s.EventsForTurn(1)
	require.GreaterOrEqual(t, len(events), 1)
	require.LessOrEqual(t, len(events), 3)
	for _, e := range events {
		assert.Equal(t, 1, e.Turn)
		assert.NotEmpty(t, e.AffectedInstrumentIDs)
		for _, id := range e.AffectedInstrumentIDs {
			_, err := s.Instrument(id)
			assert.NoError(t, err)
		}
	}
	assert.Contains(t, []pricing.Regime{pricing.Bull, pricing.Bear}, s.Condition)
}

func TestPlayerOrder_IsPermutation(t *testing.T) {
	s := newSeededSession(t, Seat{Name: "A"}, Seat{Name: "B"}, Seat{Name: "C"}, Seat{Name: "D"})
	for turn := 0; turn < 5; turn++ {
		require.NoError(t, s.StartTurn())
		order := append([]int(nil), s.PlayerOrder...)
		sort.Ints(order)
		assert.Equal(t, []int{0, 1, 2, 3}, order)
	}
}

func TestNextPlayer_WalksOrder(t *testing.T) {
	s := newSeededSession(t, Seat{Name: "A"}, Seat{Name: "B"}, Seat{Name: "C"})
	require.NoError(t, s.StartTurn())
	assert.Nil(t, s.CurrentPlayer())

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		require.True(t, s.NextPlayer())
		p := s.CurrentPlayer()
		require.NotNil(t, p)
		assert.Equal(t, s.Players[s.PlayerOrder[i]].ID, p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 3)

	assert.False(t, s.NextPlayer())
	assert.Nil(t, s.CurrentPlayer())
	assert.False(t, s.NextPlayer())
}

// --- actions ---

func TestActions_RejectedOutsideTrading(t *testing.T) {
	s := newSeededSession(t)
	p := s.Players[0]
	inst := s.Instruments[0]
	price := inst.CurrentPrice

	_, err := s.Buy(p.ID, inst.ID, 10)
	assert.ErrorIs(t, err, ErrNotInTurn)
	_, err = s.Sell(p.ID, inst.ID, 10)
	assert.ErrorIs(t, err, ErrNotInTurn)
	assert.ErrorIs(t, s.Borrow(p.ID, d(1000)), ErrNotInTurn)
	_, err = s.Repay(p.ID, d(1000))
	assert.ErrorIs(t, err, ErrNotInTurn)
	_, err = s.ResolveTurn()
	assert.ErrorIs(t, err, ErrNotInTurn)

	assertDecimal(t, 100000, p.Cash)
	assert.True(t, p.LoanAmount.IsZero())
	assert.Empty(t, p.Holdings)
	assert.True(t, inst.CurrentPrice.Equal(price))
	assert.Equal(t, inst.TotalShares, inst.RemainingShares)
}

func TestActions_UnknownIDs(t *testing.T) {
	s := newSeededSession(t)
	require.NoError(t, s.StartTurn())

	_, err := s.Buy("nobody", s.Instruments[0].ID, 10)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	_, err = s.Buy(s.Players[0].ID, "nothing", 10)
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestActions_BuySellDuringTurn(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}}, rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	p := s.Players[0]

	cost, err := s.Buy(p.ID, "acme", 100)
	require.NoError(t, err)
	assertDecimal(t, 5000, cost)

	res, err := s.Sell(p.ID, "acme", player.SellAll)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Shares)
	assertDecimal(t, 100000, p.Cash)
	assert.Empty(t, p.Holdings)

	_, err = s.Sell(p.ID, "acme", 1)
	assert.ErrorIs(t, err, player.ErrNoPosition)
}

func TestLoanInterest_ChargedAtTurnStart(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}}, rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	p := s.Players[0]

	require.NoError(t, s.Borrow(p.ID, d(10000)))
	assertDecimal(t, 10000, p.LoanAmount)
	assertDecimal(t, 110000, p.Cash)
	assertDecimal(t, 5, p.LoanInterestRate)

	_, err = s.ResolveTurn()
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	assertDecimal(t, 10500, p.LoanAmount)

	repaid, err := s.Repay(p.ID, player.RepayAll)
	require.NoError(t, err)
	assertDecimal(t, 10500, repaid)
	assert.True(t, p.LoanAmount.IsZero())
	assertDecimal(t, 99500, p.Cash)
}

// --- resolution ---

func TestResolveTurn_SplitAndDividend(t *testing.T) {
	// Draw order: event count, event targets, target pick, event magnitude,
	// base magnitude, base sign (1 = up), split ratio, payer count, payer pick.
	src := rng.NewScripted(
		[]int{0, 0, 0, 0, 0, 1, 0, 0, 0},
		[]float64{0.1, 0.1}, // bull regime, event up
	)
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}}, src, oneInstrument(150))
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	assert.Equal(t, pricing.Bull, s.Condition)

	p := s.Players[0]
	_, err = s.Buy(p.ID, "acme", 100)
	require.NoError(t, err)
	assertDecimal(t, 85000, p.Cash)

	report, err := s.ResolveTurn()
	require.NoError(t, err)

	// 150 + 8 base + 5 event = 163, split halves to 81.5.
	inst := s.Instruments[0]
	require.Len(t, report.Moves, 1)
	assertDecimal(t, 8, report.Moves[0].BaseChange)
	assertDecimal(t, 5, report.Moves[0].EventChange)
	assertDecimal(t, 163, report.Moves[0].Current)
	assert.Equal(t, 2, report.Splits["acme"])
	assertDecimal(t, 81.5, inst.CurrentPrice)
	assert.Equal(t, int64(2_000_000), inst.TotalShares)

	h := p.Holding("acme")
	require.NotNil(t, h)
	assert.Equal(t, int64(200), h.Shares)
	assertDecimal(t, 75, h.AverageCost)

	// 81.5 × 1% × 200 = 163.
	assert.Equal(t, []string{"acme"}, report.DividendPayers)
	assertDecimal(t, 163, report.Dividends[p.ID])
	assertDecimal(t, 85163, p.Cash)

	assertDecimal(t, 101463, report.NetWorth[p.ID])
	require.Len(t, p.AssetsHistory, 1)
	assertDecimal(t, 101463, p.AssetsHistory[0])

	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, -1, s.CurrentPlayerIndex)
}

func TestResolveTurn_Bankruptcy(t *testing.T) {
	// Bear regime, one event down by 3, base move down by 5, then the
	// bankruptcy draw hits.
	src := rng.NewScripted(
		[]int{0, 0, 0, 0, 0, 0},
		[]float64{0.9, 0.9, 0.1},
	)
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}}, src, oneInstrument(3))
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	assert.Equal(t, pricing.Bear, s.Condition)

	p := s.Players[0]
	_, err = s.Buy(p.ID, "acme", 1000)
	require.NoError(t, err)

	report, err := s.ResolveTurn()
	require.NoError(t, err)

	inst := s.Instruments[0]
	assert.True(t, inst.Bankrupt)
	assert.True(t, inst.CurrentPrice.IsZero())
	assert.Equal(t, []string{"acme"}, report.Bankruptcies)
	assert.Empty(t, p.Holdings)
	assertDecimal(t, 97000, report.NetWorth[p.ID])

	// Bankrupt instruments are skipped in later turns.
	require.NoError(t, s.StartTurn())
	assert.Empty(t, s.EventsForTurn(2))
	_, err = s.Buy(p.ID, "acme", 1)
	assert.ErrorIs(t, err, instrument.ErrBankrupt)
}

// --- scoring ---

func TestEndGame_RanksByScore(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}, {Name: "Bob"}, {Name: "Cara"}},
		rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)
	s.Players[0].Cash = d(90000)
	s.Players[1].Cash = d(120000)
	s.Players[2].Cash = d(100000)

	standings := s.EndGame()
	require.Len(t, standings, 3)
	assert.Equal(t, "Bob", standings[0].PlayerName)
	assert.Equal(t, "Cara", standings[1].PlayerName)
	assert.Equal(t, "Alice", standings[2].PlayerName)
	for i, st := range standings {
		assert.Equal(t, i+1, st.Rank)
	}
	assert.Equal(t, 3, s.Players[0].Ranking)
	assert.Equal(t, 1, s.Players[1].Ranking)
	assertDecimal(t, 120000, s.Players[1].FinalScore)

	assert.Equal(t, PhaseEnded, s.Phase)
	assert.Equal(t, s.TotalTurns, s.CurrentTurn)
}

func TestEndGame_TiesKeepJoinOrder(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "First"}, {Name: "Second"}, {Name: "Third"}},
		rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)

	standings := s.EndGame()
	assert.Equal(t, "First", standings[0].PlayerName)
	assert.Equal(t, "Second", standings[1].PlayerName)
	assert.Equal(t, "Third", standings[2].PlayerName)
}

func TestEndGame_Idempotent(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}, {Name: "Bot", IsAI: true}},
		rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)
	s.Players[1].Cash = d(150000)

	first := s.EndGame()
	second := s.EndGame()
	assert.Equal(t, first, second)

	// Only the human is entered, and only once.
	require.Len(t, s.HighScores, 1)
	assert.Equal(t, "Alice", s.HighScores[0].PlayerName)
	assert.Equal(t, s.ID, s.HighScores[0].GameID)
	assert.Len(t, s.NewEntries(), 1)
}

func TestEndGame_MarksHoldingsAtFinalPrice(t *testing.T) {
	s, err := New(DefaultConfig(), []Seat{{Name: "Alice"}}, rng.NewScripted(nil, nil), oneInstrument(50))
	require.NoError(t, err)
	require.NoError(t, s.StartTurn())
	_, err = s.Buy(s.Players[0].ID, "acme", 100)
	require.NoError(t, err)
	s.Instruments[0].CurrentPrice = d(80)

	standings := s.EndGame()
	assertDecimal(t, 103000, standings[0].Score)
}

func TestMergeHighScores_CapsAtLimit(t *testing.T) {
	var list []model.ScoreEntry
	for i := 0; i < HighScoreLimit; i++ {
		list = append(list, model.ScoreEntry{PlayerName: "old", Score: d(float64(1000 * (i + 1)))})
	}

	merged := MergeHighScores(list, []model.ScoreEntry{
		{PlayerName: "top", Score: d(50000)},
		{PlayerName: "low", Score: d(10)},
	}, HighScoreLimit)

	require.Len(t, merged, HighScoreLimit)
	assert.Equal(t, "top", merged[0].PlayerName)
	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].Score.GreaterThan(merged[i-1].Score))
	}
	for _, e := range merged {
		assert.NotEqual(t, "low", e.PlayerName)
	}
	assertDecimal(t, 2000, merged[len(merged)-1].Score)
}

func TestMergeHighScores_TieKeepsIncumbent(t *testing.T) {
	list := []model.ScoreEntry{{PlayerName: "incumbent", Score: d(500)}}
	merged := MergeHighScores(list, []model.ScoreEntry{{PlayerName: "challenger", Score: d(500)}}, 1)
	require.Len(t, merged, 1)
	assert.Equal(t, "incumbent", merged[0].PlayerName)
}

// --- snapshot ---

func TestSnapshot_RoundTrip(t *testing.T) {
	s := newSeededSession(t)
	require.NoError(t, s.StartTurn())
	alice := s.Players[0]
	_, err := s.Buy(alice.ID, s.Instruments[0].ID, 100)
	require.NoError(t, err)
	require.NoError(t, s.Borrow(alice.ID, d(5000)))
	_, err = s.ResolveTurn()
	require.NoError(t, err)

	snap := s.Snapshot()
	restored, err := Restore(snap, rng.NewSeeded(7), nil)
	require.NoError(t, err)

	again := restored.Snapshot()
	snap.UpdatedAt = time.Time{}
	again.UpdatedAt = time.Time{}
	assert.Equal(t, snap, again)

	assert.Equal(t, PhaseResolved, restored.Phase)
	require.NoError(t, restored.StartTurn())
	assert.Equal(t, 2, restored.CurrentTurn)
}

func TestSnapshot_EventsAreCopied(t *testing.T) {
	s := newSeededSession(t)
	require.NoError(t, s.StartTurn())
	require.NotEmpty(t, s.MarketEvents)
	target := s.MarketEvents[0].AffectedInstrumentIDs[0]

	snap := s.Snapshot()
	snap.MarketEvents[0].AffectedInstrumentIDs[0] = "tampered"
	assert.Equal(t, target, s.MarketEvents[0].AffectedInstrumentIDs[0])

	snap = s.Snapshot()
	restored, err := Restore(snap, rng.NewSeeded(7), nil)
	require.NoError(t, err)
	snap.MarketEvents[0].AffectedInstrumentIDs[0] = "tampered"
	assert.Equal(t, target, restored.MarketEvents[0].AffectedInstrumentIDs[0])
}

func TestRestore_Invalid(t *testing.T) {
	_, err := Restore(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	snap := newSeededSession(t).Snapshot()
	snap.CurrentTurn = snap.TotalTurns + 1
	_, err = Restore(snap, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	snap = newSeededSession(t).Snapshot()
	snap.PlayerOrder = nil
	_, err = Restore(snap, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}
