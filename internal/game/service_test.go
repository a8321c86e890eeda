package game_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/game"
	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/session"
	"github.com/atmx/tradegame/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*game.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := game.NewService(ms, nil, session.DefaultConfig())
	return svc, ms, newRouter(svc)
}

func newRouter(svc *game.Service) chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Mount)
	return r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// createGame seeds a deterministic game with one human and one AI player.
func createGame(t *testing.T, router chi.Router) model.GameSnapshot {
	t.Helper()
	seed := uint64(7)
	w := do(t, router, "POST", "/api/v1/games", game.CreateGameRequest{
		Players:         []session.Seat{{Name: "Alice"}, {Name: "Bot", IsAI: true}},
		InstrumentCount: 4,
		Seed:            &seed,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[model.GameSnapshot](t, w)
}

func gamePath(id, suffix string) string {
	return "/api/v1/games/" + id + suffix
}

// --- Game setup ---

func TestCreateGame(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)

	if snap.ID == "" {
		t.Fatal("expected game id")
	}
	if len(snap.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(snap.Players))
	}
	if len(snap.Instruments) != 4 {
		t.Fatalf("expected 4 instruments, got %d", len(snap.Instruments))
	}
	if snap.Status != model.StatusNotStarted || snap.CurrentTurn != 0 {
		t.Errorf("unexpected initial state: status=%s turn=%d", snap.Status, snap.CurrentTurn)
	}
	if !snap.Players[0].Cash.Equal(d(100000)) {
		t.Errorf("starting cash = %s, want 100000", snap.Players[0].Cash)
	}
}

func TestCreateGame_NoPlayers(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "POST", "/api/v1/games", game.CreateGameRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateGame_InvalidBody(t *testing.T) {
	_, _, router := newTestEnv(t)
	req := httptest.NewRequest("POST", "/api/v1/games", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetGame_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "GET", gamePath("missing", ""), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListGames(t *testing.T) {
	_, _, router := newTestEnv(t)
	createGame(t, router)
	createGame(t, router)

	w := do(t, router, "GET", "/api/v1/games", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	games := decode[[]model.GameSummary](t, w)
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}
}

// --- Turn lifecycle ---

func TestActionsBeforeTurnRejected(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)

	w := do(t, router, "POST", gamePath(snap.ID, "/buy"), game.TradeRequest{
		PlayerID:     snap.Players[0].ID,
		InstrumentID: snap.Instruments[0].ID,
		Shares:       10,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/resolve"), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for resolve, got %d", w.Code)
	}
}

func TestStartTurn(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)

	w := do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[game.TurnResponse](t, w)
	if resp.Turn != 1 {
		t.Errorf("turn = %d, want 1", resp.Turn)
	}
	if len(resp.PlayerOrder) != 2 {
		t.Errorf("expected 2 ids in player order, got %d", len(resp.PlayerOrder))
	}
	if len(resp.Events) < 1 || len(resp.Events) > 3 {
		t.Errorf("expected 1-3 events, got %d", len(resp.Events))
	}
}

func TestNextPlayer(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)

	for i := 0; i < 2; i++ {
		w := do(t, router, "POST", gamePath(snap.ID, "/next-player"), nil)
		resp := decode[game.NextPlayerResponse](t, w)
		if !resp.HasNext || resp.CurrentPlayer == nil {
			t.Fatalf("step %d: expected a current player", i)
		}
	}
	w := do(t, router, "POST", gamePath(snap.ID, "/next-player"), nil)
	resp := decode[game.NextPlayerResponse](t, w)
	if resp.HasNext || resp.CurrentPlayer != nil {
		t.Fatalf("expected the turn order to be exhausted")
	}
}

func TestFullGame_TurnLimitAndScores(t *testing.T) {
	_, ms, router := newTestEnv(t)
	snap := createGame(t, router)

	for turn := 1; turn <= 10; turn++ {
		if w := do(t, router, "POST", gamePath(snap.ID, "/turns"), nil); w.Code != http.StatusOK {
			t.Fatalf("turn %d: expected 200, got %d", turn, w.Code)
		}
		w := do(t, router, "POST", gamePath(snap.ID, "/resolve"), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("resolve %d: expected 200, got %d", turn, w.Code)
		}
		report := decode[session.TurnReport](t, w)
		if report.Turn != turn {
			t.Fatalf("report turn = %d, want %d", report.Turn, turn)
		}
	}

	w := do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after last turn, got %d", w.Code)
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/end"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	end := decode[game.EndGameResponse](t, w)
	if len(end.Standings) != 2 || end.Standings[0].Rank != 1 {
		t.Fatalf("unexpected standings: %+v", end.Standings)
	}

	// Ending again must not record the scores twice.
	do(t, router, "POST", gamePath(snap.ID, "/end"), nil)

	w = do(t, router, "GET", "/api/v1/highscores", nil)
	scores := decode[[]model.ScoreEntry](t, w)
	if len(scores) != 1 || scores[0].PlayerName != "Alice" {
		t.Fatalf("expected only Alice on the high-score list, got %+v", scores)
	}

	stored, err := ms.GetGame(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("get stored game: %v", err)
	}
	if stored.Status != model.StatusEnded || stored.CurrentTurn != 10 {
		t.Errorf("stored game not ended: status=%s turn=%d", stored.Status, stored.CurrentTurn)
	}
}

// --- Trading ---

func TestBuyAndSell(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)

	alice := snap.Players[0].ID
	inst := snap.Instruments[0]

	w := do(t, router, "POST", gamePath(snap.ID, "/buy"), game.TradeRequest{
		PlayerID: alice, InstrumentID: inst.ID, Shares: 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	buy := decode[game.TradeResponse](t, w)
	wantCost := inst.CurrentPrice.Mul(decimal.NewFromInt(100))
	if !buy.Amount.Equal(wantCost) {
		t.Errorf("cost = %s, want %s", buy.Amount, wantCost)
	}
	if !buy.Cash.Equal(d(100000).Sub(wantCost)) {
		t.Errorf("cash = %s", buy.Cash)
	}
	if buy.BlockTrade {
		t.Error("100 shares must not be a block trade")
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/sell"), game.TradeRequest{
		PlayerID: alice, InstrumentID: inst.ID, Shares: 101,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 overselling, got %d", w.Code)
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/sell"), game.TradeRequest{
		PlayerID: alice, InstrumentID: inst.ID, Shares: -1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sell := decode[game.TradeResponse](t, w)
	if sell.Shares != 100 {
		t.Errorf("sold %d shares, want 100", sell.Shares)
	}
	if !sell.Cash.Equal(d(100000)) {
		t.Errorf("cash after round trip = %s, want 100000", sell.Cash)
	}
	if !sell.Profit.IsZero() {
		t.Errorf("profit = %s, want 0", sell.Profit)
	}
}

func TestBuy_Rejections(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)

	alice := snap.Players[0].ID
	inst := snap.Instruments[0].ID

	cases := []struct {
		name string
		req  game.TradeRequest
		want int
	}{
		{"zero shares", game.TradeRequest{PlayerID: alice, InstrumentID: inst, Shares: 0}, http.StatusBadRequest},
		{"missing player", game.TradeRequest{InstrumentID: inst, Shares: 1}, http.StatusBadRequest},
		{"unknown player", game.TradeRequest{PlayerID: "ghost", InstrumentID: inst, Shares: 1}, http.StatusNotFound},
		{"unknown instrument", game.TradeRequest{PlayerID: alice, InstrumentID: "nope", Shares: 1}, http.StatusNotFound},
		{"too expensive", game.TradeRequest{PlayerID: alice, InstrumentID: inst, Shares: 900_000}, http.StatusConflict},
		{"beyond supply", game.TradeRequest{PlayerID: alice, InstrumentID: inst, Shares: 2_000_000}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, "POST", gamePath(snap.ID, "/buy"), tc.req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	// Nothing above may have moved money.
	w := do(t, router, "GET", gamePath(snap.ID, ""), nil)
	after := decode[model.GameSnapshot](t, w)
	if !after.Players[0].Cash.Equal(d(100000)) {
		t.Errorf("cash changed after rejections: %s", after.Players[0].Cash)
	}
	if len(after.Players[0].Holdings) != 0 {
		t.Errorf("holdings changed after rejections")
	}
}

// --- Loans ---

func TestBorrowAndRepay(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	alice := snap.Players[0].ID

	w := do(t, router, "POST", gamePath(snap.ID, "/borrow"), game.LoanRequest{PlayerID: alice, Amount: d(50000)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	loan := decode[game.LoanResponse](t, w)
	if !loan.LoanAmount.Equal(d(50000)) || !loan.Cash.Equal(d(150000)) {
		t.Errorf("unexpected loan state: %+v", loan)
	}
	if !loan.InterestRate.Equal(d(5)) {
		t.Errorf("rate = %s, want 5", loan.InterestRate)
	}

	// Net worth is 100000, so total debt is capped at 200000.
	w = do(t, router, "POST", gamePath(snap.ID, "/borrow"), game.LoanRequest{PlayerID: alice, Amount: d(200000)})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 over collateral, got %d", w.Code)
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/repay"), game.LoanRequest{PlayerID: alice, All: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	repaid := decode[game.LoanResponse](t, w)
	if !repaid.Amount.Equal(d(50000)) || !repaid.LoanAmount.IsZero() {
		t.Errorf("unexpected repay: %+v", repaid)
	}

	w = do(t, router, "POST", gamePath(snap.ID, "/repay"), game.LoanRequest{PlayerID: alice, Amount: d(10)})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 with no loan, got %d", w.Code)
	}
}

func TestBorrow_InvalidAmount(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)

	w := do(t, router, "POST", gamePath(snap.ID, "/borrow"), game.LoanRequest{PlayerID: snap.Players[0].ID, Amount: d(-5)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// --- Persistence ---

func TestRestoreFromStore(t *testing.T) {
	_, ms, router := newTestEnv(t)
	snap := createGame(t, router)
	do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	do(t, router, "POST", gamePath(snap.ID, "/buy"), game.TradeRequest{
		PlayerID: snap.Players[0].ID, InstrumentID: snap.Instruments[0].ID, Shares: 10,
	})

	// A second service over the same store picks the game up mid-turn.
	other := newRouter(game.NewService(ms, nil, session.DefaultConfig()))
	w := do(t, other, "GET", gamePath(snap.ID, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	restored := decode[model.GameSnapshot](t, w)
	if restored.CurrentTurn != 1 || restored.Status != model.StatusTrading {
		t.Fatalf("unexpected restored state: turn=%d status=%s", restored.CurrentTurn, restored.Status)
	}
	if len(restored.Players[0].Holdings) != 1 || restored.Players[0].Holdings[0].Shares != 10 {
		t.Fatalf("holdings not restored: %+v", restored.Players[0].Holdings)
	}

	w = do(t, other, "POST", gamePath(snap.ID, "/resolve"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving restored game, got %d", w.Code)
	}
}

// failingStore rejects snapshot writes once failSaves is set.
type failingStore struct {
	*store.MemoryStore
	failSaves bool
}

func (f *failingStore) SaveGame(ctx context.Context, snap *model.GameSnapshot) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.MemoryStore.SaveGame(ctx, snap)
}

func TestFailedSave_LeavesGameUnchanged(t *testing.T) {
	fs := &failingStore{MemoryStore: store.NewMemoryStore()}
	router := newRouter(game.NewService(fs, nil, session.DefaultConfig()))
	snap := createGame(t, router)

	fs.failSaves = true
	w := do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "GET", gamePath(snap.ID, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[model.GameSnapshot](t, w)
	if got.CurrentTurn != 0 || got.Status != model.StatusNotStarted {
		t.Fatalf("failed start turn leaked: turn=%d status=%s", got.CurrentTurn, got.Status)
	}

	// Once saves work again the turn starts from the stored state.
	fs.failSaves = false
	w = do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	fs.failSaves = true
	w = do(t, router, "POST", gamePath(snap.ID, "/buy"), game.TradeRequest{
		PlayerID: snap.Players[0].ID, InstrumentID: snap.Instruments[0].ID, Shares: 10,
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	got = decode[model.GameSnapshot](t, do(t, router, "GET", gamePath(snap.ID, ""), nil))
	if len(got.Players[0].Holdings) != 0 || !got.Players[0].Cash.Equal(snap.Players[0].Cash) {
		t.Fatalf("failed buy leaked: cash=%s holdings=%+v", got.Players[0].Cash, got.Players[0].Holdings)
	}
	if got.Instruments[0].RemainingShares != snap.Instruments[0].RemainingShares {
		t.Fatalf("failed buy changed supply: %d", got.Instruments[0].RemainingShares)
	}
}

// --- Stats ---

func TestInstrumentStats(t *testing.T) {
	_, _, router := newTestEnv(t)
	snap := createGame(t, router)
	for i := 0; i < 3; i++ {
		do(t, router, "POST", gamePath(snap.ID, "/turns"), nil)
		do(t, router, "POST", gamePath(snap.ID, "/resolve"), nil)
	}

	inst := snap.Instruments[0].ID
	w := do(t, router, "GET", gamePath(snap.ID, "/instruments/"+inst+"/stats"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	stats := decode[game.InstrumentStats](t, w)
	// One opening price plus one per resolved turn, fewer if it went bankrupt.
	if stats.Samples < 2 || stats.Samples > 4 {
		t.Errorf("samples = %d, want 2..4", stats.Samples)
	}
	if stats.Max.LessThan(stats.Min) {
		t.Errorf("max %s below min %s", stats.Max, stats.Min)
	}

	w = do(t, router, "GET", gamePath(snap.ID, "/instruments/nope/stats"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
