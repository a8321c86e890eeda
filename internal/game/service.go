// Package game provides the HTTP handlers that host game sessions: setup,
// the turn lifecycle, player actions, scoring and read-only views.
//
// All monetary values use shopspring/decimal. Never float64 for money.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/credit"
	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/metrics"
	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
	"github.com/atmx/tradegame/internal/session"
	"github.com/atmx/tradegame/internal/store"
)

// Service hosts live sessions. A single mutex serializes every game
// mutation (single-instance). Sessions are loaded from the store on first
// access and written back after each successful mutation.
type Service struct {
	store    store.Store
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
	defaults session.Config
	logger   *slog.Logger

	mu    sync.Mutex
	games map[string]*session.Session
}

// NewService creates a new game service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub, defaults session.Config) *Service {
	return &Service{
		store:    st,
		wsHub:    hub,
		defaults: defaults,
		logger:   slog.Default(),
		games:    make(map[string]*session.Session),
	}
}

// Mount registers the game routes on r.
func (s *Service) Mount(r chi.Router) {
	r.Get("/games", s.ListGames)
	r.Post("/games", s.CreateGame)
	r.Route("/games/{gameID}", func(r chi.Router) {
		r.Get("/", s.GetGame)
		r.Post("/turns", s.StartTurn)
		r.Post("/next-player", s.NextPlayer)
		r.Post("/buy", s.Buy)
		r.Post("/sell", s.Sell)
		r.Post("/borrow", s.Borrow)
		r.Post("/repay", s.Repay)
		r.Post("/resolve", s.ResolveTurn)
		r.Post("/end", s.EndGame)
		r.Get("/instruments/{instrumentID}/stats", s.InstrumentStats)
	})
	r.Get("/highscores", s.HighScores)
}

// --- Request/Response types ---

// CreateGameRequest is the JSON body for game creation. Zero values fall
// back to the server defaults.
type CreateGameRequest struct {
	Players          []session.Seat   `json:"players"`
	StartingCash     decimal.Decimal  `json:"starting_cash"`
	TotalTurns       int              `json:"total_turns"`
	InstrumentCount  int              `json:"instrument_count"`
	FastMode         bool             `json:"fast_mode"`
	BankInterestRate *decimal.Decimal `json:"bank_interest_rate"`
	Seed             *uint64          `json:"seed"`
}

// TradeRequest is the JSON body for buy and sell. Shares of -1 on a sell
// liquidates the whole position.
type TradeRequest struct {
	PlayerID     string `json:"player_id"`
	InstrumentID string `json:"instrument_id"`
	Shares       int64  `json:"shares"`
}

// TradeResponse is returned from buy and sell.
type TradeResponse struct {
	GameID       string          `json:"game_id"`
	PlayerID     string          `json:"player_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         string          `json:"side"`
	Shares       int64           `json:"shares"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	Amount       decimal.Decimal `json:"amount"`
	Profit       decimal.Decimal `json:"profit"`
	PriceAfter   decimal.Decimal `json:"price_after"`
	BlockTrade   bool            `json:"block_trade"`
	Cash         decimal.Decimal `json:"cash"`
}

// LoanRequest is the JSON body for borrow and repay. All on a repay pays
// back as much as cash allows.
type LoanRequest struct {
	PlayerID string          `json:"player_id"`
	Amount   decimal.Decimal `json:"amount"`
	All      bool            `json:"all"`
}

// LoanResponse is returned from borrow and repay.
type LoanResponse struct {
	GameID       string          `json:"game_id"`
	PlayerID     string          `json:"player_id"`
	Amount       decimal.Decimal `json:"amount"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Cash         decimal.Decimal `json:"cash"`
}

// TurnResponse is returned when a turn opens.
type TurnResponse struct {
	GameID      string              `json:"game_id"`
	Turn        int                 `json:"turn"`
	TotalTurns  int                 `json:"total_turns"`
	Condition   pricing.Regime      `json:"condition"`
	PlayerOrder []string            `json:"player_order"` // player ids
	Events      []model.MarketEvent `json:"events"`
}

// NextPlayerResponse reports whose go it is.
type NextPlayerResponse struct {
	HasNext       bool           `json:"has_next"`
	CurrentPlayer *player.Player `json:"current_player,omitempty"`
}

// EndGameResponse carries the final ranking.
type EndGameResponse struct {
	GameID     string             `json:"game_id"`
	Standings  []session.Standing `json:"standings"`
	HighScores []model.ScoreEntry `json:"high_scores"`
}

// --- HTTP Handlers ---

// CreateGame handles POST /api/v1/games
func (s *Service) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := s.defaults
	if req.StartingCash.IsPositive() {
		cfg.StartingCash = req.StartingCash
	} else if req.StartingCash.IsNegative() {
		writeError(w, session.ErrInvalidCash.Error(), http.StatusBadRequest)
		return
	}
	if req.TotalTurns != 0 {
		cfg.TotalTurns = req.TotalTurns
	}
	if req.InstrumentCount > 0 {
		cfg.InstrumentCount = req.InstrumentCount
	}
	if req.BankInterestRate != nil {
		cfg.BankInterestRate = *req.BankInterestRate
	}
	cfg.FastMode = req.FastMode

	var src rng.Source
	if req.Seed != nil {
		src = rng.NewSeeded(*req.Seed)
	} else {
		src = rng.New()
	}

	ctx := r.Context()
	scores, err := s.store.TopHighScores(ctx, session.HighScoreLimit)
	if err != nil {
		writeError(w, "failed to load high scores", http.StatusInternalServerError)
		return
	}

	sess, err := session.New(cfg, req.Players, src,
		session.WithHighScores(scores),
		session.WithLogger(s.logger),
	)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := sess.Snapshot()
	if err := s.store.SaveGame(ctx, snap); err != nil {
		writeError(w, "failed to save game", http.StatusInternalServerError)
		return
	}
	s.games[sess.ID] = sess
	metrics.ActiveGames.Inc()

	slog.Info("game created",
		"id", sess.ID,
		"players", len(sess.Players),
		"instruments", len(sess.Instruments),
		"turns", sess.TotalTurns,
	)

	writeJSON(w, http.StatusCreated, snap)
}

// ListGames handles GET /api/v1/games
func (s *Service) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.store.ListGames(r.Context())
	if err != nil {
		writeError(w, "failed to list games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []model.GameSummary{}
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{gameID}
func (s *Service) GetGame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// StartTurn handles POST /api/v1/games/{gameID}/turns
func (s *Service) StartTurn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.StartTurn(); err != nil {
		s.reject(w, "start_turn", err)
		return
	}
	if !s.persist(r.Context(), w, sess) {
		return
	}
	metrics.TurnsStarted.Inc()

	resp := TurnResponse{
		GameID:     sess.ID,
		Turn:       sess.CurrentTurn,
		TotalTurns: sess.TotalTurns,
		Condition:  sess.Condition,
		Events:     sess.EventsForTurn(sess.CurrentTurn),
	}
	for _, idx := range sess.PlayerOrder {
		resp.PlayerOrder = append(resp.PlayerOrder, sess.Players[idx].ID)
	}

	s.wsHub.Broadcast(WSMessage{
		Type:      MsgTurnStarted,
		GameID:    sess.ID,
		Turn:      sess.CurrentTurn,
		Condition: string(sess.Condition),
		Payload:   resp.Events,
	})
	writeJSON(w, http.StatusOK, resp)
}

// NextPlayer handles POST /api/v1/games/{gameID}/next-player
func (s *Service) NextPlayer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if sess.Phase != session.PhaseTrading {
		s.reject(w, "next_player", session.ErrNotInTurn)
		return
	}
	resp := NextPlayerResponse{HasNext: sess.NextPlayer()}
	resp.CurrentPlayer = sess.CurrentPlayer()
	if !s.persist(r.Context(), w, sess) {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Buy handles POST /api/v1/games/{gameID}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, "buy")
}

// Sell handles POST /api/v1/games/{gameID}/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, "sell")
}

func (s *Service) trade(w http.ResponseWriter, r *http.Request, side string) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.InstrumentID == "" {
		writeError(w, "player_id and instrument_id are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	inst, err := sess.Instrument(req.InstrumentID)
	if err != nil {
		s.reject(w, side, err)
		return
	}
	before := inst.CurrentPrice

	resp := TradeResponse{
		GameID:       sess.ID,
		PlayerID:     req.PlayerID,
		InstrumentID: req.InstrumentID,
		Side:         side,
		FillPrice:    before,
	}
	if side == "buy" {
		cost, err := sess.Buy(req.PlayerID, req.InstrumentID, req.Shares)
		if err != nil {
			s.reject(w, side, err)
			return
		}
		resp.Shares = req.Shares
		resp.Amount = cost
	} else {
		sale, err := sess.Sell(req.PlayerID, req.InstrumentID, req.Shares)
		if err != nil {
			s.reject(w, side, err)
			return
		}
		resp.Shares = sale.Shares
		resp.Amount = sale.Proceeds
		resp.Profit = sale.Profit
	}
	resp.PriceAfter = inst.CurrentPrice
	resp.BlockTrade = !resp.PriceAfter.Equal(before)
	if p, err := sess.Player(req.PlayerID); err == nil {
		resp.Cash = p.Cash
	}

	if !s.persist(r.Context(), w, sess) {
		return
	}

	metrics.TradesTotal.WithLabelValues(side).Inc()
	if resp.BlockTrade {
		metrics.BlockTrades.WithLabelValues(side).Inc()
	}
	slog.Info("trade executed",
		"game_id", sess.ID,
		"player", req.PlayerID,
		"instrument", req.InstrumentID,
		"side", side,
		"shares", resp.Shares,
		"amount", resp.Amount.String(),
		"price_after", resp.PriceAfter.String(),
	)
	s.wsHub.Broadcast(WSMessage{
		Type:         MsgTradeExecuted,
		GameID:       sess.ID,
		Turn:         sess.CurrentTurn,
		PlayerID:     req.PlayerID,
		InstrumentID: req.InstrumentID,
		Side:         side,
		Shares:       resp.Shares,
		Price:        resp.PriceAfter.String(),
		Amount:       resp.Amount.String(),
	})
	writeJSON(w, http.StatusOK, resp)
}

// Borrow handles POST /api/v1/games/{gameID}/borrow
func (s *Service) Borrow(w http.ResponseWriter, r *http.Request) {
	s.loan(w, r, "borrow")
}

// Repay handles POST /api/v1/games/{gameID}/repay
func (s *Service) Repay(w http.ResponseWriter, r *http.Request) {
	s.loan(w, r, "repay")
}

func (s *Service) loan(w http.ResponseWriter, r *http.Request, action string) {
	var req LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" {
		writeError(w, "player_id is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	amount := req.Amount
	var err error
	if action == "borrow" {
		err = sess.Borrow(req.PlayerID, amount)
	} else {
		if req.All {
			amount = player.RepayAll
		}
		amount, err = sess.Repay(req.PlayerID, amount)
	}
	if err != nil {
		s.reject(w, action, err)
		return
	}
	if !s.persist(r.Context(), w, sess) {
		return
	}

	p, _ := sess.Player(req.PlayerID)
	resp := LoanResponse{
		GameID:       sess.ID,
		PlayerID:     p.ID,
		Amount:       amount,
		LoanAmount:   p.LoanAmount,
		InterestRate: p.LoanInterestRate,
		Cash:         p.Cash,
	}

	if action == "borrow" {
		metrics.LoansIssued.Inc()
	} else {
		metrics.LoansRepaid.Inc()
	}
	slog.Info("loan changed",
		"game_id", sess.ID,
		"player", p.ID,
		"action", action,
		"amount", amount.String(),
		"loan", p.LoanAmount.String(),
	)
	s.wsHub.Broadcast(WSMessage{
		Type:     MsgLoanChanged,
		GameID:   sess.ID,
		Turn:     sess.CurrentTurn,
		PlayerID: p.ID,
		Side:     action,
		Amount:   amount.String(),
	})
	writeJSON(w, http.StatusOK, resp)
}

// ResolveTurn handles POST /api/v1/games/{gameID}/resolve
func (s *Service) ResolveTurn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	report, err := sess.ResolveTurn()
	if err != nil {
		s.reject(w, "resolve", err)
		return
	}
	if !s.persist(r.Context(), w, sess) {
		return
	}

	metrics.TurnsResolved.WithLabelValues(string(report.Condition)).Inc()
	metrics.Bankruptcies.Add(float64(len(report.Bankruptcies)))
	for _, ratio := range report.Splits {
		metrics.Splits.WithLabelValues(strconv.Itoa(ratio)).Inc()
	}
	metrics.DividendPayouts.Add(float64(len(report.Dividends)))

	s.wsHub.Broadcast(WSMessage{
		Type:      MsgTurnResolved,
		GameID:    sess.ID,
		Turn:      report.Turn,
		Condition: string(report.Condition),
		Payload:   report,
	})
	writeJSON(w, http.StatusOK, report)
}

// EndGame handles POST /api/v1/games/{gameID}/end
// Repeated calls return the same ranking without re-recording high scores.
func (s *Service) EndGame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	alreadyEnded := sess.Phase == session.PhaseEnded
	standings := sess.EndGame()

	ctx := r.Context()
	if !alreadyEnded {
		if err := s.store.InsertHighScores(ctx, sess.NewEntries()); err != nil {
			writeError(w, "failed to record high scores", http.StatusInternalServerError)
			return
		}
		metrics.ActiveGames.Dec()
	}
	if !s.persist(ctx, w, sess) {
		return
	}

	if !alreadyEnded {
		s.wsHub.Broadcast(WSMessage{
			Type:    MsgGameEnded,
			GameID:  sess.ID,
			Turn:    sess.CurrentTurn,
			Payload: standings,
		})
	}
	writeJSON(w, http.StatusOK, EndGameResponse{
		GameID:     sess.ID,
		Standings:  standings,
		HighScores: sess.HighScores,
	})
}

// InstrumentStats handles GET /api/v1/games/{gameID}/instruments/{instrumentID}/stats
func (s *Service) InstrumentStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	inst, err := sess.Instrument(chi.URLParam(r, "instrumentID"))
	if err != nil {
		writeError(w, "instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ComputeStats(inst))
}

// HighScores handles GET /api/v1/highscores
func (s *Service) HighScores(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.TopHighScores(r.Context(), session.HighScoreLimit)
	if err != nil {
		writeError(w, "failed to load high scores", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.ScoreEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- helpers ---

// lookup resolves {gameID} from memory, falling back to the store. Callers
// hold s.mu. On failure the error response has already been written.
func (s *Service) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "gameID")
	if sess, ok := s.games[id]; ok {
		return sess, true
	}

	snap, err := s.store.GetGame(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "game not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		writeError(w, "failed to load game", http.StatusInternalServerError)
		return nil, false
	}
	sess, err := session.Restore(snap, rng.New(), s.logger)
	if err != nil {
		slog.Error("restore game failed", "id", id, "err", err)
		writeError(w, "stored game is corrupt", http.StatusInternalServerError)
		return nil, false
	}
	s.games[id] = sess
	if sess.Phase != session.PhaseEnded {
		metrics.ActiveGames.Inc()
	}
	slog.Info("game restored", "id", id, "turn", sess.CurrentTurn)
	return sess, true
}

// persist writes the session back to the store. On failure the in-memory
// session is evicted so the next lookup reloads the last saved snapshot and
// the failed request leaves no trace.
func (s *Service) persist(ctx context.Context, w http.ResponseWriter, sess *session.Session) bool {
	if err := s.store.SaveGame(ctx, sess.Snapshot()); err != nil {
		slog.Error("save game failed", "id", sess.ID, "err", err)
		delete(s.games, sess.ID)
		if sess.Phase != session.PhaseEnded {
			metrics.ActiveGames.Dec()
		}
		writeError(w, "failed to save game", http.StatusInternalServerError)
		return false
	}
	return true
}

// reject maps a rule violation to its HTTP status and counts it.
func (s *Service) reject(w http.ResponseWriter, action string, err error) {
	status, reason := classify(err)
	metrics.TradeRejections.WithLabelValues(action, reason).Inc()
	writeError(w, err.Error(), status)
}

// classify maps engine errors to an HTTP status and a bounded metric label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrUnknownPlayer):
		return http.StatusNotFound, "unknown_player"
	case errors.Is(err, session.ErrUnknownInstrument):
		return http.StatusNotFound, "unknown_instrument"
	case errors.Is(err, player.ErrInvalidShares), errors.Is(err, instrument.ErrInvalidShares):
		return http.StatusBadRequest, "invalid_shares"
	case errors.Is(err, player.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, session.ErrNotInTurn):
		return http.StatusConflict, "not_in_turn"
	case errors.Is(err, session.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.Is(err, player.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, player.ErrInsufficientShares):
		return http.StatusConflict, "insufficient_shares"
	case errors.Is(err, player.ErrNoPosition):
		return http.StatusConflict, "no_position"
	case errors.Is(err, player.ErrNoLoan):
		return http.StatusConflict, "no_loan"
	case errors.Is(err, instrument.ErrBankrupt):
		return http.StatusConflict, "bankrupt"
	case errors.Is(err, instrument.ErrInsufficientSupply):
		return http.StatusConflict, "insufficient_supply"
	case errors.Is(err, credit.ErrCollateralExceeded):
		return http.StatusConflict, "collateral_exceeded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "err", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
