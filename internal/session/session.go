// Package session runs one game: the roster of players and instruments, the
// turn state machine, per-turn market resolution and end-of-game scoring.
//
// A Session is not safe for concurrent use. Hosts that expose it to several
// callers serialize access themselves (see internal/game).
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/event"
	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/player"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/rng"
	"github.com/atmx/tradegame/internal/roster"
)

var (
	ErrNoPlayers         = errors.New("session: at least one player is required")
	ErrNoInstruments     = errors.New("session: at least one instrument is required")
	ErrGameOver          = errors.New("session: all turns have been played")
	ErrNotInTurn         = errors.New("session: no turn is open for actions")
	ErrUnknownPlayer     = errors.New("session: unknown player")
	ErrUnknownInstrument = errors.New("session: unknown instrument")
	ErrEmptyName         = errors.New("session: player name is required")
)

// Phase is the turn state.
type Phase string

const (
	PhaseNotStarted Phase = model.StatusNotStarted
	PhaseTrading    Phase = model.StatusTrading
	PhaseResolved   Phase = model.StatusResolved
	PhaseEnded      Phase = model.StatusEnded
)

// Seat describes a player joining at setup.
type Seat struct {
	Name string `json:"name"`
	IsAI bool   `json:"is_ai"`
}

// Session is one game.
type Session struct {
	ID string

	Players     []*player.Player
	Instruments []*instrument.Instrument

	CurrentTurn        int
	TotalTurns         int
	Condition          pricing.Regime
	PlayerOrder        []int
	CurrentPlayerIndex int
	BankInterestRate   decimal.Decimal
	MarketEvents       []model.MarketEvent
	HighScores         []model.ScoreEntry
	Phase              Phase

	StartingCash decimal.Decimal
	FastMode     bool

	src    rng.Source
	logger *slog.Logger
}

// Option customizes a new session.
type Option func(*Session)

// WithInstruments lists a pre-built instrument set instead of seeding the default roster.
func WithInstruments(insts []*instrument.Instrument) Option {
	return func(s *Session) { s.Instruments = insts }
}

// WithHighScores carries over an existing high-score list.
func WithHighScores(entries []model.ScoreEntry) Option {
	return func(s *Session) { s.HighScores = append([]model.ScoreEntry(nil), entries...) }
}

// WithLogger enables turn lifecycle logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithID fixes the session id.
func WithID(id string) Option {
	return func(s *Session) { s.ID = id }
}

// New sets up a game. Without WithInstruments the default roster is seeded
// (first cfg.InstrumentCount records) with jittered opening prices drawn from src.
func New(cfg Config, seats []Seat, src rng.Source, opts ...Option) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, ErrNoPlayers
	}
	if src == nil {
		src = rng.New()
	}

	s := &Session{
		ID:                 uuid.New().String(),
		TotalTurns:         cfg.TotalTurns,
		Condition:          pricing.Bull,
		CurrentPlayerIndex: -1,
		BankInterestRate:   cfg.BankInterestRate,
		Phase:              PhaseNotStarted,
		StartingCash:       cfg.StartingCash,
		FastMode:           cfg.FastMode,
		src:                src,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, seat := range seats {
		if seat.Name == "" {
			return nil, ErrEmptyName
		}
		s.Players = append(s.Players, player.New(uuid.New().String(), seat.Name, seat.IsAI, cfg.StartingCash))
	}

	if s.Instruments == nil {
		insts, err := roster.Seed(roster.Default, cfg.InstrumentCount, roster.DefaultTotalShares, src)
		if err != nil {
			return nil, fmt.Errorf("seed instruments: %w", err)
		}
		s.Instruments = insts
	}
	if len(s.Instruments) == 0 {
		return nil, ErrNoInstruments
	}

	s.PlayerOrder = make([]int, len(s.Players))
	for i := range s.PlayerOrder {
		s.PlayerOrder[i] = i
	}
	return s, nil
}

// Terminal reports whether no further turn can start.
func (s *Session) Terminal() bool {
	return s.CurrentTurn >= s.TotalTurns
}

// StartTurn opens the next turn: re-rolls turn order, draws the regime,
// generates news events and charges loan interest. Returns ErrGameOver
// without mutating anything once all turns have been played.
func (s *Session) StartTurn() error {
	if s.Phase == PhaseEnded || s.Terminal() {
		return ErrGameOver
	}

	s.CurrentTurn++
	s.shuffleOrder()
	s.CurrentPlayerIndex = -1
	s.Condition = pricing.DrawRegime(s.src)

	events := event.Generate(s.CurrentTurn, s.Condition, s.tradableIDs(), s.src)
	s.MarketEvents = append(s.MarketEvents, events...)

	for _, p := range s.Players {
		p.ApplyLoanInterest()
	}

	s.Phase = PhaseTrading
	s.log("turn started",
		"turn", s.CurrentTurn,
		"condition", string(s.Condition),
		"events", len(events),
	)
	return nil
}

// shuffleOrder re-rolls PlayerOrder with a Fisher-Yates shuffle.
func (s *Session) shuffleOrder() {
	order := make([]int, len(s.Players))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i >= 1; i-- {
		j := s.src.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	s.PlayerOrder = order
}

// NextPlayer advances to the next player in turn order. Returns false once
// every player has had their go.
func (s *Session) NextPlayer() bool {
	if s.CurrentPlayerIndex < len(s.Players) {
		s.CurrentPlayerIndex++
	}
	return s.CurrentPlayerIndex < len(s.Players)
}

// CurrentPlayer returns the acting player, or nil when the index is out of range.
func (s *Session) CurrentPlayer() *player.Player {
	i := s.CurrentPlayerIndex
	if i < 0 || i >= len(s.PlayerOrder) {
		return nil
	}
	idx := s.PlayerOrder[i]
	if idx < 0 || idx >= len(s.Players) {
		return nil
	}
	return s.Players[idx]
}

// Player looks up a player by id.
func (s *Session) Player(id string) (*player.Player, error) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
}

// Instrument looks up an instrument by id.
func (s *Session) Instrument(id string) (*instrument.Instrument, error) {
	for _, inst := range s.Instruments {
		if inst.ID == id {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, id)
}

// Prices returns current prices keyed by instrument id.
func (s *Session) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.Instruments))
	for _, inst := range s.Instruments {
		out[inst.ID] = inst.CurrentPrice
	}
	return out
}

// EventsForTurn returns the events generated for a turn.
func (s *Session) EventsForTurn(turn int) []model.MarketEvent {
	return event.ForTurn(turn, s.MarketEvents)
}

func (s *Session) tradableIDs() []string {
	ids := make([]string, 0, len(s.Instruments))
	for _, inst := range s.Instruments {
		if inst.Tradable() {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}

func (s *Session) log(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(msg, append([]any{"game_id", s.ID}, args...)...)
}
