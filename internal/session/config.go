package session

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Config enumerates every tunable of a game.
type Config struct {
	StartingCash     decimal.Decimal `json:"starting_cash" toml:"starting_cash"`
	TotalTurns       int             `json:"total_turns" toml:"total_turns"`
	InstrumentCount  int             `json:"instrument_count" toml:"instrument_count"` // 0 lists the full roster
	FastMode         bool            `json:"fast_mode" toml:"fast_mode"`               // host pacing only
	BankInterestRate decimal.Decimal `json:"bank_interest_rate" toml:"bank_interest_rate"`
}

// Defaults.
var (
	DefaultStartingCash     = decimal.NewFromInt(100000)
	DefaultBankInterestRate = decimal.NewFromInt(5)
)

const (
	DefaultTotalTurns = 10

	// HighScoreLimit is the number of entries kept on the high-score list.
	HighScoreLimit = 12
)

var (
	ErrInvalidTurns = errors.New("session: total turns must be positive")
	ErrInvalidCash  = errors.New("session: starting cash must be positive")
	ErrInvalidRate  = errors.New("session: bank interest rate must not be negative")
)

// DefaultConfig returns the standard game settings.
func DefaultConfig() Config {
	return Config{
		StartingCash:     DefaultStartingCash,
		TotalTurns:       DefaultTotalTurns,
		BankInterestRate: DefaultBankInterestRate,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.StartingCash.IsZero() {
		c.StartingCash = DefaultStartingCash
	}
	if c.TotalTurns == 0 {
		c.TotalTurns = DefaultTotalTurns
	}
	return c
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.TotalTurns <= 0 {
		return ErrInvalidTurns
	}
	if !c.StartingCash.IsPositive() {
		return ErrInvalidCash
	}
	if c.BankInterestRate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}
