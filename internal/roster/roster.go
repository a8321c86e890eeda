// Package roster holds the default company records listed at game setup,
// validates ticker symbols, and seeds instruments from records with a
// randomized opening price.
package roster

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/instrument"
	"github.com/atmx/tradegame/internal/rng"
)

// DefaultTotalShares is the share supply each seeded company issues.
const DefaultTotalShares int64 = 1_000_000

// Jitter bounds, in per-mille of the base price: [0.8, 1.2].
const (
	jitterMinPermille = 800
	jitterMaxPermille = 1200
)

// tickerRegex matches 2-5 upper-case letters, e.g. ACME or NOVA.
var tickerRegex = regexp.MustCompile(`^[A-Z]{2,5}$`)

var (
	ErrInvalidTicker   = errors.New("roster: invalid ticker format")
	ErrDuplicateTicker = errors.New("roster: duplicate ticker")
	ErrInvalidPrice    = errors.New("roster: base price must be positive")
)

// Company is one entry in the listing roster.
type Company struct {
	Name      string          `json:"name" toml:"name"`
	Ticker    string          `json:"ticker" toml:"ticker"`
	Sector    string          `json:"sector" toml:"sector"`
	BasePrice decimal.Decimal `json:"base_price" toml:"base_price"`
}

func company(name, ticker, sector string, base int64) Company {
	return Company{Name: name, Ticker: ticker, Sector: sector, BasePrice: decimal.NewFromInt(base)}
}

// Default is the built-in listing used when a game supplies no instruments.
var Default = []Company{
	company("Apex Dynamics", "APEX", "Industrials", 85),
	company("Blue Harbor Shipping", "BHS", "Transport", 42),
	company("Cobalt Mining", "CBLT", "Materials", 28),
	company("Delta Pharma", "DPH", "Healthcare", 120),
	company("Evergreen Foods", "EVG", "Consumer", 36),
	company("Frontier Energy", "FRNT", "Energy", 64),
	company("Granite Bank", "GRB", "Financials", 95),
	company("Helios Solar", "HELI", "Energy", 55),
	company("Ironclad Security", "IRON", "Technology", 72),
	company("Juniper Retail", "JNPR", "Consumer", 24),
	company("Keystone Rail", "KSR", "Transport", 48),
	company("Lumen Networks", "LUMN", "Technology", 110),
	company("Meridian Insurance", "MRDN", "Financials", 66),
	company("Nova Biotech", "NOVA", "Healthcare", 18),
	company("Orion Aerospace", "ORIN", "Industrials", 130),
	company("Pioneer Media", "PION", "Communication", 32),
}

// ValidateTicker checks a ticker symbol.
func ValidateTicker(ticker string) error {
	if !tickerRegex.MatchString(ticker) {
		return fmt.Errorf("%w: %q (expected 2-5 upper-case letters)", ErrInvalidTicker, ticker)
	}
	return nil
}

// Validate checks every record for a valid unique ticker and positive price.
func Validate(records []Company) error {
	seen := make(map[string]bool, len(records))
	for _, c := range records {
		if err := ValidateTicker(c.Ticker); err != nil {
			return err
		}
		if seen[c.Ticker] {
			return fmt.Errorf("%w: %s", ErrDuplicateTicker, c.Ticker)
		}
		seen[c.Ticker] = true
		if !c.BasePrice.IsPositive() {
			return fmt.Errorf("%w: %s", ErrInvalidPrice, c.Ticker)
		}
	}
	return nil
}

// JitterPrice returns base scaled by a uniform factor in [0.8, 1.2], in cents.
func JitterPrice(base decimal.Decimal, src rng.Source) decimal.Decimal {
	permille := rng.Between(src, jitterMinPermille, jitterMaxPermille)
	return base.Mul(decimal.New(int64(permille), -3)).Round(2)
}

// Seed builds instruments from the first count records (all of them when
// count is out of range). Every instrument gets a fresh id and a jittered
// opening price. A non-positive totalShares uses DefaultTotalShares.
func Seed(records []Company, count int, totalShares int64, src rng.Source) ([]*instrument.Instrument, error) {
	if err := Validate(records); err != nil {
		return nil, err
	}
	if count <= 0 || count > len(records) {
		count = len(records)
	}
	if totalShares <= 0 {
		totalShares = DefaultTotalShares
	}

	out := make([]*instrument.Instrument, 0, count)
	for _, c := range records[:count] {
		price := JitterPrice(c.BasePrice, src)
		out = append(out, instrument.New(uuid.New().String(), c.Ticker, c.Name, c.Sector, price, totalShares))
	}
	return out, nil
}
