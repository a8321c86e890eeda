// Package player holds a participant's ledger: cash, bank loan, holdings
// and net-worth history, along with the transactions that mutate it and the
// instrument it trades against.
//
// Every rejected transaction returns a sentinel error and leaves both the
// player and the instrument unchanged.
//
// All monetary values use shopspring/decimal. Never float64 for money.
package player

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/credit"
	"github.com/atmx/tradegame/internal/instrument"
)

var (
	ErrInvalidShares      = errors.New("player: share count must be positive")
	ErrInvalidAmount      = errors.New("player: amount must be positive")
	ErrInsufficientFunds  = errors.New("player: insufficient cash")
	ErrInsufficientShares = errors.New("player: not enough shares held")
	ErrNoPosition         = errors.New("player: no position in instrument")
	ErrNoLoan             = errors.New("player: no outstanding loan")
	ErrNilInstrument      = errors.New("player: instrument is required")
)

// SellAll sells an entire position.
const SellAll int64 = -1

// RepayAll repays as much of the loan as cash allows.
var RepayAll = decimal.NewFromInt(-1)

// DividendPayer is the read-only view of an instrument needed to pay dividends.
type DividendPayer interface {
	CalculateDividend(sharesHeld int64) decimal.Decimal
}

// Player is one participant. AI and human players are treated identically.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsAI bool   `json:"is_ai"`

	Cash             decimal.Decimal `json:"cash"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	LoanInterestRate decimal.Decimal `json:"loan_interest_rate"`

	Holdings      map[string]*Holding `json:"holdings"`
	AssetsHistory []decimal.Decimal   `json:"assets_history"`

	FinalScore decimal.Decimal `json:"final_score"`
	Ranking    int             `json:"ranking"`
}

// New creates a player with starting cash and no positions.
func New(id, name string, isAI bool, cash decimal.Decimal) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		IsAI:     isAI,
		Cash:     cash,
		Holdings: make(map[string]*Holding),
	}
}

// Holding returns the position in an instrument, or nil.
func (p *Player) Holding(instrumentID string) *Holding {
	return p.Holdings[instrumentID]
}

// Buy purchases shares at the instrument's current price. The cost basis of
// an existing holding becomes the share-weighted average. A block trade moves
// the instrument's price after the fill.
func (p *Player) Buy(inst *instrument.Instrument, shares int64) (decimal.Decimal, error) {
	if inst == nil {
		return decimal.Zero, ErrNilInstrument
	}
	if shares <= 0 {
		return decimal.Zero, ErrInvalidShares
	}
	if err := inst.CheckIssue(shares); err != nil {
		return decimal.Zero, err
	}

	cost := inst.CurrentPrice.Mul(decimal.NewFromInt(shares))
	if cost.GreaterThan(p.Cash) {
		return decimal.Zero, ErrInsufficientFunds
	}

	p.Cash = p.Cash.Sub(cost)

	if h, ok := p.Holdings[inst.ID]; ok {
		total := h.Shares + shares
		h.AverageCost = h.CostBasis().Add(cost).Div(decimal.NewFromInt(total))
		h.Shares = total
	} else {
		p.Holdings[inst.ID] = &Holding{
			InstrumentID: inst.ID,
			Shares:       shares,
			AverageCost:  inst.CurrentPrice,
		}
	}

	inst.Issue(shares)
	return cost, nil
}

// SaleResult describes a completed sale.
type SaleResult struct {
	Shares   int64           `json:"shares"`
	Price    decimal.Decimal `json:"price"`
	Proceeds decimal.Decimal `json:"proceeds"`
	Profit   decimal.Decimal `json:"profit"`
}

// Sell sells shares at the instrument's current price; SellAll sells the
// whole position. Profit is proceeds minus the cost basis of the shares sold.
func (p *Player) Sell(inst *instrument.Instrument, shares int64) (SaleResult, error) {
	if inst == nil {
		return SaleResult{}, ErrNilInstrument
	}
	h, ok := p.Holdings[inst.ID]
	if !ok {
		return SaleResult{}, ErrNoPosition
	}
	if shares == SellAll {
		shares = h.Shares
	}
	if shares <= 0 {
		return SaleResult{}, ErrInvalidShares
	}
	if shares > h.Shares {
		return SaleResult{}, ErrInsufficientShares
	}
	if !inst.Tradable() {
		return SaleResult{}, instrument.ErrBankrupt
	}

	qty := decimal.NewFromInt(shares)
	price := inst.CurrentPrice
	proceeds := price.Mul(qty)
	profit := proceeds.Sub(h.AverageCost.Mul(qty))

	p.Cash = p.Cash.Add(proceeds)
	h.Shares -= shares
	if h.Shares == 0 {
		delete(p.Holdings, inst.ID)
	}

	inst.Return(shares)

	return SaleResult{
		Shares:   shares,
		Price:    price,
		Proceeds: proceeds,
		Profit:   profit,
	}, nil
}

// Borrow takes a bank loan at rate percent per turn. The collateral check
// uses net worth at cost basis before the loan is added. The new rate
// replaces the old one for the whole balance.
func (p *Player) Borrow(amount, rate decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := credit.Default.CheckBorrow(p.LoanAmount, amount, p.CalculateTotalAssets(nil)); err != nil {
		return err
	}
	p.LoanAmount = p.LoanAmount.Add(amount)
	p.Cash = p.Cash.Add(amount)
	p.LoanInterestRate = rate
	return nil
}

// Repay pays down the loan. RepayAll, or an amount above cash, pays
// min(cash, loan). Amounts above the loan are capped at the loan. Returns
// the amount repaid.
func (p *Player) Repay(amount decimal.Decimal) (decimal.Decimal, error) {
	if !p.LoanAmount.IsPositive() {
		return decimal.Zero, ErrNoLoan
	}
	if amount.Equal(RepayAll) || amount.GreaterThan(p.Cash) {
		amount = decimal.Min(p.Cash, p.LoanAmount)
	} else if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(p.LoanAmount) {
		amount = p.LoanAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInsufficientFunds
	}

	p.LoanAmount = p.LoanAmount.Sub(amount)
	p.Cash = p.Cash.Sub(amount)
	if p.LoanAmount.IsZero() {
		p.LoanInterestRate = decimal.Zero
	}
	return amount, nil
}

// ApplyLoanInterest adds one turn of interest to the principal and returns it.
func (p *Player) ApplyLoanInterest() decimal.Decimal {
	interest := credit.Accrue(p.LoanAmount, p.LoanInterestRate)
	if interest.IsPositive() {
		p.LoanAmount = p.LoanAmount.Add(interest)
	}
	return interest
}

// CalculateTotalAssets returns cash + holdings − loan. Holdings are marked at
// prices[instrumentID] when present and at average cost otherwise, so a nil
// or partial map is always safe.
func (p *Player) CalculateTotalAssets(prices map[string]decimal.Decimal) decimal.Decimal {
	total := p.Cash
	for id, h := range p.Holdings {
		if price, ok := prices[id]; ok {
			total = total.Add(h.Value(price))
		} else {
			total = total.Add(h.CostBasis())
		}
	}
	return total.Sub(p.LoanAmount)
}

// ReceiveDividends credits dividends from every payer the player holds and
// returns the total paid.
func (p *Player) ReceiveDividends(payers map[string]DividendPayer) decimal.Decimal {
	paid := decimal.Zero
	for id, h := range p.Holdings {
		payer, ok := payers[id]
		if !ok || payer == nil {
			continue
		}
		paid = paid.Add(payer.CalculateDividend(h.Shares))
	}
	p.Cash = p.Cash.Add(paid)
	return paid
}

// HandleStockSplits applies split ratios keyed by instrument id: shares are
// multiplied by the ratio and the average cost is halved, mirroring the
// instrument's own price halving.
func (p *Player) HandleStockSplits(ratios map[string]int) {
	for id, ratio := range ratios {
		h, ok := p.Holdings[id]
		if !ok || ratio <= 0 {
			continue
		}
		h.Shares *= int64(ratio)
		h.AverageCost = h.AverageCost.Div(decimal.NewFromInt(2))
	}
}

// HandleBankruptcies removes holdings in bankrupt instruments with no
// recovery and returns the removed instrument ids in sorted order.
func (p *Player) HandleBankruptcies(bankrupt map[string]bool) []string {
	var removed []string
	for id := range p.Holdings {
		if bankrupt[id] {
			delete(p.Holdings, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// RecordAssets appends a net-worth snapshot.
func (p *Player) RecordAssets(prices map[string]decimal.Decimal) decimal.Decimal {
	nw := p.CalculateTotalAssets(prices)
	p.AssetsHistory = append(p.AssetsHistory, nw)
	return nw
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := *p
	c.Holdings = make(map[string]*Holding, len(p.Holdings))
	for id, h := range p.Holdings {
		hc := *h
		c.Holdings[id] = &hc
	}
	c.AssetsHistory = append([]decimal.Decimal(nil), p.AssetsHistory...)
	return &c
}
