// Package portfolio owns the simulated account state and the rules that mutate it.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/models"
)

// DefaultMinWithdrawal is the smallest amount that can be withdrawn.
var DefaultMinWithdrawal = decimal.NewFromInt(50)

// PriceLookup resolves the current price of a symbol. *market.PriceBook implements it.
type PriceLookup interface {
	Price(symbol market.Symbol) (decimal.Decimal, error)
}

// Option configures a Store.
type Option func(*Store)

// WithMinWithdrawal overrides the minimum withdrawal amount.
func WithMinWithdrawal(amount decimal.Decimal) Option {
	return func(s *Store) {
		s.minWithdrawal = amount
	}
}

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides the transaction id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithTransactionHook calls fn with every transaction the store appends.
// fn runs while the store is locked, so it sees transactions in ledger order
// and must not call back into the store.
func WithTransactionHook(fn func(ledger.Transaction)) Option {
	return func(s *Store) {
		s.onAppend = fn
	}
}

// Store is the single owner of an Account. Every operation runs under one
// mutex, so invest, sell, withdraw and revaluation never interleave.
type Store struct {
	mu            sync.Mutex
	account       *Account
	prices        PriceLookup
	minWithdrawal decimal.Decimal
	now           func() time.Time
	newID         func() string
	onAppend      func(ledger.Transaction)
}

// NewStore wraps account. prices is consulted by Invest and Sell.
func NewStore(account *Account, prices PriceLookup, opts ...Option) *Store {
	if account == nil {
		account = DefaultAccount()
	}
	s := &Store{
		account:       account,
		prices:        prices,
		minWithdrawal: DefaultMinWithdrawal,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invest spends amount of cash on symbol at its current price.
// The bought quantity and amount are added to any existing position.
func (s *Store) Invest(symbol market.Symbol, amount decimal.Decimal) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account
	if !amount.IsPositive() {
		return Position{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(a.cashBalance) {
		return Position{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, amount, a.cashBalance)
	}
	price, err := s.priceOf(symbol)
	if err != nil {
		return Position{}, err
	}

	bought := amount.Div(price)

	a.cashBalance = a.cashBalance.Sub(amount)
	pos := a.position(symbol)
	if pos == nil {
		pos = &Position{Symbol: symbol, Quantity: decimal.Zero, CostBasis: decimal.Zero}
		a.positions = append(a.positions, pos)
	}
	pos.Quantity = pos.Quantity.Add(bought)
	pos.CostBasis = pos.CostBasis.Add(amount)
	pos.revalue(price)

	s.append(ledger.KindInvestment, symbol, amount, "")
	return *pos, nil
}

// Sell liquidates the whole position in symbol at its current price.
// It returns the closed position as valued at the sale.
func (s *Store) Sell(symbol market.Symbol) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account
	pos := a.position(symbol)
	if pos == nil {
		return Position{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	price, err := s.priceOf(symbol)
	if err != nil {
		return Position{}, fmt.Errorf("failed to price %s for sale: %w", symbol, err)
	}
	pos.revalue(price)

	closed := *pos
	a.cashBalance = a.cashBalance.Add(closed.MarketValue)
	a.realizedProfit = a.realizedProfit.Add(closed.MarketValue.Sub(closed.CostBasis))
	s.append(ledger.KindSale, symbol, closed.MarketValue, "")
	a.removePosition(symbol)

	return closed, nil
}

// Withdraw takes amount of cash out of the account. Only the balance earned
// above the initial balance may be withdrawn.
func (s *Store) Withdraw(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account
	if amount.LessThan(s.minWithdrawal) || !amount.IsPositive() {
		return fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, s.minWithdrawal)
	}
	if amount.GreaterThan(a.cashBalance) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, amount, a.cashBalance)
	}
	earned := a.cashBalance.Sub(a.initialBalance)
	if amount.GreaterThan(earned) {
		return fmt.Errorf("%w: %s available", ErrWithdrawalRestricted, decimal.Max(earned, decimal.Zero))
	}

	a.cashBalance = a.cashBalance.Sub(amount)
	s.append(ledger.KindWithdrawal, market.USD, amount, "")
	return nil
}

// RevalueAll marks every open position to the prices in lookup.
// Positions whose symbol cannot be priced keep their last value.
func (s *Store) RevalueAll(lookup PriceLookup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.account.positions {
		price, err := lookup.Price(p.Symbol)
		if err != nil {
			continue
		}
		p.revalue(price)
	}
}

// Snapshot returns a detached copy of the account.
func (s *Store) Snapshot() AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Snapshot()
}

// Record returns the persisted form of the account.
func (s *Store) Record() models.PortfolioRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Record()
}

// Position returns the open position in symbol, if any.
func (s *Store) Position(symbol market.Symbol) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.account.position(symbol)
	if p == nil {
		return Position{}, false
	}
	return *p, true
}

// CashBalance returns the current cash balance.
func (s *Store) CashBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.cashBalance
}

// Transactions returns up to n ledger entries, newest first.
func (s *Store) Transactions(n int) []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = max(n, 0)
	out := make([]ledger.Transaction, 0, min(n, s.account.ledger.Len()))
	for tx := range s.account.ledger.Recent(n) {
		out = append(out, tx)
	}
	return out
}

// PreviewInvest reports what amount of cash would buy of symbol at its
// current price. It does not check the amount against the balance.
func (s *Store) PreviewInvest(symbol market.Symbol, amount decimal.Decimal) (InvestPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview(symbol, amount)
}

// PreviewInvestPercent previews investing percent of the cash balance,
// rounded to cents. percent must be in (0, 100].
func (s *Store) PreviewInvestPercent(symbol market.Symbol, percent decimal.Decimal) (InvestPreview, error) {
	if !percent.IsPositive() || percent.GreaterThan(hundred) {
		return InvestPreview{}, fmt.Errorf("%w: percent %s", ErrInvalidAmount, percent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	amount := s.account.cashBalance.Mul(percent).Div(hundred).Round(2)
	return s.preview(symbol, amount)
}

func (s *Store) preview(symbol market.Symbol, amount decimal.Decimal) (InvestPreview, error) {
	if amount.IsNegative() {
		return InvestPreview{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	price, err := s.priceOf(symbol)
	if err != nil {
		return InvestPreview{}, err
	}
	return InvestPreview{
		Symbol:    symbol,
		Price:     price,
		Amount:    amount,
		Quantity:  amount.DivRound(price, PreviewQuantityPlaces),
		Available: s.account.cashBalance,
	}, nil
}

// LastTransaction returns the newest ledger entry.
func (s *Store) LastTransaction() (ledger.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tx := range s.account.ledger.Recent(1) {
		return tx, true
	}
	return ledger.Transaction{}, false
}

func (s *Store) priceOf(symbol market.Symbol) (decimal.Decimal, error) {
	if s.prices == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	price, err := s.prices.Price(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}
	return price, nil
}

// append must be called with s.mu held.
func (s *Store) append(kind ledger.Kind, symbol market.Symbol, amount decimal.Decimal, description string) {
	tx := ledger.Transaction{
		ID:          s.newID(),
		Kind:        kind,
		Symbol:      symbol,
		Amount:      amount,
		Description: description,
		Timestamp:   s.now(),
	}
	s.account.ledger.Append(tx)
	if s.onAppend != nil {
		s.onAppend(tx)
	}
}
