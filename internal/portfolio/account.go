package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/models"
)

// DefaultStartingBonus is credited to every newly registered account.
var DefaultStartingBonus = decimal.NewFromInt(500)

// WelcomeBonusDescription labels the registration bonus transaction.
const WelcomeBonusDescription = "Welcome Bonus"

// Account is the cash balance, open positions and transaction ledger of one user.
// Positions keep the order in which they were first opened.
type Account struct {
	cashBalance    decimal.Decimal
	initialBalance decimal.Decimal
	realizedProfit decimal.Decimal
	positions      []*Position
	ledger         *ledger.Ledger
}

// NewAccount opens an account credited with startingBonus, recorded as a Bonus
// transaction and used as the withdrawal floor.
func NewAccount(startingBonus decimal.Decimal, at time.Time) *Account {
	a := emptyAccount()
	if startingBonus.IsPositive() {
		// a positive bonus with an inflow kind cannot fail
		_ = a.credit(startingBonus, ledger.KindBonus, WelcomeBonusDescription, at)
	}
	return a
}

// credit adds a deposit or bonus at account creation. Credited cash counts as
// principal, so it raises the withdrawal floor as well.
func (a *Account) credit(amount decimal.Decimal, kind ledger.Kind, description string, at time.Time) error {
	if !kind.Inflow() {
		return fmt.Errorf("cannot credit a %s transaction", kind)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	a.cashBalance = a.cashBalance.Add(amount)
	a.initialBalance = a.initialBalance.Add(amount)
	a.ledger.Append(ledger.Transaction{
		ID:          uuid.NewString(),
		Kind:        kind,
		Symbol:      market.USD,
		Amount:      amount,
		Description: description,
		Timestamp:   at,
	})
	return nil
}

// DefaultAccount is used when a user has no stored portfolio: a 500.00 balance
// with no positions and an empty ledger.
func DefaultAccount() *Account {
	a := emptyAccount()
	a.cashBalance = DefaultStartingBonus
	a.initialBalance = DefaultStartingBonus
	return a
}

func emptyAccount() *Account {
	return &Account{
		cashBalance:    decimal.Zero,
		initialBalance: decimal.Zero,
		realizedProfit: decimal.Zero,
		ledger:         ledger.New(),
	}
}

// AccountFromRecord rebuilds an account from its persisted form.
// A record without an initial balance uses its balance as the floor.
func AccountFromRecord(rec *models.PortfolioRecord) (*Account, error) {
	if rec == nil {
		return DefaultAccount(), nil
	}
	if rec.Balance.IsNegative() {
		return nil, fmt.Errorf("stored balance is negative: %s", rec.Balance)
	}

	a := emptyAccount()
	a.cashBalance = rec.Balance
	a.initialBalance = rec.Balance
	if rec.InitialBalance != nil {
		a.initialBalance = *rec.InitialBalance
	}
	a.realizedProfit = rec.RealizedProfit

	for _, inv := range rec.Investments {
		if !inv.Amount.IsPositive() {
			continue
		}
		sym := market.Symbol(inv.Asset)
		if p := a.position(sym); p != nil {
			p.Quantity = p.Quantity.Add(inv.Amount)
			p.CostBasis = p.CostBasis.Add(inv.Invested)
			p.MarketValue = p.MarketValue.Add(inv.Value)
			p.UnrealizedPnL = p.MarketValue.Sub(p.CostBasis)
			continue
		}
		a.positions = append(a.positions, &Position{
			Symbol:        sym,
			Quantity:      inv.Amount,
			CostBasis:     inv.Invested,
			MarketValue:   inv.Value,
			UnrealizedPnL: inv.Value.Sub(inv.Invested),
		})
	}

	txs := make([]ledger.Transaction, 0, len(rec.Transactions))
	for i, r := range rec.Transactions {
		kind := ledger.Kind(r.Type)
		if !kind.Valid() {
			return nil, fmt.Errorf("stored transaction %d has unknown type %q", i, r.Type)
		}
		txs = append(txs, ledger.Transaction{
			ID:          r.ID,
			Kind:        kind,
			Symbol:      market.Symbol(r.Asset),
			Amount:      r.Amount,
			Description: r.Description,
			Timestamp:   r.Time,
		})
	}
	a.ledger = ledger.FromNewestFirst(txs)

	return a, nil
}

// Record converts the account into its persisted form.
func (a *Account) Record() models.PortfolioRecord {
	initial := a.initialBalance
	rec := models.PortfolioRecord{
		Balance:        a.cashBalance,
		InitialBalance: &initial,
		RealizedProfit: a.realizedProfit,
		Investments:    make([]models.InvestmentRecord, 0, len(a.positions)),
		Transactions:   make([]models.TransactionRecord, 0, a.ledger.Len()),
	}
	for _, p := range a.positions {
		rec.Investments = append(rec.Investments, models.InvestmentRecord{
			Asset:    string(p.Symbol),
			Amount:   p.Quantity,
			Invested: p.CostBasis,
			Value:    p.MarketValue,
			Profit:   p.UnrealizedPnL,
		})
	}
	for tx := range a.ledger.All() {
		rec.Transactions = append(rec.Transactions, models.TransactionRecord{
			ID:          tx.ID,
			Type:        string(tx.Kind),
			Asset:       string(tx.Symbol),
			Amount:      tx.Amount,
			Description: tx.Description,
			Time:        tx.Timestamp,
		})
	}
	return rec
}

// AccountSnapshot is a detached copy of an account's state.
type AccountSnapshot struct {
	CashBalance    decimal.Decimal      `json:"cash_balance"`
	InitialBalance decimal.Decimal      `json:"initial_balance"`
	RealizedProfit decimal.Decimal      `json:"realized_profit"`
	Positions      []Position           `json:"positions"`
	Transactions   []ledger.Transaction `json:"transactions"` // newest first
}

// Snapshot returns a deep copy of the account.
func (a *Account) Snapshot() AccountSnapshot {
	s := AccountSnapshot{
		CashBalance:    a.cashBalance,
		InitialBalance: a.initialBalance,
		RealizedProfit: a.realizedProfit,
		Positions:      make([]Position, 0, len(a.positions)),
		Transactions:   a.ledger.Entries(),
	}
	for _, p := range a.positions {
		s.Positions = append(s.Positions, *p)
	}
	return s
}

func (a *Account) position(symbol market.Symbol) *Position {
	for _, p := range a.positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return nil
}

func (a *Account) removePosition(symbol market.Symbol) {
	kept := a.positions[:0]
	for _, p := range a.positions {
		if p.Symbol != symbol {
			kept = append(kept, p)
		}
	}
	a.positions = kept
}
