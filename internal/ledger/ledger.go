// Package ledger records every balance-affecting event of an account.
package ledger

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/market"
)

// Kind classifies a transaction.
type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindBonus      Kind = "Bonus"
	KindInvestment Kind = "Investment"
	KindSale       Kind = "Sale"
	KindWithdrawal Kind = "Withdrawal"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindBonus, KindInvestment, KindSale, KindWithdrawal:
		return true
	}
	return false
}

// Inflow reports whether the kind adds cash to the account from outside.
func (k Kind) Inflow() bool {
	return k == KindDeposit || k == KindBonus
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"type"`
	Symbol      market.Symbol   `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Timestamp   time.Time       `json:"time"`
}

// Ledger is an append-only transaction log read newest first.
// Entries are stored oldest first so Append never shifts the slice.
type Ledger struct {
	entries []Transaction
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// FromNewestFirst rebuilds a ledger from entries already ordered newest first.
func FromNewestFirst(txs []Transaction) *Ledger {
	l := &Ledger{entries: make([]Transaction, len(txs))}
	for i, tx := range txs {
		l.entries[len(txs)-1-i] = tx
	}
	return l
}

// Append records tx as the newest entry.
func (l *Ledger) Append(tx Transaction) {
	l.entries = append(l.entries, tx)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Recent yields at most n entries, newest first.
func (l *Ledger) Recent(n int) iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for i, taken := len(l.entries)-1, 0; i >= 0 && taken < n; i, taken = i-1, taken+1 {
			if !yield(l.entries[i]) {
				return
			}
		}
	}
}

// All yields every entry, newest first.
func (l *Ledger) All() iter.Seq[Transaction] {
	return l.Recent(len(l.entries))
}

// Entries returns a newest-first copy of the log.
func (l *Ledger) Entries() []Transaction {
	out := make([]Transaction, 0, len(l.entries))
	for tx := range l.All() {
		out = append(out, tx)
	}
	return out
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{entries: make([]Transaction, len(l.entries))}
	copy(c.entries, l.entries)
	return c
}
