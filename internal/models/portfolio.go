package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioRecord is the persisted form of an account.
// InitialBalance is nil for records written before the floor was stored.
type PortfolioRecord struct {
	Balance        decimal.Decimal     `json:"balance"`
	InitialBalance *decimal.Decimal    `json:"initialBalance,omitempty"`
	RealizedProfit decimal.Decimal     `json:"realizedProfit"`
	Investments    []InvestmentRecord  `json:"investments"`
	Transactions   []TransactionRecord `json:"transactions"`
}

// InvestmentRecord is a persisted open position.
type InvestmentRecord struct {
	Asset    string          `json:"asset"`
	Amount   decimal.Decimal `json:"amount"` // quantity held
	Invested decimal.Decimal `json:"invested"`
	Value    decimal.Decimal `json:"value"`
	Profit   decimal.Decimal `json:"profit"`
}

// TransactionRecord is a persisted ledger entry, newest first in the slice.
type TransactionRecord struct {
	ID          string          `json:"id,omitempty"`
	Type        string          `json:"type"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Time        time.Time       `json:"time"`
}
