package portfolio

import (
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/market"
)

// PreviewQuantityPlaces is the precision of a previewed quantity.
const PreviewQuantityPlaces = 8

// InvestPreview is what an investment would buy at the current price.
type InvestPreview struct {
	Symbol    market.Symbol   `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Quantity  decimal.Decimal `json:"quantity"`
	Available decimal.Decimal `json:"available"`
}
