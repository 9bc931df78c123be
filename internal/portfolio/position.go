package portfolio

import (
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/market"
)

// ValuePrecision is the number of decimal places market values are rounded to.
const ValuePrecision = market.PricePrecision

// Position is an open holding in one symbol.
// Repeated buys add to both Quantity and CostBasis.
type Position struct {
	Symbol        market.Symbol   `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// AveragePrice is the cost basis per unit held.
func (p Position) AveragePrice() decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return p.CostBasis.Div(p.Quantity)
}

// ValueAt returns the position's value at price.
func (p Position) ValueAt(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price).Round(ValuePrecision)
}

func (p *Position) revalue(price decimal.Decimal) {
	p.MarketValue = p.ValueAt(price)
	p.UnrealizedPnL = p.MarketValue.Sub(p.CostBasis)
}
