package portfolio

import (
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/market"
)

var hundred = decimal.NewFromInt(100)

// View holds the display-ready aggregate figures of an account.
type View struct {
	CashBalance      decimal.Decimal `json:"cash_balance"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	RealizedProfit   decimal.Decimal `json:"realized_profit"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	Withdrawable     decimal.Decimal `json:"withdrawable"`
	ActivePositions  int             `json:"active_positions"`
	Holdings         []Holding       `json:"holdings"`
	Allocation       []Allocation    `json:"allocation"`
	Display          Display         `json:"display"`
}

// Holding is one row of the holdings table.
type Holding struct {
	Symbol        market.Symbol   `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Allocation is the share of total portfolio value held in one symbol.
type Allocation struct {
	Symbol  market.Symbol   `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
	Label   string          `json:"label"`
}

// Display holds the headline figures formatted for presentation.
type Display struct {
	CashBalance    string `json:"cash_balance"`
	PortfolioValue string `json:"portfolio_value"`
	TotalProfit    string `json:"total_profit"`
	Withdrawable   string `json:"withdrawable"`
}

// BuildView derives the aggregate figures from an account snapshot.
// Positions are valued at prices when the symbol is present there, and at
// their last market value otherwise. A nil prices map uses stored values only.
func BuildView(snap AccountSnapshot, prices map[market.Symbol]decimal.Decimal) View {
	v := View{
		CashBalance:      snap.CashBalance,
		PortfolioValue:   decimal.Zero,
		UnrealizedProfit: decimal.Zero,
		RealizedProfit:   snap.RealizedProfit,
		ActivePositions:  len(snap.Positions),
		Holdings:         make([]Holding, 0, len(snap.Positions)),
		Allocation:       []Allocation{},
	}

	for _, p := range snap.Positions {
		if price, ok := prices[p.Symbol]; ok && price.IsPositive() {
			p.revalue(price)
		}
		v.PortfolioValue = v.PortfolioValue.Add(p.MarketValue)
		v.UnrealizedProfit = v.UnrealizedProfit.Add(p.UnrealizedPnL)
		v.Holdings = append(v.Holdings, Holding{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			CostBasis:     p.CostBasis,
			AveragePrice:  p.AveragePrice(),
			MarketValue:   p.MarketValue,
			UnrealizedPnL: p.UnrealizedPnL,
		})
	}
	v.TotalProfit = v.UnrealizedProfit.Add(v.RealizedProfit)
	v.Withdrawable = Withdrawable(snap)

	if v.PortfolioValue.IsPositive() {
		for _, h := range v.Holdings {
			pct := h.MarketValue.Div(v.PortfolioValue).Mul(hundred)
			v.Allocation = append(v.Allocation, Allocation{
				Symbol:  h.Symbol,
				Value:   h.MarketValue,
				Percent: pct,
				Label:   FormatPercent(pct),
			})
		}
	}

	v.Display = Display{
		CashBalance:    FormatUSD(v.CashBalance),
		PortfolioValue: FormatUSD(v.PortfolioValue),
		TotalProfit:    FormatUSD(v.TotalProfit),
		Withdrawable:   FormatUSD(v.Withdrawable),
	}
	return v
}

// Withdrawable is the cash above the initial balance, capped at the cash balance.
func Withdrawable(snap AccountSnapshot) decimal.Decimal {
	earned := snap.CashBalance.Sub(snap.InitialBalance)
	if !earned.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(earned, snap.CashBalance)
}
