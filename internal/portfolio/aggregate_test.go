package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-sim-go/internal/market"
)

func sampleSnapshot() AccountSnapshot {
	return AccountSnapshot{
		CashBalance:    d("400"),
		InitialBalance: d("500"),
		RealizedProfit: d("10"),
		Positions: []Position{
			{Symbol: "BTC", Quantity: d("1"), CostBasis: d("100"), MarketValue: d("100"), UnrealizedPnL: decimal.Zero},
			{Symbol: "ETH", Quantity: d("2"), CostBasis: d("300"), MarketValue: d("300"), UnrealizedPnL: decimal.Zero},
		},
	}
}

func TestBuildView_Totals(t *testing.T) {
	// Arrange
	snap := sampleSnapshot()
	prices := map[market.Symbol]decimal.Decimal{"BTC": d("150")}

	// Act
	v := BuildView(snap, prices)

	// Assert
	assert.True(t, v.PortfolioValue.Equal(d("450")))
	assert.True(t, v.UnrealizedProfit.Equal(d("50")))
	assert.True(t, v.TotalProfit.Equal(d("60")))
	assert.True(t, v.Withdrawable.IsZero())
	assert.Equal(t, 2, v.ActivePositions)

	require.Len(t, v.Holdings, 2)
	assert.Equal(t, market.Symbol("BTC"), v.Holdings[0].Symbol)
	assert.True(t, v.Holdings[0].AveragePrice.Equal(d("100")))
	assert.True(t, v.Holdings[1].AveragePrice.Equal(d("150")))

	assert.Equal(t, "$400.00", v.Display.CashBalance)
	assert.Equal(t, "$450.00", v.Display.PortfolioValue)
	assert.Equal(t, "$60.00", v.Display.TotalProfit)
	assert.Equal(t, "$0.00", v.Display.Withdrawable)

	// the snapshot itself is left untouched
	assert.True(t, snap.Positions[0].MarketValue.Equal(d("100")))
}

func TestBuildView_Allocation(t *testing.T) {
	v := BuildView(sampleSnapshot(), map[market.Symbol]decimal.Decimal{"BTC": d("150")})

	require.Len(t, v.Allocation, 2)
	assert.Equal(t, "33.3%", v.Allocation[0].Label)
	assert.Equal(t, "66.7%", v.Allocation[1].Label)

	sum := decimal.Zero
	for _, a := range v.Allocation {
		sum = sum.Add(a.Percent)
	}
	assert.True(t, sum.Sub(d("100")).Abs().LessThan(d("0.000001")), "allocation sums to %s", sum)
}

func TestBuildView_EmptyPortfolio(t *testing.T) {
	v := BuildView(AccountSnapshot{CashBalance: d("500"), InitialBalance: d("500"), RealizedProfit: decimal.Zero}, nil)

	assert.True(t, v.PortfolioValue.IsZero())
	assert.Empty(t, v.Allocation)
	assert.NotNil(t, v.Allocation)
	assert.Empty(t, v.Holdings)
	assert.Equal(t, 0, v.ActivePositions)
	assert.Equal(t, "$500.00", v.Display.CashBalance)
}

func TestWithdrawable(t *testing.T) {
	testCases := []struct {
		name     string
		cash     string
		initial  string
		expected string
	}{
		{name: "FreshAccount", cash: "500", initial: "500", expected: "0"},
		{name: "BelowFloor", cash: "120", initial: "500", expected: "0"},
		{name: "Profit", cash: "612.5", initial: "500", expected: "112.5"},
		{name: "NoFloor", cash: "80", initial: "0", expected: "80"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Withdrawable(AccountSnapshot{CashBalance: d(tc.cash), InitialBalance: d(tc.initial)})
			assert.True(t, got.Equal(d(tc.expected)), "got %s", got)
		})
	}
}

func TestBuildView_MatchesStore(t *testing.T) {
	prices := fakePrices{"BTC": d("6622"), "LINK": d("9.0542")}
	s := newTestStore(t, prices)
	_, err := s.Invest("BTC", d("100"))
	require.NoError(t, err)
	_, err = s.Invest("LINK", d("25"))
	require.NoError(t, err)

	v := BuildView(s.Snapshot(), prices)

	assert.True(t, v.PortfolioValue.Equal(d("125")), "portfolio value is %s", v.PortfolioValue)
	assert.True(t, v.TotalProfit.IsZero())
	assert.Equal(t, "$375.00", v.Display.CashBalance)
	assert.Equal(t, "80.0%", v.Allocation[0].Label)
	assert.Equal(t, "20.0%", v.Allocation[1].Label)
}
