package portfolio

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
)

type fakePrices map[market.Symbol]decimal.Decimal

func (f fakePrices) Price(s market.Symbol) (decimal.Decimal, error) {
	p, ok := f[s]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", market.ErrUnknownSymbol, s)
	}
	return p, nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore(t *testing.T, prices fakePrices) *Store {
	t.Helper()
	seq := 0
	return NewStore(DefaultAccount(), prices,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("tx-%d", seq)
		}),
	)
}

func TestStore_InvestThenSell_RoundTrip(t *testing.T) {
	// Arrange
	prices := fakePrices{"BTC": d("6622.00")}
	s := newTestStore(t, prices)

	// Act
	pos, err := s.Invest("BTC", d("100"))

	// Assert
	require.NoError(t, err)
	assert.True(t, s.CashBalance().Equal(d("400")))
	assert.True(t, pos.Quantity.Equal(d("100").Div(d("6622"))))
	assert.True(t, pos.CostBasis.Equal(d("100")))
	assert.True(t, pos.MarketValue.Equal(d("100")), "market value is %s", pos.MarketValue)
	assert.True(t, pos.UnrealizedPnL.IsZero())

	closed, err := s.Sell("BTC")
	require.NoError(t, err)
	assert.True(t, closed.MarketValue.Equal(d("100")))
	assert.True(t, s.CashBalance().Equal(d("500")))

	_, open := s.Position("BTC")
	assert.False(t, open)

	txs := s.Transactions(10)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.KindSale, txs[0].Kind)
	assert.Equal(t, ledger.KindInvestment, txs[1].Kind)
	assert.Equal(t, market.Symbol("BTC"), txs[0].Symbol)
	assert.Equal(t, fixedNow, txs[0].Timestamp)
	assert.Equal(t, "tx-2", txs[0].ID)
}

func TestStore_InvestAccumulates(t *testing.T) {
	prices := fakePrices{"ETH": d("2000")}
	s := newTestStore(t, prices)

	_, err := s.Invest("ETH", d("100"))
	require.NoError(t, err)

	prices["ETH"] = d("4000")
	pos, err := s.Invest("ETH", d("100"))
	require.NoError(t, err)

	assert.True(t, pos.Quantity.Equal(d("0.075")), "quantity is %s", pos.Quantity)
	assert.True(t, pos.CostBasis.Equal(d("200")))
	assert.True(t, pos.MarketValue.Equal(d("300")))
	assert.True(t, pos.UnrealizedPnL.Equal(d("100")))
	assert.Len(t, s.Snapshot().Positions, 1)
	assert.True(t, s.CashBalance().Equal(d("300")))
}

func TestStore_InvestRejections(t *testing.T) {
	testCases := []struct {
		name     string
		symbol   market.Symbol
		amount   decimal.Decimal
		expected error
	}{
		{name: "Zero", symbol: "BTC", amount: decimal.Zero, expected: ErrInvalidAmount},
		{name: "Negative", symbol: "BTC", amount: d("-5"), expected: ErrInvalidAmount},
		{name: "MoreThanCash", symbol: "BTC", amount: d("500.01"), expected: ErrInsufficientFunds},
		{name: "UnknownSymbol", symbol: "DOGE", amount: d("10"), expected: ErrUnknownSymbol},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			s := newTestStore(t, fakePrices{"BTC": d("6622")})
			before := s.Snapshot()

			// Act
			_, err := s.Invest(tc.symbol, tc.amount)

			// Assert
			require.ErrorIs(t, err, tc.expected)
			assert.True(t, IsValidation(err))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestStore_InvestWholeBalance(t *testing.T) {
	s := newTestStore(t, fakePrices{"SOL": d("84.671")})

	_, err := s.Invest("SOL", d("500"))

	require.NoError(t, err)
	assert.True(t, s.CashBalance().IsZero())
}

func TestStore_SellRealizesGain(t *testing.T) {
	prices := fakePrices{"BTC": d("6622")}
	s := newTestStore(t, prices)
	_, err := s.Invest("BTC", d("100"))
	require.NoError(t, err)

	prices["BTC"] = d("13244")
	closed, err := s.Sell("BTC")

	require.NoError(t, err)
	assert.True(t, closed.MarketValue.Equal(d("200")), "market value is %s", closed.MarketValue)
	assert.True(t, s.CashBalance().Equal(d("600")))
	assert.True(t, s.Snapshot().RealizedProfit.Equal(d("100")))

	last, ok := s.LastTransaction()
	require.True(t, ok)
	assert.True(t, last.Amount.Equal(d("200")))
}

func TestStore_SellWithoutPosition(t *testing.T) {
	s := newTestStore(t, fakePrices{"BTC": d("6622")})

	_, err := s.Sell("BTC")

	require.ErrorIs(t, err, ErrNoPosition)
	assert.Empty(t, s.Transactions(5))
}

func TestStore_Withdraw(t *testing.T) {
	testCases := []struct {
		name     string
		gain     bool
		amount   decimal.Decimal
		expected error
		cash     decimal.Decimal
	}{
		{name: "FreshAccountIsRestricted", amount: d("50"), expected: ErrWithdrawalRestricted, cash: d("500")},
		{name: "BelowMinimum", amount: d("49.99"), expected: ErrBelowMinimum, cash: d("500")},
		{name: "ZeroIsBelowMinimum", amount: decimal.Zero, expected: ErrBelowMinimum, cash: d("500")},
		{name: "MoreThanCash", gain: true, amount: d("700"), expected: ErrInsufficientFunds, cash: d("600")},
		{name: "MoreThanProfit", gain: true, amount: d("100.01"), expected: ErrWithdrawalRestricted, cash: d("600")},
		{name: "AllProfit", gain: true, amount: d("100"), cash: d("500")},
		{name: "Minimum", gain: true, amount: d("50"), cash: d("550")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			prices := fakePrices{"BTC": d("100")}
			s := newTestStore(t, prices)
			if tc.gain {
				_, err := s.Invest("BTC", d("100"))
				require.NoError(t, err)
				prices["BTC"] = d("200")
				_, err = s.Sell("BTC")
				require.NoError(t, err)
			}

			// Act
			err := s.Withdraw(tc.amount)

			// Assert
			if tc.expected != nil {
				require.ErrorIs(t, err, tc.expected)
			} else {
				require.NoError(t, err)
				last, ok := s.LastTransaction()
				require.True(t, ok)
				assert.Equal(t, ledger.KindWithdrawal, last.Kind)
				assert.Equal(t, market.USD, last.Symbol)
			}
			assert.True(t, s.CashBalance().Equal(tc.cash), "cash is %s", s.CashBalance())
		})
	}
}

func TestStore_WithMinWithdrawal(t *testing.T) {
	s := NewStore(DefaultAccount(), fakePrices{}, WithMinWithdrawal(d("10")))

	err := s.Withdraw(d("10"))

	assert.ErrorIs(t, err, ErrWithdrawalRestricted)
}

func TestStore_SellUnpricedPosition(t *testing.T) {
	// Arrange
	prices := fakePrices{"BTC": d("6622")}
	s := newTestStore(t, prices)
	_, err := s.Invest("BTC", d("100"))
	require.NoError(t, err)
	delete(prices, "BTC")

	// Act
	_, err = s.Sell("BTC")

	// Assert
	require.ErrorIs(t, err, ErrUnknownSymbol)
	_, open := s.Position("BTC")
	assert.True(t, open)
	assert.True(t, s.CashBalance().Equal(d("400")))
	assert.Len(t, s.Transactions(5), 1)
}

func TestStore_TransactionHook(t *testing.T) {
	// Arrange
	var seen []ledger.Transaction
	s := NewStore(DefaultAccount(), fakePrices{"BTC": d("6622")},
		WithTransactionHook(func(tx ledger.Transaction) { seen = append(seen, tx) }))

	// Act
	_, err := s.Invest("BTC", d("300"))
	require.NoError(t, err)
	_, err = s.Invest("BTC", d("900"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = s.Sell("BTC")
	require.NoError(t, err)

	// Assert
	require.Len(t, seen, 2)
	assert.Equal(t, ledger.KindInvestment, seen[0].Kind)
	assert.Equal(t, ledger.KindSale, seen[1].Kind)
	last, ok := s.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, last.ID, seen[1].ID)
}

func TestStore_TransactionHookSeesEveryConcurrentAppend(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)
	s := NewStore(DefaultAccount(), fakePrices{"ADA": d("0.28472")},
		WithTransactionHook(func(tx ledger.Transaction) {
			mu.Lock()
			seen[tx.ID]++
			mu.Unlock()
		}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Invest("ADA", d("10"))
		}()
	}
	wg.Wait()

	txs := s.Transactions(100)
	require.Len(t, txs, 8)
	for _, tx := range txs {
		assert.Equal(t, 1, seen[tx.ID], "transaction %s", tx.ID)
	}
	assert.Len(t, seen, 8)
}

func TestStore_PreviewInvest(t *testing.T) {
	s := newTestStore(t, fakePrices{"BTC": d("6622.00"), "ADA": d("0.28472")})

	testCases := []struct {
		name     string
		symbol   market.Symbol
		amount   string
		quantity string
		err      error
	}{
		{name: "RoundedToEightPlaces", symbol: "BTC", amount: "100", quantity: "0.01510118"},
		{name: "Fractional", symbol: "ADA", amount: "12.5", quantity: "43.90278168"},
		{name: "Zero", symbol: "BTC", amount: "0", quantity: "0"},
		{name: "MoreThanBalance", symbol: "BTC", amount: "6622", quantity: "1"},
		{name: "Negative", symbol: "BTC", amount: "-1", err: ErrInvalidAmount},
		{name: "UnknownSymbol", symbol: "DOGE", amount: "10", err: ErrUnknownSymbol},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := s.PreviewInvest(tc.symbol, d(tc.amount))

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.quantity, p.Quantity.String())
			assert.True(t, p.Available.Equal(d("500")))
			assert.True(t, p.Amount.Equal(d(tc.amount)))
		})
	}
	assert.Empty(t, s.Transactions(5), "previews never touch the ledger")
}

func TestStore_PreviewInvestPercent(t *testing.T) {
	prices := fakePrices{"BTC": d("6622.00")}
	s := newTestStore(t, prices)
	_, err := s.Invest("BTC", d("166.67"))
	require.NoError(t, err)

	testCases := []struct {
		name    string
		percent string
		amount  string
		err     error
	}{
		{name: "Quarter", percent: "25", amount: "83.33"},
		{name: "Half", percent: "50", amount: "166.67"},
		{name: "All", percent: "100", amount: "333.33"},
		{name: "Zero", percent: "0", err: ErrInvalidAmount},
		{name: "OverHundred", percent: "150", err: ErrInvalidAmount},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := s.PreviewInvestPercent("BTC", d(tc.percent))

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.amount, p.Amount.StringFixed(2))
			assert.True(t, p.Quantity.Equal(d(tc.amount).DivRound(d("6622"), 8)))
		})
	}
}

func TestStore_RevalueAll(t *testing.T) {
	prices := fakePrices{"BTC": d("100"), "ETH": d("10")}
	s := newTestStore(t, prices)
	_, err := s.Invest("BTC", d("100"))
	require.NoError(t, err)
	_, err = s.Invest("ETH", d("50"))
	require.NoError(t, err)

	// ETH disappears from the lookup and keeps its last value
	s.RevalueAll(fakePrices{"BTC": d("120")})

	btc, _ := s.Position("BTC")
	eth, _ := s.Position("ETH")
	assert.True(t, btc.MarketValue.Equal(d("120")))
	assert.True(t, btc.UnrealizedPnL.Equal(d("20")))
	assert.True(t, eth.MarketValue.Equal(d("50")))
	assert.True(t, s.CashBalance().Equal(d("350")), "revaluation never touches cash")
	assert.Len(t, s.Transactions(10), 2, "revaluation never appends to the ledger")
}

func TestStore_Transactions(t *testing.T) {
	s := newTestStore(t, fakePrices{"BTC": d("10")})
	for range 3 {
		_, err := s.Invest("BTC", d("10"))
		require.NoError(t, err)
	}

	assert.Len(t, s.Transactions(2), 2)
	assert.Len(t, s.Transactions(50), 3)
	assert.Empty(t, s.Transactions(-1))
	assert.Equal(t, "tx-3", s.Transactions(1)[0].ID)
}

func TestStore_ConcurrentInvestNeverOverspends(t *testing.T) {
	s := newTestStore(t, fakePrices{"BTC": d("10")})
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Invest("BTC", d("50")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.True(t, s.CashBalance().IsZero())
	assert.Len(t, s.Transactions(100), 10)
}
