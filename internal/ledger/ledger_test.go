package ledger

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(id string, kind Kind, amount int64) Transaction {
	return Transaction{
		ID:        id,
		Kind:      kind,
		Symbol:    "USD",
		Amount:    decimal.NewFromInt(amount),
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(seq []Transaction) []string {
	out := make([]string, 0, len(seq))
	for _, t := range seq {
		out = append(out, t.ID)
	}
	return out
}

func TestLedger_AppendIsNewestFirst(t *testing.T) {
	l := New()
	const n = 5
	for i := 1; i <= n; i++ {
		l.Append(tx(fmt.Sprintf("tx-%d", i), KindDeposit, int64(i)))
	}

	all := slices.Collect(l.All())

	require.Len(t, all, n)
	assert.Equal(t, n, l.Len())
	assert.Equal(t, []string{"tx-5", "tx-4", "tx-3", "tx-2", "tx-1"}, ids(all))
	// the first appended transaction is always at the end
	assert.Equal(t, "tx-1", all[len(all)-1].ID)
}

func TestLedger_Recent(t *testing.T) {
	l := New()
	for i := 1; i <= 7; i++ {
		l.Append(tx(fmt.Sprintf("tx-%d", i), KindInvestment, int64(i)))
	}

	testCases := []struct {
		name     string
		n        int
		expected []string
	}{
		{name: "FirstFive", n: 5, expected: []string{"tx-7", "tx-6", "tx-5", "tx-4", "tx-3"}},
		{name: "MoreThanLen", n: 20, expected: []string{"tx-7", "tx-6", "tx-5", "tx-4", "tx-3", "tx-2", "tx-1"}},
		{name: "Zero", n: 0, expected: []string{}},
		{name: "Negative", n: -1, expected: []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(slices.Collect(l.Recent(tc.n))))
		})
	}
}

func TestLedger_RecentStopsEarly(t *testing.T) {
	l := New()
	l.Append(tx("a", KindBonus, 500))
	l.Append(tx("b", KindInvestment, 100))

	var seen []string
	for entry := range l.Recent(2) {
		seen = append(seen, entry.ID)
		break
	}
	assert.Equal(t, []string{"b"}, seen)
}

func TestLedger_FromNewestFirst(t *testing.T) {
	stored := []Transaction{tx("c", KindSale, 3), tx("b", KindInvestment, 2), tx("a", KindBonus, 1)}

	l := FromNewestFirst(stored)
	l.Append(tx("d", KindWithdrawal, 4))

	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(l.Entries()))
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := New()
	l.Append(tx("a", KindBonus, 500))

	c := l.Clone()
	c.Append(tx("b", KindDeposit, 10))

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, c.Len())
}

func TestKind(t *testing.T) {
	assert.True(t, KindSale.Valid())
	assert.False(t, Kind("Refund").Valid())
	assert.True(t, KindBonus.Inflow())
	assert.True(t, KindDeposit.Inflow())
	assert.False(t, KindWithdrawal.Inflow())
}
