package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-sim-go/internal/ledger"
)

func TestWALJournal_RecordAndRead(t *testing.T) {
	// Arrange
	j, err := NewWALJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	first := ledger.Transaction{ID: "a", Kind: ledger.KindInvestment, Symbol: "BTC", Amount: decimal.NewFromInt(100), Timestamp: at}
	second := ledger.Transaction{ID: "b", Kind: ledger.KindSale, Symbol: "BTC", Amount: decimal.NewFromInt(104), Timestamp: at.Add(time.Minute)}

	// Act
	require.NoError(t, j.Record("user-1", first))
	require.NoError(t, j.Record("user-1", second))
	entries, err := j.EntriesAfter(0)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, "a", entries[0].Transaction.ID)
	assert.Equal(t, ledger.KindSale, entries[1].Transaction.Kind)
	assert.True(t, entries[1].Transaction.Amount.Equal(decimal.NewFromInt(104)))
	assert.Equal(t, entries[1].Index, j.CurrentIndex())

	later, err := j.EntriesAfter(entries[0].Index)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "b", later[0].Transaction.ID)

	none, err := j.EntriesAfter(j.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALJournal_NilIsNotInitialized(t *testing.T) {
	var j *WALJournal

	assert.Error(t, j.Record("u", ledger.Transaction{}))
	assert.Error(t, j.Close())
	assert.Zero(t, j.CurrentIndex())
}

func TestWALJournal_EntriesAfterSkipsForeignKeys(t *testing.T) {
	// Arrange
	j, err := NewWALJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record("user-1", ledger.Transaction{ID: "a", Kind: ledger.KindInvestment, Symbol: "ETH", Amount: decimal.NewFromInt(25), Timestamp: at}))
	require.NoError(t, j.wal.Write(j.wal.CurrentIndex()+1, "checkpoint", []byte(`{}`)))
	require.NoError(t, j.Record("user-2", ledger.Transaction{ID: "b", Kind: ledger.KindWithdrawal, Symbol: "USD", Amount: decimal.NewFromInt(50), Timestamp: at}))

	// Act
	entries, err := j.EntriesAfter(0)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Index)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, uint64(3), entries[1].Index)
	assert.Equal(t, "user-2", entries[1].UserID)
	assert.Equal(t, ledger.KindWithdrawal, entries[1].Transaction.Kind)
}

func TestWALJournal_EntriesAfterOnNil(t *testing.T) {
	var j *WALJournal

	entries, err := j.EntriesAfter(0)

	assert.Error(t, err)
	assert.Nil(t, entries)
}
