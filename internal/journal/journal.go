// Package journal appends every ledger transaction to a write-ahead log.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vadiminshakov/gowal"

	"portfolio-sim-go/internal/ledger"
)

const (
	defaultJournalDir = "./wal/transactions"
	segmentLimit      = 1000
	maxSegments       = 100
	keyPrefix         = "tx_"
)

// Journal records transactions as they are appended to a ledger.
type Journal interface {
	Record(userID string, tx ledger.Transaction) error
}

// Entry is a journaled transaction and its WAL index.
type Entry struct {
	Index       uint64             `json:"index"`
	UserID      string             `json:"user_id"`
	Transaction ledger.Transaction `json:"transaction"`
}

type payload struct {
	UserID      string             `json:"user_id"`
	Transaction ledger.Transaction `json:"transaction"`
}

// WALJournal is a Journal on top of gowal.
type WALJournal struct {
	mu  sync.RWMutex
	wal *gowal.Wal
}

// NewWALJournal opens or creates the journal under dir.
func NewWALJournal(dir string) (*WALJournal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "tx_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction journal: %w", err)
	}
	return &WALJournal{wal: wal}, nil
}

// Record appends tx under the next WAL index.
func (j *WALJournal) Record(userID string, tx ledger.Transaction) error {
	if j == nil || j.wal == nil {
		return errors.New("transaction journal is not initialized")
	}

	data, err := json.Marshal(payload{UserID: userID, Transaction: tx})
	if err != nil {
		return fmt.Errorf("failed to encode transaction %s: %w", tx.ID, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Write(j.wal.CurrentIndex()+1, keyPrefix+userID, data)
}

// EntriesAfter returns the journaled transactions written after index, oldest first.
func (j *WALJournal) EntriesAfter(index uint64) ([]Entry, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("transaction journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, data, err := j.wal.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal entry %d: %w", idx, err)
		}
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry %d: %w", idx, err)
		}
		entries = append(entries, Entry{Index: idx, UserID: p.UserID, Transaction: p.Transaction})
	}
	return entries, nil
}

// CurrentIndex returns the latest WAL index written.
func (j *WALJournal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.wal.CurrentIndex()
}

// Close flushes and closes the WAL.
func (j *WALJournal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("transaction journal is not initialized")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
