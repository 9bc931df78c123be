package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-sim-go/internal/config"
	"portfolio-sim-go/internal/storage"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	db, err := NewDatabase(&config.Database{DSN: "file::memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewKVStore(db)
}

func TestKVStore_ImplementsPersistentStore(t *testing.T) {
	var _ storage.PersistentStore = newTestStore(t)
}

func TestKVStore_SetGetRemove(t *testing.T) {
	// Arrange
	s := newTestStore(t)

	// Act & Assert
	_, ok, err := s.GetItem(storage.KeySession)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(storage.KeySession, `{"isLoggedIn":true}`))
	require.NoError(t, s.SetItem(storage.KeySession, `{"isLoggedIn":false}`))

	v, ok, err := s.GetItem(storage.KeySession)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"isLoggedIn":false}`, v)

	require.NoError(t, s.RemoveItem(storage.KeySession))
	_, ok, err = s.GetItem(storage.KeySession)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_JSONHelpers(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, storage.SetJSON(s, storage.KeyUsers, []string{"a", "b"}))

	var users []string
	found, err := storage.GetJSON(s, storage.KeyUsers, &users)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, users)
}

func TestNewDatabase_KeepsDataAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portfolio.db")

	db, err := NewDatabase(&config.Database{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, NewKVStore(db).SetItem(storage.KeyCurrentUser, "kept"))
	sqlDB, _ := db.DB()
	require.NoError(t, sqlDB.Close())

	db, err = NewDatabase(&config.Database{DSN: dsn})
	require.NoError(t, err)
	sqlDB, _ = db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	v, ok, err := NewKVStore(db).GetItem(storage.KeyCurrentUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", v)
}
