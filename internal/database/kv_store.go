package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio-sim-go/internal/models"
)

// KVStore is a storage.PersistentStore backed by the kv_entries table.
type KVStore struct {
	db *gorm.DB
}

// NewKVStore wraps an open, migrated database.
func NewKVStore(db *gorm.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) GetItem(key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.db.Where("item_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item '%s': %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *KVStore) SetItem(key, value string) error {
	entry := models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set item '%s': %w", key, err)
	}
	return nil
}

func (s *KVStore) RemoveItem(key string) error {
	if err := s.db.Where("item_key = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
		return fmt.Errorf("failed to remove item '%s': %w", key, err)
	}
	return nil
}
