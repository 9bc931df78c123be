package models

import "time"

// KVEntry is one row of the key-value table backing the persistent store.
type KVEntry struct {
	Key       string `gorm:"primaryKey;column:item_key"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName overrides the default pluralised name.
func (KVEntry) TableName() string {
	return "kv_entries"
}
