package models

import "time"

// KVEntry is one row of the local persistent store.
type KVEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Scope     string    `json:"scope" gorm:"size:128;not null;uniqueIndex:idx_kv_scope_key"`
	Key       string    `json:"key" gorm:"size:255;not null;uniqueIndex:idx_kv_scope_key"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the KVEntry model
func (KVEntry) TableName() string {
	return "kv_entries"
}
