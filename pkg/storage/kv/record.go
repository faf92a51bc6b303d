package kv

import "time"

// Record is one persisted key/value pair. Values are JSON-serialized strings;
// callers own the payload schema.
type Record struct {
	ID uint `gorm:"primaryKey"`

	Key   string `gorm:"type:text;not null;uniqueIndex:idx_kv_key"`
	Value string `gorm:"type:text;not null"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (Record) TableName() string {
	return "kv_record"
}
