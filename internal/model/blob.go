package model

import "time"

// Blob is one persisted collection snapshot in the relational store.
type Blob struct {
	Key       string    `gorm:"column:blob_key;primaryKey;size:191"`
	Value     []byte    `gorm:"column:value;type:longblob;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Blob) TableName() string {
	return "state_blobs"
}
