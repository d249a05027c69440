package storage

import (
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/models"
)

// SyncStatus tracks the sync state of one record.
type SyncStatus string

const (
	StatusSynced      SyncStatus = "synced"
	StatusPendingPush SyncStatus = "pending_push"
	StatusPendingPull SyncStatus = "pending_pull"
	StatusConflict    SyncStatus = "conflict"
)

// Operation is a queued mutation type.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Record is a generic identified entity plus sync metadata. Collections
// (clients, invoices, projects, ...) share one table, keyed by
// (collection, id); domain fields live in the JSONB payload.
//
// Invariants: a record without a CloudID is always pending_push; conflict
// holds only while unsynced local edits coexist with newer remote changes.
type Record struct {
	Collection     string       `gorm:"primaryKey;type:varchar(64)" json:"collection"`
	ID             string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Data           models.JSONB `gorm:"type:jsonb" json:"data"`
	CreatedAt      time.Time    `json:"createdAt"`
	LocalUpdatedAt time.Time    `gorm:"not null;index:idx_records_local_updated" json:"localUpdatedAt"`
	CloudUpdatedAt *time.Time   `json:"cloudUpdatedAt"`
	SyncStatus     SyncStatus   `gorm:"type:varchar(20);not null;index:idx_records_status" json:"syncStatus"`
	CloudID        *string      `gorm:"type:varchar(64);index:idx_records_cloud_id" json:"cloudId"`
}

// TableName specifies the table name
func (Record) TableName() string {
	return "records"
}

// QueueItem is one pending remote mutation. Entries are created alongside
// every local mutation while sync is enabled, removed on successful remote
// application, and kept with an incremented retry counter on failure.
type QueueItem struct {
	ID         string       `gorm:"primaryKey;type:uuid" json:"id"`
	Collection string       `gorm:"type:varchar(64);not null;index:idx_queue_collection" json:"collection"`
	RecordID   string       `gorm:"type:varchar(64);not null" json:"recordId"`
	Operation  Operation    `gorm:"type:varchar(20);not null" json:"operation"`
	Payload    models.JSONB `gorm:"type:jsonb" json:"payload"`
	CreatedAt  time.Time    `gorm:"index:idx_queue_collection" json:"createdAt"`
	RetryCount int          `gorm:"default:0" json:"retryCount"`
	LastError  *string      `gorm:"type:text" json:"lastError,omitempty"`
}

// TableName specifies the table name
func (QueueItem) TableName() string {
	return "sync_queue"
}
