package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRun records one completed push/pull pass for the status endpoint and
// troubleshooting. Counts holds the aggregate counters of the pass.
type SyncRun struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Direction    string         `gorm:"type:varchar(10);not null" json:"direction"` // push, pull, full
	Collection   string         `gorm:"type:varchar(64);index" json:"collection"`
	Counts       datatypes.JSON `json:"counts"`
	ErrorMessage *string        `gorm:"type:text" json:"errorMessage,omitempty"`
	StartedAt    time.Time      `gorm:"not null;index" json:"startedAt"`
	DurationMs   int64          `json:"durationMs"`
}

// TableName specifies the table name
func (SyncRun) TableName() string {
	return "sync_runs"
}
