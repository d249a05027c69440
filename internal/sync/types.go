package sync

import (
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/storage"
)

// Direction selects which half of a sync pass to run.
type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
	DirectionFull Direction = "full"
)

// Request represents a sync request
type Request struct {
	Collection string // empty means every configured collection
	Direction  Direction
	Priority   int
}

// CollectionResult is the outcome of one collection's pass.
type CollectionResult struct {
	Collection string             `json:"collection"`
	Push       storage.PushResult `json:"push"`
	Pull       storage.PullResult `json:"pull"`
	Error      string             `json:"error,omitempty"`
}

// Result represents the result of a sync operation
type Result struct {
	Success     bool               `json:"success"`
	Direction   Direction          `json:"direction"`
	Collections []CollectionResult `json:"collections"`
	Pushed      int                `json:"pushed"`
	Pulled      int                `json:"pulled"`
	Conflicts   int                `json:"conflicts"`
	Failed      int                `json:"failed"`
	Duration    time.Duration      `json:"-"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Notifier receives sync lifecycle events for fan-out to connected clients.
type Notifier interface {
	BroadcastSyncEvent(event string, payload interface{})
}
