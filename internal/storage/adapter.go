package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a mutation against a record id the collection does not
// contain. Callers can detect it through errors.Is on an AdapterError.
var ErrNotFound = errors.New("record not found")

// Adapter is the uniform operation set every backing store implements. All
// operations are asynchronous in spirit: callers must not assume any of them
// completes without suspension, even against the local store.
//
// For the cloud adapter the id arguments of Update and Delete are remote
// ids; everywhere else ids are the locally-generated record ids.
type Adapter interface {
	GetAll(ctx context.Context) ([]Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error)
	Create(ctx context.Context, data map[string]interface{}) (*Record, error)
	Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// LocalStore extends Adapter with the queue and sync-metadata operations the
// hybrid adapter drives during push and pull.
type LocalStore interface {
	Adapter

	// PendingQueue returns this collection's queue entries in FIFO
	// creation order.
	PendingQueue(ctx context.Context) ([]QueueItem, error)
	DeleteQueueItem(ctx context.Context, id string) error
	// MarkQueueItemFailed increments the retry counter and records the
	// error; the entry stays queued for a later pass.
	MarkQueueItemFailed(ctx context.Context, id string, cause error) error

	// MarkSynced patches a record with its remote id and stamps both
	// timestamps from a successful push.
	MarkSynced(ctx context.Context, id string, cloudID string, cloudUpdatedAt time.Time) error
	// MarkConflict flags a record whose local edits collided with a newer
	// remote version. Local content is left as-is.
	MarkConflict(ctx context.Context, id string) error
	// InsertSynced inserts a record pulled from the remote, already marked
	// synced, without touching the queue.
	InsertSynced(ctx context.Context, rec Record) error
	// OverwriteFromRemote replaces a synced record's content with the
	// remote version and refreshes both timestamps.
	OverwriteFromRemote(ctx context.Context, id string, data map[string]interface{}, cloudUpdatedAt time.Time) error

	// PurgeCollection drops every record in the collection. Used by the
	// app-state reset for feature-derived caches only.
	PurgeCollection(ctx context.Context) error
}

// AdapterError wraps a storage failure with the operation it came from.
type AdapterError struct {
	Op         string
	Collection string
	RecordID   string
	Err        error
}

func (e *AdapterError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Collection, e.RecordID, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

func opErr(op, collection, recordID string, err error) error {
	if err == nil {
		return nil
	}
	return &AdapterError{Op: op, Collection: collection, RecordID: recordID, Err: err}
}
