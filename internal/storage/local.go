package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LocalAdapter is the authoritative client-side store for one collection,
// backed by the embedded PostgreSQL instance. Every mutation lands here
// first; queue entries mirror mutations only while sync is enabled.
type LocalAdapter struct {
	db          *database.DB
	collection  string
	syncEnabled func() bool
}

// NewLocalAdapter creates a local adapter for one collection. syncEnabled is
// consulted at mutation time; nil means sync is never enabled.
func NewLocalAdapter(db *database.DB, collection string, syncEnabled func() bool) *LocalAdapter {
	if syncEnabled == nil {
		syncEnabled = func() bool { return false }
	}
	return &LocalAdapter{db: db, collection: collection, syncEnabled: syncEnabled}
}

// Collection returns the collection name this adapter serves.
func (a *LocalAdapter) Collection() string {
	return a.collection
}

func (a *LocalAdapter) scoped(tx *gorm.DB) *gorm.DB {
	return tx.Model(&Record{}).Where("collection = ?", a.collection)
}

// GetAll returns every record in the collection.
func (a *LocalAdapter) GetAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := a.scoped(a.db.WithContext(ctx)).Order("created_at").Find(&recs).Error
	return recs, opErr("getAll", a.collection, "", err)
}

// GetByID returns the record or (nil, nil) when the id is unknown.
func (a *LocalAdapter) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := a.scoped(a.db.WithContext(ctx)).Where("id = ?", id).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, opErr("getById", a.collection, id, err)
	}
	return &rec, nil
}

// GetByIndex returns records whose payload field matches the given value,
// e.g. all invoices for one owning project.
func (a *LocalAdapter) GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error) {
	var recs []Record
	err := a.scoped(a.db.WithContext(ctx)).
		Where("data ->> ? = ?", field, fmt.Sprintf("%v", value)).
		Order("created_at").
		Find(&recs).Error
	return recs, opErr("getByIndex", a.collection, "", err)
}

// Create assigns a locally-generated id, stamps fresh sync metadata and, if
// sync is enabled, appends a create entry to the queue in the same
// transaction.
func (a *LocalAdapter) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	now := time.Now().UTC()
	rec := Record{
		Collection:     a.collection,
		ID:             uuid.NewString(),
		Data:           models.JSONB(data).Clone(),
		CreatedAt:      now,
		LocalUpdatedAt: now,
		SyncStatus:     StatusPendingPush,
	}
	rec.Data["id"] = rec.ID

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return a.enqueue(tx, rec.ID, OpCreate, rec.Data)
	})
	if err != nil {
		return nil, opErr("create", a.collection, rec.ID, err)
	}
	return &rec, nil
}

// Update merges partial data into the record. Any local edit invalidates the
// sync state: the record goes back to pending_push even if it was synced.
func (a *LocalAdapter) Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error) {
	var rec Record
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.scoped(tx).Where("id = ?", id).First(&rec).Error; err != nil {
			return err
		}
		if rec.Data == nil {
			rec.Data = make(models.JSONB)
		}
		for k, v := range data {
			rec.Data[k] = v
		}
		rec.LocalUpdatedAt = time.Now().UTC()
		rec.SyncStatus = StatusPendingPush
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		return a.enqueue(tx, rec.ID, OpUpdate, rec.Data)
	})
	if err == gorm.ErrRecordNotFound {
		return nil, opErr("update", a.collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, opErr("update", a.collection, id, err)
	}
	return &rec, nil
}

// Delete removes the record. A remote delete is queued only when the record
// had a cloud id; a record that never synced needs no remote call.
func (a *LocalAdapter) Delete(ctx context.Context, id string) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		if err := a.scoped(tx).Where("id = ?", id).First(&rec).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		if err := tx.Delete(&Record{}, "collection = ? AND id = ?", a.collection, id).Error; err != nil {
			return err
		}
		if rec.CloudID == nil {
			return nil
		}
		return a.enqueue(tx, id, OpDelete, models.JSONB{"cloudId": *rec.CloudID})
	})
	return opErr("delete", a.collection, id, err)
}

// Count returns the number of records in the collection.
func (a *LocalAdapter) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.scoped(a.db.WithContext(ctx)).Count(&n).Error
	return n, opErr("count", a.collection, "", err)
}

func (a *LocalAdapter) enqueue(tx *gorm.DB, recordID string, op Operation, payload models.JSONB) error {
	if !a.syncEnabled() {
		return nil
	}
	item := QueueItem{
		ID:         uuid.NewString(),
		Collection: a.collection,
		RecordID:   recordID,
		Operation:  op,
		Payload:    payload.Clone(),
		CreatedAt:  time.Now().UTC(),
	}
	return tx.Create(&item).Error
}

// PendingQueue returns this collection's queue entries in FIFO order.
func (a *LocalAdapter) PendingQueue(ctx context.Context) ([]QueueItem, error) {
	var items []QueueItem
	err := a.db.WithContext(ctx).
		Where("collection = ?", a.collection).
		Order("created_at").
		Find(&items).Error
	return items, opErr("pendingQueue", a.collection, "", err)
}

// DeleteQueueItem removes one queue entry after successful remote
// application.
func (a *LocalAdapter) DeleteQueueItem(ctx context.Context, id string) error {
	err := a.db.WithContext(ctx).Delete(&QueueItem{}, "id = ?", id).Error
	return opErr("deleteQueueItem", a.collection, id, err)
}

// MarkQueueItemFailed keeps the entry for a later pass, bumping the retry
// counter and recording the error.
func (a *LocalAdapter) MarkQueueItemFailed(ctx context.Context, id string, cause error) error {
	msg := cause.Error()
	err := a.db.WithContext(ctx).Model(&QueueItem{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  msg,
		}).Error
	return opErr("markQueueItemFailed", a.collection, id, err)
}

// MarkSynced patches a record after a successful push.
func (a *LocalAdapter) MarkSynced(ctx context.Context, id string, cloudID string, cloudUpdatedAt time.Time) error {
	err := a.scoped(a.db.WithContext(ctx)).Where("id = ?", id).
		Updates(map[string]interface{}{
			"cloud_id":         cloudID,
			"cloud_updated_at": cloudUpdatedAt,
			"sync_status":      StatusSynced,
		}).Error
	return opErr("markSynced", a.collection, id, err)
}

// MarkConflict flags a record for manual review without touching its data.
func (a *LocalAdapter) MarkConflict(ctx context.Context, id string) error {
	err := a.scoped(a.db.WithContext(ctx)).Where("id = ?", id).
		Update("sync_status", StatusConflict).Error
	return opErr("markConflict", a.collection, id, err)
}

// InsertSynced inserts a record pulled from the remote store.
func (a *LocalAdapter) InsertSynced(ctx context.Context, rec Record) error {
	rec.Collection = a.collection
	rec.SyncStatus = StatusSynced
	err := a.db.WithContext(ctx).Create(&rec).Error
	return opErr("insertSynced", a.collection, rec.ID, err)
}

// OverwriteFromRemote replaces a synced record's content with the remote
// version.
func (a *LocalAdapter) OverwriteFromRemote(ctx context.Context, id string, data map[string]interface{}, cloudUpdatedAt time.Time) error {
	err := a.scoped(a.db.WithContext(ctx)).Where("id = ?", id).
		Updates(map[string]interface{}{
			"data":             models.JSONB(data),
			"local_updated_at": cloudUpdatedAt,
			"cloud_updated_at": cloudUpdatedAt,
			"sync_status":      StatusSynced,
		}).Error
	return opErr("overwriteFromRemote", a.collection, id, err)
}

// PurgeCollection drops every record in the collection and its queue
// entries.
func (a *LocalAdapter) PurgeCollection(ctx context.Context) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Record{}, "collection = ?", a.collection).Error; err != nil {
			return err
		}
		return tx.Delete(&QueueItem{}, "collection = ?", a.collection).Error
	})
	return opErr("purge", a.collection, "", err)
}
