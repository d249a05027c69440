package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// errSkip marks a queue entry that cannot be processed this round but is not
// a failure: it stays queued untouched for a later pass.
var errSkip = errors.New("skipped this pass")

// PushResult aggregates one push pass.
type PushResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// PullResult aggregates one pull pass.
type PullResult struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`
}

// HybridAdapter layers the queue-driven sync protocol over a local store and
// a cloud adapter for one collection. Local is always authoritative for
// reads and never blocked on network reachability: the CRUD methods are thin
// pass-throughs, and cloud propagation happens only in Push.
type HybridAdapter struct {
	// mu serializes Push and Pull; pull's conflict detection needs a
	// stable snapshot of each record's sync status.
	mu sync.Mutex

	local        LocalStore
	cloud        Adapter
	collection   string
	requiresAuth bool

	syncEnabled func() bool
	accountID   func() string
}

// NewHybridAdapter creates a hybrid adapter. syncEnabled and accountID guard
// every push and pull pass; nil funcs mean "never enabled" and "no account".
func NewHybridAdapter(local LocalStore, cloud Adapter, collection string, requiresAuth bool, syncEnabled func() bool, accountID func() string) *HybridAdapter {
	if syncEnabled == nil {
		syncEnabled = func() bool { return false }
	}
	if accountID == nil {
		accountID = func() string { return "" }
	}
	return &HybridAdapter{
		local:        local,
		cloud:        cloud,
		collection:   collection,
		requiresAuth: requiresAuth,
		syncEnabled:  syncEnabled,
		accountID:    accountID,
	}
}

// Collection returns the collection name this adapter serves.
func (h *HybridAdapter) Collection() string {
	return h.collection
}

func (h *HybridAdapter) GetAll(ctx context.Context) ([]Record, error) {
	return h.local.GetAll(ctx)
}

func (h *HybridAdapter) GetByID(ctx context.Context, id string) (*Record, error) {
	return h.local.GetByID(ctx, id)
}

func (h *HybridAdapter) GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error) {
	return h.local.GetByIndex(ctx, field, value)
}

func (h *HybridAdapter) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	return h.local.Create(ctx, data)
}

func (h *HybridAdapter) Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error) {
	return h.local.Update(ctx, id, data)
}

func (h *HybridAdapter) Delete(ctx context.Context, id string) error {
	return h.local.Delete(ctx, id)
}

func (h *HybridAdapter) Count(ctx context.Context) (int64, error) {
	return h.local.Count(ctx)
}

func (h *HybridAdapter) guarded() bool {
	if !h.syncEnabled() {
		return false
	}
	if h.requiresAuth && h.accountID() == "" {
		return false
	}
	return true
}

// Push applies this collection's queued local mutations to the remote store
// in FIFO order. Per-item failures keep the entry queued with its retry
// counter bumped; retry cadence is the caller's concern.
func (h *HybridAdapter) Push(ctx context.Context) (*PushResult, error) {
	res := &PushResult{}
	if !h.guarded() {
		return res, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	items, err := h.local.PendingQueue(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		err := h.pushItem(ctx, item, res)
		switch {
		case err == nil:
			if derr := h.local.DeleteQueueItem(ctx, item.ID); derr != nil {
				log.Printf("⚠️ Sync: failed to dequeue %s/%s: %v", h.collection, item.ID, derr)
			}
		case errors.Is(err, errSkip):
			// Entry stays queued untouched for a later pass.
		default:
			res.Failed++
			if ferr := h.local.MarkQueueItemFailed(ctx, item.ID, err); ferr != nil {
				log.Printf("⚠️ Sync: failed to record error on %s/%s: %v", h.collection, item.ID, ferr)
			}
		}
	}
	return res, nil
}

func (h *HybridAdapter) pushItem(ctx context.Context, item QueueItem, res *PushResult) error {
	switch item.Operation {
	case OpCreate:
		rec, err := h.local.GetByID(ctx, item.RecordID)
		if err != nil {
			return err
		}
		if rec == nil {
			// Deleted locally before it ever synced; nothing to push.
			return nil
		}
		created, err := h.cloud.Create(ctx, rec.Data)
		if err != nil {
			return err
		}
		if err := h.local.MarkSynced(ctx, rec.ID, *created.CloudID, *created.CloudUpdatedAt); err != nil {
			return err
		}
		res.Created++
		return nil

	case OpUpdate:
		rec, err := h.local.GetByID(ctx, item.RecordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if rec.CloudID == nil {
			// Create hasn't landed yet; the create entry for this record
			// is expected to run first or in a later pass.
			return errSkip
		}
		updated, err := h.cloud.Update(ctx, *rec.CloudID, rec.Data)
		if err != nil {
			return err
		}
		if err := h.local.MarkSynced(ctx, rec.ID, *rec.CloudID, *updated.CloudUpdatedAt); err != nil {
			return err
		}
		res.Updated++
		return nil

	case OpDelete:
		cloudID, _ := item.Payload["cloudId"].(string)
		if cloudID == "" {
			// Never synced, no remote row to remove.
			return nil
		}
		if err := h.cloud.Delete(ctx, cloudID); err != nil {
			return err
		}
		res.Deleted++
		return nil

	default:
		return fmt.Errorf("unknown queue operation %q", item.Operation)
	}
}

// Pull reconciles local records against the full remote collection. A
// failure of the bulk fetch aborts the pass; per-record failures do not.
// Records with unsynced local edits are never clobbered: local content wins
// and the record is flagged conflict for manual review.
func (h *HybridAdapter) Pull(ctx context.Context) (*PullResult, error) {
	res := &PullResult{}
	if !h.guarded() {
		return res, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	remote, err := h.cloud.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull fetch for %s: %w", h.collection, err)
	}

	for _, rr := range remote {
		if rr.ID == "" {
			// Remote row without a local id was never created through
			// this client; adopt the remote id as the local key.
			rr.ID = *rr.CloudID
			rr.Data["id"] = rr.ID
		}

		local, err := h.local.GetByID(ctx, rr.ID)
		if err != nil {
			log.Printf("⚠️ Sync: pull lookup failed for %s/%s: %v", h.collection, rr.ID, err)
			continue
		}

		switch {
		case local == nil:
			rr.LocalUpdatedAt = rr.CreatedAt
			if err := h.local.InsertSynced(ctx, rr); err != nil {
				log.Printf("⚠️ Sync: pull insert failed for %s/%s: %v", h.collection, rr.ID, err)
				continue
			}
			res.Added++

		case local.SyncStatus == StatusPendingPush || local.SyncStatus == StatusConflict:
			if err := h.local.MarkConflict(ctx, local.ID); err != nil {
				log.Printf("⚠️ Sync: pull conflict flag failed for %s/%s: %v", h.collection, local.ID, err)
				continue
			}
			res.Conflicts++

		default:
			if err := h.local.OverwriteFromRemote(ctx, local.ID, rr.Data, *rr.CloudUpdatedAt); err != nil {
				log.Printf("⚠️ Sync: pull overwrite failed for %s/%s: %v", h.collection, local.ID, err)
				continue
			}
			res.Updated++
		}
	}
	return res, nil
}
