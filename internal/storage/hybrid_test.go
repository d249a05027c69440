package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/models"
)

// memLocal is an in-memory LocalStore for exercising the push/pull protocol
// without a database.
type memLocal struct {
	collection string
	records    map[string]*Record
	queue      []QueueItem
	nextID     int
}

func newMemLocal(collection string) *memLocal {
	return &memLocal{collection: collection, records: make(map[string]*Record)}
}

func (m *memLocal) newID() string {
	m.nextID++
	return fmt.Sprintf("local-%d", m.nextID)
}

func (m *memLocal) GetAll(ctx context.Context) ([]Record, error) {
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memLocal) GetByID(ctx context.Context, id string) (*Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memLocal) GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error) {
	var out []Record
	for _, r := range m.records {
		if r.Data[field] == value {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memLocal) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	id := m.newID()
	d := models.JSONB{}
	for k, v := range data {
		d[k] = v
	}
	d["id"] = id
	now := time.Now().UTC()
	rec := &Record{
		Collection:     m.collection,
		ID:             id,
		Data:           d,
		CreatedAt:      now,
		LocalUpdatedAt: now,
		SyncStatus:     StatusPendingPush,
	}
	m.records[id] = rec
	m.enqueue(id, OpCreate, d)
	cp := *rec
	return &cp, nil
}

func (m *memLocal) Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, opErr("update", m.collection, id, ErrNotFound)
	}
	for k, v := range data {
		rec.Data[k] = v
	}
	rec.LocalUpdatedAt = time.Now().UTC()
	rec.SyncStatus = StatusPendingPush
	m.enqueue(id, OpUpdate, rec.Data)
	cp := *rec
	return &cp, nil
}

func (m *memLocal) Delete(ctx context.Context, id string) error {
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	delete(m.records, id)
	if rec.CloudID != nil {
		m.enqueue(id, OpDelete, models.JSONB{"cloudId": *rec.CloudID})
	}
	return nil
}

func (m *memLocal) Count(ctx context.Context) (int64, error) {
	return int64(len(m.records)), nil
}

func (m *memLocal) enqueue(recordID string, op Operation, payload models.JSONB) {
	m.queue = append(m.queue, QueueItem{
		ID:         fmt.Sprintf("q-%d", len(m.queue)+1),
		Collection: m.collection,
		RecordID:   recordID,
		Operation:  op,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	})
}

func (m *memLocal) PendingQueue(ctx context.Context) ([]QueueItem, error) {
	return append([]QueueItem(nil), m.queue...), nil
}

func (m *memLocal) DeleteQueueItem(ctx context.Context, id string) error {
	for i, item := range m.queue {
		if item.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memLocal) MarkQueueItemFailed(ctx context.Context, id string, cause error) error {
	for i := range m.queue {
		if m.queue[i].ID == id {
			m.queue[i].RetryCount++
			msg := cause.Error()
			m.queue[i].LastError = &msg
		}
	}
	return nil
}

func (m *memLocal) MarkSynced(ctx context.Context, id string, cloudID string, cloudUpdatedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.CloudID = &cloudID
	rec.CloudUpdatedAt = &cloudUpdatedAt
	rec.SyncStatus = StatusSynced
	return nil
}

func (m *memLocal) MarkConflict(ctx context.Context, id string) error {
	rec, ok := m.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.SyncStatus = StatusConflict
	return nil
}

func (m *memLocal) InsertSynced(ctx context.Context, rec Record) error {
	rec.SyncStatus = StatusSynced
	m.records[rec.ID] = &rec
	return nil
}

func (m *memLocal) OverwriteFromRemote(ctx context.Context, id string, data map[string]interface{}, cloudUpdatedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return errors.New("record not found")
	}
	d := models.JSONB{}
	for k, v := range data {
		d[k] = v
	}
	rec.Data = d
	rec.CloudUpdatedAt = &cloudUpdatedAt
	rec.LocalUpdatedAt = cloudUpdatedAt
	rec.SyncStatus = StatusSynced
	return nil
}

func (m *memLocal) PurgeCollection(ctx context.Context) error {
	m.records = make(map[string]*Record)
	return nil
}

// memCloud is an in-memory remote store keyed by numeric cloud ids.
type memCloud struct {
	rows    map[string]*Record // keyed by cloud id
	nextID  int
	failOn  map[string]error // data["name"] -> error to inject on Create/Update
	getErr  error
	creates int
	updates int
	deletes int
}

func newMemCloud() *memCloud {
	return &memCloud{rows: make(map[string]*Record), failOn: make(map[string]error)}
}

func (c *memCloud) GetAll(ctx context.Context) ([]Record, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	out := make([]Record, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (c *memCloud) GetByID(ctx context.Context, id string) (*Record, error) {
	r, ok := c.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (c *memCloud) GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error) {
	return nil, nil
}

func (c *memCloud) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	if name, _ := data["name"].(string); name != "" {
		if err := c.failOn[name]; err != nil {
			return nil, err
		}
	}
	c.creates++
	c.nextID++
	cloudID := strconv.Itoa(c.nextID)
	now := time.Now().UTC()
	localID, _ := data["id"].(string)

	d := models.JSONB{}
	for k, v := range data {
		d[k] = v
	}
	rec := &Record{
		ID:             localID,
		Data:           d,
		CreatedAt:      now,
		CloudUpdatedAt: &now,
		CloudID:        &cloudID,
	}
	c.rows[cloudID] = rec
	cp := *rec
	return &cp, nil
}

func (c *memCloud) Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error) {
	if name, _ := data["name"].(string); name != "" {
		if err := c.failOn[name]; err != nil {
			return nil, err
		}
	}
	rec, ok := c.rows[id]
	if !ok {
		return nil, errors.New("remote row not found")
	}
	c.updates++
	d := models.JSONB{}
	for k, v := range data {
		d[k] = v
	}
	rec.Data = d
	now := time.Now().UTC()
	rec.CloudUpdatedAt = &now
	cp := *rec
	return &cp, nil
}

func (c *memCloud) Delete(ctx context.Context, id string) error {
	c.deletes++
	delete(c.rows, id)
	return nil
}

func (c *memCloud) Count(ctx context.Context) (int64, error) {
	return int64(len(c.rows)), nil
}

// seed puts a remote-only row in the cloud store.
func (c *memCloud) seed(localID string, data models.JSONB) string {
	c.nextID++
	cloudID := strconv.Itoa(c.nextID)
	now := time.Now().UTC()
	if localID != "" {
		data["id"] = localID
	}
	c.rows[cloudID] = &Record{
		ID:             localID,
		Data:           data,
		CreatedAt:      now,
		CloudUpdatedAt: &now,
		CloudID:        &cloudID,
	}
	return cloudID
}

func enabled() bool   { return true }
func account() string { return "acct-1" }

func newTestHybrid(local *memLocal, cloud *memCloud) *HybridAdapter {
	return NewHybridAdapter(local, cloud, local.collection, true, enabled, account)
}

func TestUpdateUnknownRecordReportsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(newMemLocal("clients"), newMemCloud())

	_, err := h.Update(ctx, "ghost", map[string]interface{}{"name": "Nobody"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of unknown id: got %v, want ErrNotFound", err)
	}
}

func TestPushDrainsQueueOnSuccess(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	rec, err := h.Create(ctx, map[string]interface{}{"name": "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Created != 1 || res.Failed != 0 {
		t.Errorf("push result = %+v", res)
	}
	if len(local.queue) != 0 {
		t.Errorf("queue should drain, %d entries left", len(local.queue))
	}

	got, _ := local.GetByID(ctx, rec.ID)
	if got.SyncStatus != StatusSynced {
		t.Errorf("record status = %s, want synced", got.SyncStatus)
	}
	if got.CloudID == nil || got.CloudUpdatedAt == nil {
		t.Error("synced record must carry cloud id and timestamp")
	}
}

func TestPushPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	cloud.failOn["Bravo"] = errors.New("validation rejected")
	h := newTestHybrid(local, cloud)

	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		if _, err := h.Create(ctx, map[string]interface{}{"name": name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	res, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Created != 2 || res.Failed != 1 {
		t.Errorf("push result = %+v, want 2 created 1 failed", res)
	}

	// Only the failed entry remains, retry counter bumped, error recorded.
	if len(local.queue) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(local.queue))
	}
	item := local.queue[0]
	if item.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", item.RetryCount)
	}
	if item.LastError == nil || *item.LastError != "validation rejected" {
		t.Errorf("lastError = %v", item.LastError)
	}

	// Second pass with the failure cleared drains the rest.
	delete(cloud.failOn, "Bravo")
	res, err = h.Push(ctx)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if res.Created != 1 || len(local.queue) != 0 {
		t.Errorf("second push = %+v, queue = %d", res, len(local.queue))
	}
}

func TestPushUpdateWithoutCloudIDIsSkipped(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("projects")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	rec, _ := h.Create(ctx, map[string]interface{}{"name": "Repipe"})

	// Remove the create entry to simulate an update queued while the create
	// has not landed yet.
	local.queue = local.queue[:0]
	if _, err := h.Update(ctx, rec.ID, map[string]interface{}{"status": "active"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Updated != 0 || res.Failed != 0 {
		t.Errorf("push result = %+v, want skip with no counters", res)
	}

	// Skipped entry stays queued completely untouched.
	if len(local.queue) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(local.queue))
	}
	if local.queue[0].RetryCount != 0 || local.queue[0].LastError != nil {
		t.Errorf("skipped entry was modified: %+v", local.queue[0])
	}
}

func TestPushDeleteOnlyWithCloudID(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	// Synced record: delete queues a remote delete.
	rec, _ := h.Create(ctx, map[string]interface{}{"name": "Acme"})
	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := h.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Never-synced record: deleting it queues nothing, and its stale create
	// entry resolves as a no-op success.
	rec2, _ := h.Create(ctx, map[string]interface{}{"name": "Ephemeral"})
	if err := h.Delete(ctx, rec2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	res, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Deleted != 1 || res.Created != 0 || res.Failed != 0 {
		t.Errorf("push result = %+v, want exactly 1 delete", res)
	}
	if cloud.deletes != 1 {
		t.Errorf("cloud deletes = %d, want 1", cloud.deletes)
	}
	if len(local.queue) != 0 {
		t.Errorf("queue should drain, %d entries left", len(local.queue))
	}
}

func TestPushPullRoundTripIsIdempotent(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("invoices")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	rec, _ := h.Create(ctx, map[string]interface{}{"number": "INV-1"})
	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}

	// An immediate pull must not duplicate or conflict the synced record.
	res, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.Added != 0 || res.Conflicts != 0 {
		t.Errorf("pull after push = %+v, want overwrite only", res)
	}

	count, _ := local.Count(ctx)
	if count != 1 {
		t.Errorf("record count = %d, want 1", count)
	}
	got, _ := local.GetByID(ctx, rec.ID)
	if got.SyncStatus != StatusSynced {
		t.Errorf("status after round trip = %s", got.SyncStatus)
	}
}

func TestPullInsertsRemoteOnlyRecords(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	cloud.seed("remote-client-1", models.JSONB{"name": "Harbor View"})

	res, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("added = %d, want 1", res.Added)
	}

	got, _ := local.GetByID(ctx, "remote-client-1")
	if got == nil {
		t.Fatal("pulled record missing locally")
	}
	if got.SyncStatus != StatusSynced {
		t.Errorf("pulled record status = %s, want synced", got.SyncStatus)
	}
}

func TestPullLocalEditsWinAsConflict(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	rec, _ := h.Create(ctx, map[string]interface{}{"name": "Original"})
	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Diverge: local edit not yet pushed, remote changed too.
	if _, err := h.Update(ctx, rec.ID, map[string]interface{}{"name": "Local Edit"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := local.GetByID(ctx, rec.ID)
	cloud.rows[*got.CloudID].Data["name"] = "Remote Edit"

	res, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.Conflicts != 1 || res.Updated != 0 {
		t.Errorf("pull result = %+v, want 1 conflict", res)
	}

	// Local content wins; only the status changes.
	after, _ := local.GetByID(ctx, rec.ID)
	if after.Data["name"] != "Local Edit" {
		t.Errorf("local content clobbered: %v", after.Data["name"])
	}
	if after.SyncStatus != StatusConflict {
		t.Errorf("status = %s, want conflict", after.SyncStatus)
	}

	// A second pull keeps the conflict flag rather than resolving silently.
	res, err = h.Pull(ctx)
	if err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if res.Conflicts != 1 {
		t.Errorf("second pull conflicts = %d, want 1", res.Conflicts)
	}
	after, _ = local.GetByID(ctx, rec.ID)
	if after.SyncStatus != StatusConflict {
		t.Errorf("conflict flag lost: %s", after.SyncStatus)
	}
}

func TestPullOverwritesCleanRecords(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	h := newTestHybrid(local, cloud)

	rec, _ := h.Create(ctx, map[string]interface{}{"name": "Original"})
	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, _ := local.GetByID(ctx, rec.ID)
	cloud.rows[*got.CloudID].Data["name"] = "Renamed Remotely"

	res, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("updated = %d, want 1", res.Updated)
	}

	after, _ := local.GetByID(ctx, rec.ID)
	if after.Data["name"] != "Renamed Remotely" {
		t.Errorf("clean record not overwritten: %v", after.Data["name"])
	}
	if after.SyncStatus != StatusSynced {
		t.Errorf("status = %s, want synced", after.SyncStatus)
	}
}

func TestPullAbortsWhenRemoteFetchFails(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	cloud.getErr = errors.New("backend unreachable")
	h := newTestHybrid(local, cloud)

	if _, err := h.Pull(ctx); err == nil {
		t.Error("pull must surface a failed bulk fetch")
	}
}

func TestSyncDisabledSkipsBothDirections(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("clients")
	cloud := newMemCloud()
	cloud.seed("", models.JSONB{"name": "Remote Only"})

	h := NewHybridAdapter(local, cloud, "clients", true, func() bool { return false }, account)
	if _, err := h.Create(ctx, map[string]interface{}{"name": "Acme"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	push, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	pull, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if push.Created != 0 || pull.Added != 0 {
		t.Errorf("disabled sync moved data: push=%+v pull=%+v", push, pull)
	}
	if cloud.creates != 0 {
		t.Errorf("cloud touched %d times while disabled", cloud.creates)
	}
}

func TestAuthRequiredCollectionNeedsAccount(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal("invoices")
	cloud := newMemCloud()

	h := NewHybridAdapter(local, cloud, "invoices", true, enabled, func() string { return "" })
	if _, err := h.Create(ctx, map[string]interface{}{"number": "INV-9"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	push, err := h.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if push.Created != 0 {
		t.Errorf("push without account created %d", push.Created)
	}

	// Queue survives for when the account signs in.
	if len(local.queue) != 1 {
		t.Errorf("queue = %d entries, want 1 retained", len(local.queue))
	}
}
