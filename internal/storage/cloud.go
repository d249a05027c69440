package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/fieldfolio/fieldfoliogo/internal/remote"
)

// remoteTimeLayout is the timestamp format the hosted backend returns.
const remoteTimeLayout = "2006-01-02 15:04:05"

// fieldMaps translates local payload field names to the remote schema, one
// explicit table per collection. Remote names are not always a mechanical
// case transform of the local ones, so there is no generic heuristic here:
// every served field is an entry. The local id travels as external_uid so
// pull can match remote rows back to local records. Sync metadata never
// appears in these tables and therefore never crosses the wire.
var fieldMaps = map[string]map[string]string{
	"clients": {
		"id":             "external_uid",
		"name":           "display_name",
		"email":          "email",
		"phone":          "phone",
		"company":        "company_name",
		"notes":          "notes",
		"is1099Eligible": "tax_1099_eligible",
	},
	"projects": {
		"id":         "external_uid",
		"clientId":   "client_ref",
		"title":      "title",
		"status":     "status",
		"quoteTotal": "quote_total_cents",
		"notes":      "notes",
	},
	"invoices": {
		"id":        "external_uid",
		"clientId":  "client_ref",
		"projectId": "project_ref",
		"number":    "invoice_number",
		"issuedAt":  "issue_date",
		"dueAt":     "due_date",
		"total":     "total_cents",
		"status":    "status",
		"lineItems": "line_items",
	},
	"mileage_entries": {
		"id":       "external_uid",
		"clientId": "client_ref",
		"date":     "travel_date",
		"miles":    "distance_miles",
		"purpose":  "purpose",
		"vehicle":  "vehicle",
		"rate":     "rate_cents_per_mile",
	},
	"appointments": {
		"id":       "external_uid",
		"clientId": "client_ref",
		"title":    "title",
		"startsAt": "start_at",
		"endsAt":   "end_at",
		"location": "location",
		"status":   "status",
		"notes":    "notes",
	},
	"service_items": {
		"id":              "external_uid",
		"name":            "name",
		"description":     "description",
		"price":           "price_cents",
		"hourlyRate":      "rate_hour_cents",
		"durationMinutes": "duration_min",
		"category":        "category",
	},
}

// CloudAdapter serves one collection against the hosted backend, translating
// between the local and remote field conventions in both directions. Its
// Update/Delete ids are remote ids.
type CloudAdapter struct {
	client     *remote.Client
	collection string
	toRemote   map[string]string
	toLocal    map[string]string
}

// NewCloudAdapter creates a cloud adapter for one collection. Collections
// without a mapping table are refused rather than guessed at.
func NewCloudAdapter(client *remote.Client, collection string) (*CloudAdapter, error) {
	toRemote, ok := fieldMaps[collection]
	if !ok {
		return nil, fmt.Errorf("no remote field mapping for collection %q", collection)
	}
	toLocal := make(map[string]string, len(toRemote))
	for local, rem := range toRemote {
		if _, dup := toLocal[rem]; dup {
			return nil, fmt.Errorf("field mapping for %q is not invertible: duplicate remote name %q", collection, rem)
		}
		toLocal[rem] = local
	}
	return &CloudAdapter{
		client:     client,
		collection: collection,
		toRemote:   toRemote,
		toLocal:    toLocal,
	}, nil
}

// Collection returns the collection name this adapter serves.
func (a *CloudAdapter) Collection() string {
	return a.collection
}

// translateToRemote maps a local payload to remote field names. Fields
// without a mapping entry (including any stray metadata) are dropped.
func (a *CloudAdapter) translateToRemote(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for local, v := range data {
		if rem, ok := a.toRemote[local]; ok {
			out[rem] = v
		}
	}
	return out
}

// translateToLocal maps a remote row back to local field names, skipping the
// remote's own bookkeeping columns.
func (a *CloudAdapter) translateToLocal(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for rem, v := range row {
		if local, ok := a.toLocal[rem]; ok {
			out[local] = v
		}
	}
	return out
}

func (a *CloudAdapter) remoteFields() []string {
	fields := make([]string, 0, len(a.toRemote)+2)
	for _, rem := range a.toRemote {
		fields = append(fields, rem)
	}
	return append(fields, "create_date", "write_date")
}

func parseRemoteTime(v interface{}) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(remoteTimeLayout, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

func (a *CloudAdapter) recordFromRow(row map[string]interface{}) Record {
	data := a.translateToLocal(row)
	localID, _ := data["id"].(string)
	cloudID := fmt.Sprintf("%v", row["id"])
	created := parseRemoteTime(row["create_date"])
	updated := parseRemoteTime(row["write_date"])
	return Record{
		Collection:     a.collection,
		ID:             localID,
		Data:           models.JSONB(data),
		CreatedAt:      created,
		LocalUpdatedAt: updated,
		CloudUpdatedAt: &updated,
		SyncStatus:     StatusSynced,
		CloudID:        &cloudID,
	}
}

// GetAll fetches the full remote collection.
func (a *CloudAdapter) GetAll(ctx context.Context) ([]Record, error) {
	rows, err := a.client.SearchRead(a.collection, a.remoteFields())
	if err != nil {
		return nil, opErr("getAll", a.collection, "", err)
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, a.recordFromRow(row))
	}
	return recs, nil
}

// GetByID looks a record up by remote id. The backend has no point lookup in
// its dispatch, so this scans the collection.
func (a *CloudAdapter) GetByID(ctx context.Context, id string) (*Record, error) {
	recs, err := a.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].CloudID != nil && *recs[i].CloudID == id {
			return &recs[i], nil
		}
	}
	return nil, nil
}

// GetByIndex filters the remote collection by a local-named payload field.
func (a *CloudAdapter) GetByIndex(ctx context.Context, field string, value interface{}) ([]Record, error) {
	recs, err := a.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	want := fmt.Sprintf("%v", value)
	out := recs[:0]
	for _, rec := range recs {
		if fmt.Sprintf("%v", rec.Data[field]) == want {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Create pushes a local payload to the remote store and returns the record
// with its new remote id.
func (a *CloudAdapter) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	remoteID, err := a.client.Create(a.collection, a.translateToRemote(data))
	if err != nil {
		return nil, opErr("create", a.collection, "", err)
	}
	cloudID := strconv.FormatInt(remoteID, 10)
	now := time.Now().UTC()
	localID, _ := data["id"].(string)
	return &Record{
		Collection:     a.collection,
		ID:             localID,
		Data:           models.JSONB(data).Clone(),
		CreatedAt:      now,
		LocalUpdatedAt: now,
		CloudUpdatedAt: &now,
		SyncStatus:     StatusSynced,
		CloudID:        &cloudID,
	}, nil
}

// Update writes a local payload to an existing remote id.
func (a *CloudAdapter) Update(ctx context.Context, id string, data map[string]interface{}) (*Record, error) {
	remoteID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, opErr("update", a.collection, id, fmt.Errorf("bad remote id: %w", err))
	}
	if err := a.client.Write(a.collection, remoteID, a.translateToRemote(data)); err != nil {
		return nil, opErr("update", a.collection, id, err)
	}
	now := time.Now().UTC()
	localID, _ := data["id"].(string)
	return &Record{
		Collection:     a.collection,
		ID:             localID,
		Data:           models.JSONB(data).Clone(),
		LocalUpdatedAt: now,
		CloudUpdatedAt: &now,
		SyncStatus:     StatusSynced,
		CloudID:        &id,
	}, nil
}

// Delete removes a remote record by remote id.
func (a *CloudAdapter) Delete(ctx context.Context, id string) error {
	remoteID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return opErr("delete", a.collection, id, fmt.Errorf("bad remote id: %w", err))
	}
	if err := a.client.Delete(a.collection, remoteID); err != nil {
		return opErr("delete", a.collection, id, err)
	}
	return nil
}

// Count returns the remote collection size.
func (a *CloudAdapter) Count(ctx context.Context) (int64, error) {
	recs, err := a.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}
