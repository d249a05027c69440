package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fieldfolio/fieldfoliogo/internal/appstate"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	"github.com/gorilla/mux"
)

// collectionFeatures maps gated collections to the feature key that unlocks
// them. Collections absent from the map are part of the base product.
var collectionFeatures = map[string]string{
	"appointments":    appstate.FeatureScheduling,
	"service_items":   appstate.FeatureServices,
	"mileage_entries": appstate.FeatureMileage,
	"invoices":        appstate.FeatureInvoicing,
}

// storeFor resolves the adapter for a collection and enforces its feature
// gate. A gated collection without access reads as 402, an unknown one as 404.
func (r *Router) storeFor(w http.ResponseWriter, req *http.Request) (storage.Adapter, bool) {
	collection := mux.Vars(req)["collection"]

	store, ok := r.stores[collection]
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown collection")
		return nil, false
	}

	if feature, gated := collectionFeatures[collection]; gated {
		if !r.coordinator.HasAccess(feature) {
			respondError(w, http.StatusPaymentRequired, "Feature not available in current plan")
			return nil, false
		}
	}
	return store, true
}

// listRecords returns every record of a collection, optionally filtered by a
// single data field via ?field=...&value=...
func (r *Router) listRecords(w http.ResponseWriter, req *http.Request) {
	store, ok := r.storeFor(w, req)
	if !ok {
		return
	}

	var (
		records []storage.Record
		err     error
	)
	if field := req.URL.Query().Get("field"); field != "" {
		records, err = store.GetByIndex(req.Context(), field, req.URL.Query().Get("value"))
	} else {
		records, err = store.GetAll(req.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// getRecord returns one record by id
func (r *Router) getRecord(w http.ResponseWriter, req *http.Request) {
	store, ok := r.storeFor(w, req)
	if !ok {
		return
	}

	record, err := store.GetByID(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "Record not found")
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// createRecord inserts a record and queues it for push
func (r *Router) createRecord(w http.ResponseWriter, req *http.Request) {
	store, ok := r.storeFor(w, req)
	if !ok {
		return
	}

	var data map[string]interface{}
	if err := json.NewDecoder(req.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	record, err := store.Create(req.Context(), data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// updateRecord merges a partial payload into a record
func (r *Router) updateRecord(w http.ResponseWriter, req *http.Request) {
	store, ok := r.storeFor(w, req)
	if !ok {
		return
	}

	var data map[string]interface{}
	if err := json.NewDecoder(req.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	record, err := store.Update(req.Context(), mux.Vars(req)["id"], data)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// deleteRecord removes a record and queues a remote delete when it has ever
// been synced
func (r *Router) deleteRecord(w http.ResponseWriter, req *http.Request) {
	store, ok := r.storeFor(w, req)
	if !ok {
		return
	}

	if err := store.Delete(req.Context(), mux.Vars(req)["id"]); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
