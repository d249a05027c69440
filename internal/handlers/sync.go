package handlers

import (
	"net/http"

	syncengine "github.com/fieldfolio/fieldfoliogo/internal/sync"
)

// syncStatus reports engine state, queue depth and the last run result
func (r *Router) syncStatus(w http.ResponseWriter, req *http.Request) {
	status := r.engine.Status()

	pending, err := r.engine.PendingCount(req.Context())
	if err == nil {
		status["pending_queue"] = pending
	}

	respondJSON(w, http.StatusOK, status)
}

// requestSync queues a pass; the worker runs it asynchronously
func (r *Router) requestSync(w http.ResponseWriter, req *http.Request, direction syncengine.Direction) {
	collection := req.URL.Query().Get("collection")
	if collection != "" {
		if _, ok := r.stores[collection]; !ok {
			respondError(w, http.StatusNotFound, "Unknown collection")
			return
		}
		r.engine.RequestCollectionSync(collection, direction)
	} else if direction == syncengine.DirectionFull {
		r.engine.RequestFullSync()
	} else {
		r.engine.RequestCollectionSync("", direction)
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":    "queued",
		"direction": string(direction),
	})
}

func (r *Router) syncPush(w http.ResponseWriter, req *http.Request) {
	r.requestSync(w, req, syncengine.DirectionPush)
}

func (r *Router) syncPull(w http.ResponseWriter, req *http.Request) {
	r.requestSync(w, req, syncengine.DirectionPull)
}

func (r *Router) syncFull(w http.ResponseWriter, req *http.Request) {
	r.requestSync(w, req, syncengine.DirectionFull)
}
