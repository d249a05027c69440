package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fieldfolio/fieldfoliogo/internal/ai"
	"github.com/fieldfolio/fieldfoliogo/internal/appstate"
	"github.com/fieldfolio/fieldfoliogo/internal/buildinfo"
	"github.com/fieldfolio/fieldfoliogo/internal/config"
	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/middleware"
	"github.com/fieldfolio/fieldfoliogo/internal/settings"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	syncengine "github.com/fieldfolio/fieldfoliogo/internal/sync"
	"github.com/fieldfolio/fieldfoliogo/internal/websocket"
	"github.com/gorilla/mux"
)

// Router wraps the mux router and the service dependencies
type Router struct {
	*mux.Router
	db          *database.DB
	cfg         *config.Config
	provider    *settings.Provider
	coordinator *appstate.Coordinator
	engine      *syncengine.Engine
	stores      map[string]storage.Adapter
	hub         *websocket.Hub
	gemini      *ai.GeminiClient
}

// Deps carries everything the router needs. Gemini may be nil when no API
// key is configured; the drafting endpoint then reports unavailable.
type Deps struct {
	DB          *database.DB
	Config      *config.Config
	Provider    *settings.Provider
	Coordinator *appstate.Coordinator
	Engine      *syncengine.Engine
	Stores      map[string]storage.Adapter
	Hub         *websocket.Hub
	Gemini      *ai.GeminiClient
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *Router {
	r := &Router{
		Router:      mux.NewRouter(),
		db:          deps.DB,
		cfg:         deps.Config,
		provider:    deps.Provider,
		coordinator: deps.Coordinator,
		engine:      deps.Engine,
		stores:      deps.Stores,
		hub:         deps.Hub,
		gemini:      deps.Gemini,
	}

	// Case-insensitive paths so QR-encoded URLs can use uppercase
	r.Use(middleware.CaseInsensitiveMiddleware)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// WebSocket endpoint for state/sync event fan-out
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(r.hub, w, req)
	})

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware)

	// App state routes
	api.HandleFunc("/appstate", r.getAppState).Methods("GET")
	api.HandleFunc("/appstate/refresh", r.refreshAppState).Methods("POST")
	api.HandleFunc("/appstate/setup", r.patchSetup).Methods("PATCH")
	api.HandleFunc("/appstate/setup/complete", r.completeSetup).Methods("POST")
	api.HandleFunc("/appstate/reset", r.resetAppState).Methods("POST")
	api.HandleFunc("/appstate/trial", r.startTrial).Methods("POST")
	api.HandleFunc("/appstate/subscribe", r.subscribe).Methods("POST")

	// Record routes, one generic CRUD surface per collection
	api.HandleFunc("/records/{collection}", r.listRecords).Methods("GET")
	api.HandleFunc("/records/{collection}", r.createRecord).Methods("POST")
	api.HandleFunc("/records/{collection}/{id}", r.getRecord).Methods("GET")
	api.HandleFunc("/records/{collection}/{id}", r.updateRecord).Methods("PUT")
	api.HandleFunc("/records/{collection}/{id}", r.deleteRecord).Methods("DELETE")

	// Sync routes
	api.HandleFunc("/sync/status", r.syncStatus).Methods("GET")
	api.HandleFunc("/sync/push", r.syncPush).Methods("POST")
	api.HandleFunc("/sync/pull", r.syncPull).Methods("POST")
	api.HandleFunc("/sync/full", r.syncFull).Methods("POST")

	// Document routes
	api.HandleFunc("/invoices/{id}/pdf", r.invoicePDF).Methods("GET")

	// AI drafting
	api.HandleFunc("/ai/draft", r.draftMessage).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"server":    "local",
		"commit":    buildinfo.CommitHash,
		"built":     buildinfo.BuildTime,
		"startedAt": buildinfo.StartTime,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
