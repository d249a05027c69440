// Package sync orchestrates push/pull passes over the hybrid adapters.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/config"
	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	"gorm.io/datatypes"
)

// Engine orchestrates all synchronization operations
type Engine struct {
	mu sync.RWMutex

	// Core components
	db       *database.DB
	config   *config.SyncConfig
	notifier Notifier

	// Hybrid adapters keyed by collection, walked in configured order
	adapters map[string]*storage.HybridAdapter
	order    []string

	// State
	isRunning      bool
	lastSync       time.Time
	lastResult     *Result
	syncInProgress bool

	// Channels
	stopChan chan struct{}
	syncChan chan Request
}

// NewEngine creates a new sync engine
func NewEngine(db *database.DB, cfg *config.SyncConfig, notifier Notifier) *Engine {
	return &Engine{
		db:       db,
		config:   cfg,
		notifier: notifier,
		adapters: make(map[string]*storage.HybridAdapter),
		stopChan: make(chan struct{}),
		syncChan: make(chan Request, 100),
	}
}

// Register adds a collection's hybrid adapter to the engine. Collections are
// synced in registration order.
func (e *Engine) Register(adapter *storage.HybridAdapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := adapter.Collection()
	if _, ok := e.adapters[name]; !ok {
		e.order = append(e.order, name)
	}
	e.adapters[name] = adapter
}

// Start starts the sync engine
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("sync engine already running")
	}

	e.isRunning = true
	log.Println("🔄 Sync Engine starting...")

	// Start sync worker
	go e.syncWorker()

	// Start auto-sync if enabled
	if e.config.AutoSyncEnabled {
		go e.autoSyncLoop()
	}

	// Sync on startup if enabled
	if e.config.SyncOnStartup {
		go func() {
			time.Sleep(5 * time.Second) // Wait for initialization
			e.RequestFullSync()
		}()
	}

	log.Println("✅ Sync Engine started")
	return nil
}

// Stop stops the sync engine
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isRunning {
		return
	}

	log.Println("🛑 Stopping Sync Engine...")
	e.isRunning = false
	close(e.stopChan)
	log.Println("✅ Sync Engine stopped")
}

// RequestFullSync requests a push followed by a pull for every collection
func (e *Engine) RequestFullSync() {
	log.Println("📥 Full sync requested")
	e.syncChan <- Request{Direction: DirectionFull, Priority: 10}
}

// RequestCollectionSync requests a pass for a single collection
func (e *Engine) RequestCollectionSync(collection string, direction Direction) {
	e.syncChan <- Request{Collection: collection, Direction: direction, Priority: 5}
}

// syncWorker processes sync requests
func (e *Engine) syncWorker() {
	for {
		select {
		case req := <-e.syncChan:
			e.processRequest(req)
		case <-e.stopChan:
			return
		}
	}
}

// processRequest processes a single sync request
func (e *Engine) processRequest(req Request) {
	e.mu.Lock()
	if e.syncInProgress {
		e.mu.Unlock()
		log.Println("⏳ Sync already in progress, dropping request")
		return
	}
	e.syncInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncInProgress = false
		e.mu.Unlock()
	}()

	start := time.Now()
	log.Printf("🔄 Processing sync request: %s %s", req.Direction, req.Collection)

	result := e.run(context.Background(), req)
	result.Duration = time.Since(start)

	log.Printf("✅ Sync completed in %v: %d pushed, %d pulled, %d conflicts, %d failed",
		result.Duration, result.Pushed, result.Pulled, result.Conflicts, result.Failed)

	e.mu.Lock()
	e.lastSync = time.Now()
	e.lastResult = result
	e.mu.Unlock()

	e.recordRun(req, result)

	if e.notifier != nil {
		event := "SYNC_COMPLETED"
		if !result.Success {
			event = "SYNC_FAILED"
		}
		e.notifier.BroadcastSyncEvent(event, result)
		if result.Conflicts > 0 {
			e.notifier.BroadcastSyncEvent("SYNC_CONFLICTS", map[string]int{"count": result.Conflicts})
		}
	}
}

// run walks the requested collections, pushing before pulling so local edits
// reach the cloud before remote rows can collide with them.
func (e *Engine) run(ctx context.Context, req Request) *Result {
	result := &Result{
		Success:   true,
		Direction: req.Direction,
		Timestamp: time.Now(),
	}

	for _, name := range e.collectionsFor(req) {
		e.mu.RLock()
		adapter := e.adapters[name]
		e.mu.RUnlock()
		if adapter == nil {
			continue
		}

		cr := CollectionResult{Collection: name}

		if req.Direction == DirectionPush || req.Direction == DirectionFull {
			push, err := adapter.Push(ctx)
			if err != nil {
				cr.Error = err.Error()
				result.Success = false
				log.Printf("⚠️ Error pushing %s: %v", name, err)
			}
			if push != nil {
				cr.Push = *push
				result.Pushed += push.Created + push.Updated + push.Deleted
				result.Failed += push.Failed
			}
		}

		if req.Direction == DirectionPull || req.Direction == DirectionFull {
			pull, err := adapter.Pull(ctx)
			if err != nil {
				cr.Error = err.Error()
				result.Success = false
				log.Printf("⚠️ Error pulling %s: %v", name, err)
			}
			if pull != nil {
				cr.Pull = *pull
				result.Pulled += pull.Added + pull.Updated
				result.Conflicts += pull.Conflicts
			}
		}

		result.Collections = append(result.Collections, cr)
	}

	if result.Failed > 0 {
		result.Success = false
	}
	return result
}

// collectionsFor resolves a request to the ordered collection list.
func (e *Engine) collectionsFor(req Request) []string {
	if req.Collection != "" {
		return []string{req.Collection}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.order))
	for _, name := range e.order {
		if cc, ok := e.config.Collections[name]; ok && !cc.Enabled {
			continue
		}
		names = append(names, name)
	}
	return names
}

// recordRun persists a history row for the status endpoint.
func (e *Engine) recordRun(req Request, result *Result) {
	counts, err := json.Marshal(map[string]int{
		"pushed":    result.Pushed,
		"pulled":    result.Pulled,
		"conflicts": result.Conflicts,
		"failed":    result.Failed,
	})
	if err != nil {
		return
	}

	run := models.SyncRun{
		Direction:  string(req.Direction),
		Collection: req.Collection,
		Counts:     datatypes.JSON(counts),
		StartedAt:  result.Timestamp,
		DurationMs: result.Duration.Milliseconds(),
	}
	if !result.Success {
		msg := "one or more collections failed"
		for _, cr := range result.Collections {
			if cr.Error != "" {
				msg = cr.Error
				break
			}
		}
		run.ErrorMessage = &msg
	}

	if err := e.db.Create(&run).Error; err != nil {
		log.Printf("⚠️ Could not record sync run: %v", err)
	}
}

// Status returns the current sync status
func (e *Engine) Status() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := map[string]interface{}{
		"is_running":       e.isRunning,
		"sync_in_progress": e.syncInProgress,
		"last_sync":        e.lastSync,
		"collections":      append([]string(nil), e.order...),
	}
	if e.lastResult != nil {
		status["last_result"] = e.lastResult
	}
	return status
}

// PendingCount reports the queue depth across all registered collections.
func (e *Engine) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&storage.QueueItem{}).Count(&count).Error
	return count, err
}

// autoSyncLoop periodically triggers automatic synchronization
func (e *Engine) autoSyncLoop() {
	ticker := time.NewTicker(time.Duration(e.config.AutoSyncInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.config.AutoSyncEnabled {
				log.Println("Auto-sync triggered")
				e.RequestFullSync()
			}
		case <-e.stopChan:
			return
		}
	}
}
