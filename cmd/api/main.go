package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/ai"
	"github.com/fieldfolio/fieldfoliogo/internal/appstate"
	"github.com/fieldfolio/fieldfoliogo/internal/config"
	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/handlers"
	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/fieldfolio/fieldfoliogo/internal/remote"
	"github.com/fieldfolio/fieldfoliogo/internal/settings"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	syncengine "github.com/fieldfolio/fieldfoliogo/internal/sync"
	"github.com/fieldfolio/fieldfoliogo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.AccountSettings{},

		// Record store and sync tables
		&storage.Record{},
		&storage.QueueItem{},
		&models.SyncRun{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. WebSocket hub for state and sync event fan-out
	hub := websocket.NewHub()
	go hub.Run()

	// 5. Settings provider and app-state coordinator
	provider := settings.NewProvider(db)
	purger := storage.NewPurger()

	coordinator := appstate.NewCoordinator(provider, purger, func(state appstate.State) {
		hub.BroadcastStateChange(string(state))
	})

	// 6. Storage adapters: local per collection, hybrid where sync applies
	syncCfg := config.LoadSyncConfig()
	syncEnabled := func() bool { return syncCfg.Enabled }

	var cloudClient *remote.Client
	if cfg.Remote.URL != "" {
		cloudClient = remote.NewClient(cfg.Remote.URL, cfg.Remote.Database, cfg.Remote.Username, cfg.Remote.APIKey)
		if _, err := cloudClient.Authenticate(); err != nil {
			log.Printf("⚠️ Remote backend authentication failed, starting offline: %v", err)
		}
	} else {
		log.Println("📴 No remote backend configured, running local-only")
	}

	engine := syncengine.NewEngine(db, syncCfg, hub)
	stores := make(map[string]storage.Adapter, len(config.SyncedCollections))

	for _, collection := range config.SyncedCollections {
		local := storage.NewLocalAdapter(db, collection, syncEnabled)

		if cloudClient == nil {
			stores[collection] = local
			continue
		}

		cloud, err := storage.NewCloudAdapter(cloudClient, collection)
		if err != nil {
			log.Fatalf("Failed to build cloud adapter for %s: %v", collection, err)
		}

		requiresAuth := true
		if cc, ok := syncCfg.Collections[collection]; ok {
			requiresAuth = cc.RequiresAuth
		}

		hybrid := storage.NewHybridAdapter(local, cloud, collection, requiresAuth, syncEnabled, provider.CurrentAccountID)
		engine.Register(hybrid)
		stores[collection] = hybrid
	}

	// Feature caches are purge targets for the app-state reset. Collections
	// that double as synced stores reuse their local adapter.
	for _, collection := range appstate.FeatureCacheCollections {
		purger.Register(collection, storage.NewLocalAdapter(db, collection, syncEnabled))
	}

	if syncCfg.Enabled && cloudClient != nil {
		if err := engine.Start(); err != nil {
			log.Printf("⚠️ Sync Engine: Failed to start: %v", err)
		}
	}

	// 7. Optional Gemini drafting client
	var gemini *ai.GeminiClient
	if cfg.Gemini.APIKey != "" {
		gemini, err = ai.NewGeminiClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Printf("⚠️ AI drafting disabled: %v", err)
			gemini = nil
		} else {
			log.Println("✅ AI drafting client ready")
		}
	}

	// 8. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		DB:          db,
		Config:      cfg,
		Provider:    provider,
		Coordinator: coordinator,
		Engine:      engine,
		Stores:      stores,
		Hub:         hub,
		Gemini:      gemini,
	})

	// 9. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s [%s]\n", cfg.Port, cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	engine.Stop()

	if gemini != nil {
		gemini.Close()
	}

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
