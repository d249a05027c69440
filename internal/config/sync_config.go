package config

import (
	"encoding/json"
	"log"
	"os"
)

// SyncConfig holds synchronization configuration
type SyncConfig struct {
	Enabled          bool `json:"enabled"`
	AutoSyncEnabled  bool `json:"auto_sync_enabled"`
	AutoSyncInterval int  `json:"auto_sync_interval"` // seconds
	SyncOnStartup    bool `json:"sync_on_startup"`
	MaxRetries       int  `json:"max_retries"`

	Collections map[string]CollectionSyncConfig `json:"collections"`
}

// CollectionSyncConfig holds sync configuration for one collection
type CollectionSyncConfig struct {
	Enabled      bool `json:"enabled"`
	RequiresAuth bool `json:"requires_auth"`
	Priority     int  `json:"priority"` // 1-10, where 10 = highest
}

// SyncedCollections are the record collections mirrored to the hosted
// backend, in the order pushes run (referenced records first).
var SyncedCollections = []string{
	"clients",
	"projects",
	"invoices",
	"mileage_entries",
	"appointments",
	"service_items",
}

// LoadSyncConfig loads sync configuration from a JSON file, falling back to
// defaults when SYNC_CONFIG_PATH is unset or unreadable.
func LoadSyncConfig() *SyncConfig {
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		cfg, err := loadSyncConfigFromFile(configPath)
		if err == nil {
			return cfg
		}
		log.Printf("⚠️ Sync config: could not load %s (%v), using defaults", configPath, err)
	}
	return getDefaultSyncConfig()
}

func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getDefaultSyncConfig() *SyncConfig {
	collections := make(map[string]CollectionSyncConfig, len(SyncedCollections))
	for _, name := range SyncedCollections {
		collections[name] = CollectionSyncConfig{
			Enabled:      true,
			RequiresAuth: true,
			Priority:     5,
		}
	}

	return &SyncConfig{
		Enabled:          true,
		AutoSyncEnabled:  true,
		AutoSyncInterval: 300,
		SyncOnStartup:    true,
		MaxRetries:       3,
		Collections:      collections,
	}
}
