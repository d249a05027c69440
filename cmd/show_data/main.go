package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fieldfolio/fieldfoliogo/internal/config"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Connect directly to the running embedded postgres
	dsn := "host=localhost user=postgres password=postgres dbname=fieldfolio port=5434 sslmode=disable client_encoding=UTF8"
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		fmt.Println("\n💡 Try starting the server first:")
		fmt.Println("   go run ./cmd/api/main.go")
		os.Exit(1)
	}

	fmt.Println("📊 Fieldfolio Data Report")
	fmt.Println("──────────────────────────────────────────────────────────")

	for _, collection := range config.SyncedCollections {
		var total, pending, conflicts int64
		db.Model(&storage.Record{}).Where("collection = ?", collection).Count(&total)
		db.Model(&storage.Record{}).Where("collection = ? AND sync_status = ?", collection, storage.StatusPendingPush).Count(&pending)
		db.Model(&storage.Record{}).Where("collection = ? AND sync_status = ?", collection, storage.StatusConflict).Count(&conflicts)
		fmt.Printf("  %-16s %4d records  (%d pending push, %d conflicts)\n", collection, total, pending, conflicts)
	}

	var queued int64
	db.Model(&storage.QueueItem{}).Count(&queued)
	fmt.Printf("\n⏳ Sync queue: %d entries\n", queued)

	if queued > 0 {
		var items []storage.QueueItem
		db.Order("created_at").Limit(20).Find(&items)
		fmt.Println("──────────────────────────────────────────────────────────")
		for _, item := range items {
			line := fmt.Sprintf("  %-7s %s/%s retries=%d", item.Operation, item.Collection, item.RecordID, item.RetryCount)
			if item.LastError != nil {
				line += fmt.Sprintf("  last error: %s", *item.LastError)
			}
			fmt.Println(line)
		}
	}

	var conflicted []storage.Record
	db.Where("sync_status = ?", storage.StatusConflict).Find(&conflicted)
	if len(conflicted) > 0 {
		fmt.Printf("\n⚠️  %d conflicted records\n", len(conflicted))
		fmt.Println("──────────────────────────────────────────────────────────")
		for _, rec := range conflicted {
			payload, _ := json.Marshal(rec.Data)
			fmt.Printf("  %s/%s  %s\n", rec.Collection, rec.ID, string(payload))
		}
	}
}
