package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/config"
	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/fieldfolio/fieldfoliogo/internal/storage"
	"github.com/fieldfolio/fieldfoliogo/internal/utils"
)

func main() {
	fmt.Println("🌱 Fieldfolio Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.AccountSettings{},
		&storage.Record{},
		&storage.QueueItem{},
		&models.SyncRun{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")

	// Check if data already exists
	var recordCount int64
	db.Model(&storage.Record{}).Count(&recordCount)
	if recordCount > 0 {
		fmt.Printf("⚠️  Database already has %d records. Clear it first? (y/N): ", recordCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE sync_queue CASCADE")
		db.Exec("TRUNCATE TABLE records CASCADE")
		fmt.Println("✅ Data cleared")
	}

	ctx := context.Background()
	fmt.Println("📦 Creating demo data...")

	// 1. Demo owner account with completed setup
	password, _ := utils.HashPassword("demo1234")
	owner := models.UserAuth{
		Email:    "owner@demo.fieldfolio.app",
		Password: password,
		Name:     "Demo Owner",
		Role:     "owner",
		IsActive: true,
	}
	if err := db.Where("email = ?", owner.Email).FirstOrCreate(&owner).Error; err != nil {
		log.Fatalf("❌ Failed to create demo owner: %v", err)
	}

	settings := models.AccountSettings{
		AccountID:      owner.ID,
		SetupCompleted: true,
		CompanyName:    "Brightside Plumbing",
		BusinessType:   "sole_proprietor",
		BusinessSector: "trades",
		Trials:         models.JSONB{},
		PaidFeatures:   models.JSONB{"invoicing": true},
	}
	db.Where("account_id = ?", owner.ID).FirstOrCreate(&settings)
	fmt.Printf("👤 Demo owner ready: %s (password demo1234)\n", owner.Email)

	// 2. Clients, projects and invoices through the local adapters so every
	// record lands in the push queue like a real offline session would.
	syncEnabled := func() bool { return true }
	clients := storage.NewLocalAdapter(db, "clients", syncEnabled)
	projects := storage.NewLocalAdapter(db, "projects", syncEnabled)
	invoices := storage.NewLocalAdapter(db, "invoices", syncEnabled)

	clientRec, err := clients.Create(ctx, map[string]interface{}{
		"name":           "Harbor View Cafe",
		"email":          "office@harborviewcafe.example",
		"phone":          "+1 555 0142",
		"is1099Eligible": false,
		"billingAddress": "12 Pier Road",
	})
	if err != nil {
		log.Fatalf("❌ Failed to create demo client: %v", err)
	}

	projectRec, err := projects.Create(ctx, map[string]interface{}{
		"name":     "Kitchen repipe",
		"clientId": clientRec.ID,
		"status":   "active",
		"notes":    "Two visits scheduled, parts on order",
	})
	if err != nil {
		log.Fatalf("❌ Failed to create demo project: %v", err)
	}

	_, err = invoices.Create(ctx, map[string]interface{}{
		"number":    "INV-1001",
		"clientId":  clientRec.ID,
		"projectId": projectRec.ID,
		"issuedAt":  time.Now().UTC().Format(time.RFC3339),
		"subtotal":  480.0,
		"taxRate":   8.5,
		"taxAmount": 40.8,
		"total":     520.8,
		"status":    "sent",
		"lineItems": []interface{}{
			map[string]interface{}{"description": "Repipe labor", "quantity": 6.0, "unitPrice": 70.0, "amount": 420.0},
			map[string]interface{}{"description": "Copper fittings", "quantity": 1.0, "unitPrice": 60.0, "amount": 60.0},
		},
	})
	if err != nil {
		log.Fatalf("❌ Failed to create demo invoice: %v", err)
	}

	var queued int64
	db.Model(&storage.QueueItem{}).Count(&queued)
	fmt.Printf("✅ Demo data created: 1 client, 1 project, 1 invoice (%d queue entries pending push)\n", queued)
}
