package main

import (
	"log"
	"os"

	"ai-mediagen-be/internal/model"
	"ai-mediagen-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: Extensions & Enums (AutoMigrate does not create types)
	log.Println("Step 1: Setting up Extensions and Enums...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,

		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'credit_transaction_type') THEN CREATE TYPE credit_transaction_type AS ENUM ('GENERATION', 'REFUND', 'ADMIN_ADD', 'DAILY'); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'generation_status') THEN CREATE TYPE generation_status AS ENUM ('PROCESSING', 'COMPLETED', 'FAILED'); END IF; END $$;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate
	log.Println("Step 2: Running AutoMigrate...")

	models := []interface{}{
		&model.User{},
		&model.CreditTransaction{},
		&model.Generation{},
		&model.Image{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: indexes and views
	log.Println("Step 3: Creating Indexes and Views...")

	postMigrationSQL := []string{
		// At most one refund per generation.
		`CREATE UNIQUE INDEX IF NOT EXISTS credit_transactions_one_refund_per_generation
		 ON credit_transactions (related_id) WHERE type = 'REFUND';`,

		`CREATE INDEX IF NOT EXISTS generations_user_created_idx ON generations (user_id, created_at DESC);`,

		// View: ledger_drift lists users whose cached balance disagrees with the ledger.
		`CREATE OR REPLACE VIEW ledger_drift AS
		 SELECT u.id AS user_id, u.email, u.total_credits AS cached_balance,
		        COALESCE(SUM(ct.amount), 0) AS ledger_balance,
		        u.total_credits - COALESCE(SUM(ct.amount), 0) AS drift
		 FROM users u
		 LEFT JOIN credit_transactions ct ON ct.user_id = u.id
		 WHERE u.deleted_at IS NULL
		 GROUP BY u.id, u.email, u.total_credits
		 HAVING u.total_credits <> COALESCE(SUM(ct.amount), 0);`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
