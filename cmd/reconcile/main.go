package main

import (
	"context"
	"flag"
	"log"
	"os"

	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/internal/service"
	"ai-mediagen-be/pkg/database"
	"ai-mediagen-be/pkg/provider"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// reconcile compares every user's cached balance with the sum of their ledger rows
// and exits non-zero when any of them drift.
func main() {
	verbose := flag.Bool("v", false, "print consistent users too")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(db)
	credits := service.NewCreditService(uowFactory, provider.NewRegistry(), nil, logger.NewNopLogger(), service.CreditOptions{})

	users, err := uowFactory.NewUnitOfWork(ctx).UserRepository().FindAll(ctx, specification.OrderBy{Field: "created_at"})
	if err != nil {
		log.Fatalf("Error: Failed to list users: %v", err)
	}

	color.Cyan("Reconciling %d users\n", len(users))

	drifted := 0
	for _, u := range users {
		res, err := credits.Reconcile(ctx, u.Id)
		if err != nil {
			color.Red("  %s  error: %v", u.Email, err)
			continue
		}
		if res.Consistent {
			if *verbose {
				color.Green("  %s  %d credits (%d rows)", u.Email, res.LedgerBalance, res.Transactions)
			}
			continue
		}
		drifted++
		color.Yellow("  %s  cached=%d ledger=%d drift=%+d", u.Email, res.CachedBalance, res.LedgerBalance, res.Drift)
	}

	if drifted > 0 {
		color.Red("\n%d of %d users drifted from the ledger", drifted, len(users))
		os.Exit(1)
	}
	color.Green("\nAll balances match the ledger")
}
