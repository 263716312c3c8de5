package main

import (
	"context"
	"log"
	"os"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/pkg/serverutils"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/internal/service"
	"ai-mediagen-be/pkg/database"
	"ai-mediagen-be/pkg/provider"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type seedUser struct {
	Email    string
	FullName string
	Role     entity.UserRole
	Tier     entity.PlanTier
	Credits  int
}

// Seeded balances go through the credit service so every user starts with a
// matching ADMIN_ADD ledger row.
func main() {
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

	users := []seedUser{
		{Email: "admin@mediagen.local", FullName: "Admin", Role: entity.UserRoleAdmin, Tier: entity.PlanTierPremium, Credits: 1000},
		{Email: "free@mediagen.local", FullName: "Free User", Role: entity.UserRoleUser, Tier: entity.PlanTierFree, Credits: service.DefaultDailyAllotment},
		{Email: "premium@mediagen.local", FullName: "Premium User", Role: entity.UserRoleUser, Tier: entity.PlanTierPremium, Credits: 500},
	}

	secret := os.Getenv("JWT_SECRET")

	log.Println("Seeding users...")
	for _, u := range users {
		id, created, err := ensureUser(ctx, uowFactory, u)
		if err != nil {
			log.Printf("Error creating user '%s': %v", u.Email, err)
			continue
		}
		if created && u.Credits > 0 {
			if _, err := credits.AddCredits(ctx, id, &dto.AddCreditsRequest{Amount: u.Credits, Description: "Initial credits"}); err != nil {
				log.Printf("Error granting credits to '%s': %v", u.Email, err)
				continue
			}
		}
		if !created {
			log.Printf("User '%s' already exists, skipping...", u.Email)
		} else {
			log.Printf("Created user: %s (%s, %d credits)", u.Email, u.Tier, u.Credits)
		}

		if secret != "" {
			token, err := serverutils.GenerateToken(id, string(u.Role), secret, 30*24*time.Hour)
			if err == nil {
				log.Printf("  token: %s", token)
			}
		}
	}

	log.Println("Seeding completed!")
}

func ensureUser(ctx context.Context, uowFactory unitofwork.RepositoryFactory, u seedUser) (uuid.UUID, bool, error) {
	uow := uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: u.Email})
	if err != nil {
		return uuid.Nil, false, err
	}
	if existing != nil {
		return existing.Id, false, nil
	}

	user := &entity.User{
		Id:               uuid.New(),
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             u.Role,
		Status:           entity.UserStatusActive,
		PlanTier:         u.Tier,
		LastCreditUpdate: time.Now().UTC(),
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return uuid.Nil, false, err
	}
	return user.Id, true, nil
}
