package main

import (
	"context"
	"errors"
	"log"
	"time"

	"forexBot/config"
	"forexBot/internal/adapters/logger"
	"forexBot/internal/adapters/sqlite"
	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/shopspring/decimal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	// 3. Open the database; the schema is created on open
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 4. Seed the account
	now := time.Now().UTC()
	seed := &domain.Account{
		ID:        cfg.SeedAccountID,
		Username:  cfg.SeedAccountID,
		Balance:   decimal.NewFromFloat(cfg.SeedBalance),
		Currency:  cfg.AccountCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = repo.CreateAccount(ctx, seed)
	switch {
	case errors.Is(err, ports.ErrDuplicateEntry):
		appLogger.Info(ctx, "Seed account already exists, leaving it untouched", map[string]interface{}{"accountID": seed.ID})
	case err != nil:
		appLogger.Error(ctx, err, "Failed to create seed account")
		log.Fatalf("Failed to create seed account: %v", err)
	default:
		appLogger.Info(ctx, "Seed account created", map[string]interface{}{
			"accountID": seed.ID, "balance": seed.Balance.String(), "currency": seed.Currency,
		})
	}
}
