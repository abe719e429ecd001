package main

// Run database migrations:
//   go run ./cmd/migrate            # up
//   go run ./cmd/migrate -cmd status

import (
	"context"
	"flag"
	"log"
	"os"

	"vendorquery-backend/internal/shared/config"
	"vendorquery-backend/internal/shared/storage/db"
)

func main() {
	command := flag.String("cmd", "up", "goose command: up, down or status")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, *command); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
}
