package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

func setupGoose() error {
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect("postgres")
}

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, migrationsDir)
}

// Migrate runs a goose command ("up", "down" or "status") against the embedded migrations.
func Migrate(ctx context.Context, database *sql.DB, command string) error {
	switch command {
	case "up":
		return RunMigrations(ctx, database)
	case "down":
		if err := setupGoose(); err != nil {
			return err
		}
		return goose.Down(database, migrationsDir)
	case "status":
		if err := setupGoose(); err != nil {
			return err
		}
		return goose.Status(database, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
