package ch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"eventbot/migrations"
)

// Migrate applies the embedded ClickHouse migrations to the database at dsn
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return fmt.Errorf("failed to open ClickHouse: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	goose.SetBaseFS(migrations.ClickHouse)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "clickhouse"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
