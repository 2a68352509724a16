package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations opens its own connection, applies every pending migration
// and returns the resulting schema version.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (uint, error) {
	gormDB, err := Connect(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}
	defer sqlDB.Close()

	return Migrate(sqlDB)
}

// Migrate applies the embedded migrations on an open connection. db stays
// open for the caller.
func Migrate(db *sql.DB) (uint, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty; fix it by hand and force the version", version)
	}
	return version, nil
}
