package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus reports the schema version before and after a run.
type MigrationStatus struct {
	Before uint
	After  uint
	Dirty  bool
}

// Migrate applies all pending up migrations to databaseURL.
func Migrate(databaseURL string) (MigrationStatus, error) {
	var status MigrationStatus

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return status, fmt.Errorf("Migrate: sql.Open: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return status, fmt.Errorf("Migrate: driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return status, fmt.Errorf("Migrate: source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return status, fmt.Errorf("Migrate: NewWithInstance: %w", err)
	}

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return status, fmt.Errorf("Migrate: version before: %w", err)
	}
	status.Before = before

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return status, fmt.Errorf("Migrate: up: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return status, fmt.Errorf("Migrate: version after: %w", err)
	}
	status.After = after
	status.Dirty = dirty
	return status, nil
}
