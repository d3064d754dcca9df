package migrations

import (
	"embed"
	"errors"
	"fmt"

	"ms-passes/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed sql
var migrationFiles embed.FS

// Runner applies the embedded schema migrations for the dialect of the given database.
type Runner struct {
	bunDB    *bun.DB
	logger   *logger.Logger
	source   source.Driver
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{bunDB: bunDB, logger: log}
}

func (r *Runner) dialectName() (string, error) {
	switch r.bunDB.Dialect().Name() {
	case dialect.PG:
		return "postgres", nil
	case dialect.SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("no migrations for dialect %s", r.bunDB.Dialect().Name())
	}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	name, err := r.dialectName()
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationFiles, "sql/"+name)
	if err != nil {
		return fmt.Errorf("failed to open embedded %s migrations: %w", name, err)
	}

	var driver database.Driver
	switch name {
	case "postgres":
		driver, err = postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	case "sqlite":
		driver, err = sqlite.WithInstance(r.bunDB.DB, &sqlite.Config{})
	}
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create %s migration driver: %w", name, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.source = src
	r.migrator = migrator
	return nil
}

// MigrateUp runs all pending migrations
func (r *Runner) MigrateUp() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	r.logger.LogDatabase("MIGRATE", "schema", fmt.Sprintf("version %d (dirty=%t)", version, dirty))
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	r.logger.LogDatabase("MIGRATE", "schema", "all migrations rolled back")
	return nil
}

// Version reports the applied schema version; 0 when nothing has been applied.
func (r *Runner) Version() (uint, bool, error) {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return 0, false, err
		}
	}

	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migration source. The database handle belongs to the caller
// and stays open; golang-migrate's sqlite driver would otherwise close it.
func (r *Runner) Close() error {
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			return fmt.Errorf("error closing migration source: %w", err)
		}
	}
	return nil
}

// Run applies every pending migration and releases the runner.
func Run(bunDB *bun.DB, log *logger.Logger) error {
	r := NewRunner(bunDB, log)
	defer r.Close()
	return r.MigrateUp()
}
