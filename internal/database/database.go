package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-passes/internal/config"
	"ms-passes/internal/logger"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RetryDelay is the pause between connection attempts.
var RetryDelay = 2 * time.Second

// Open connects to the configured database, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	driverName := "postgres"
	if cfg.Driver == "sqlite" {
		driverName = sqliteshim.ShimName
	}

	attempts := max(1, cfg.ConnRetries)
	var (
		sqldb *sql.DB
		err   error
	)
	for i := 0; i < attempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, attempts))

		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(RetryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, attempts, err)
	}

	var bunDB *bun.DB
	switch cfg.Driver {
	case "sqlite":
		// One writer at a time; also keeps in-memory databases alive.
		sqldb.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	log.Info("DATABASE", fmt.Sprintf("%s connection successful", cfg.Driver))
	return bunDB, nil
}
