package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver for memory mode
)

// Open connects to the configured record store, verifies the connection,
// and applies the schema
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Type {
	case TypePostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres URL is required")
		}
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db.SetMaxOpenConns(cfg.PostgresMaxConns)
		db.SetMaxIdleConns(cfg.PostgresMinConns)
		db.SetConnMaxLifetime(cfg.MaxLifetime)
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	case TypeMemory, "":
		db, err = sql.Open("sqlite3", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// the in-memory database lives as long as its single connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	pingCtx := ctx
	if cfg.PostgresTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PostgresTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(pingCtx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
