// Package sqlite provides a SQLite-backed chunk store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlstore"
)

// Store implements chunkstore.Store using SQLite.
type Store struct {
	*sqlstore.Store
}

// NewStore creates a new SQLite-backed chunk store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and SQLite
	// allows a single writer anyway.
	db.SetMaxOpenConns(1)

	// SQLite-specific pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store, err := sqlstore.New(ctx, db, dialect.SQLite, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("sqlite chunk store initialized", "db_path", dbPath)

	return &Store{Store: store}, nil
}
