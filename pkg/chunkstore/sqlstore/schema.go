package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
)

const (
	collectionsTable = "collections"
	chunksTable      = "chunks"
)

var schemas = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL DEFAULT 0,
			next_id INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			text TEXT NOT NULL,
			vector BLOB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL DEFAULT 0,
			next_id BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			id BIGINT NOT NULL,
			text TEXT NOT NULL,
			vector BYTEA NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
	},
}

// migrate creates the tables if they do not exist. The schema is append-only.
func migrate(ctx context.Context, db *sql.DB, dialectName string) error {
	stmts, ok := schemas[dialectName]
	if !ok {
		return fmt.Errorf("unsupported SQL dialect: %s", dialectName)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
