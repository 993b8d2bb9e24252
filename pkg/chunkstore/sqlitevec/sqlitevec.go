// Package sqlitevec provides a chunk store that keeps embeddings in a
// sqlite-vec vec0 virtual table. vec0 stores float32, so vectors read back
// are the float32 rounding of what was inserted and the store must be opened
// with AllowLossy.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

const defaultPageSize = 256

// Store implements chunkstore.Store using SQLite with sqlite-vec.
type Store struct {
	db         *sql.DB
	dimensions int
	locks      chunkstore.Locks
	logger     *slog.Logger
}

// Config holds configuration for the sqlite-vec store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the fixed dimensionality of every vector in the
	// database. vec0 tables are declared with it, so it must be configured
	// up front and cannot change for an existing database.
	Dimensions uint

	// AllowLossy acknowledges that vectors are narrowed to float32.
	AllowLossy bool
}

// NewStore creates a new sqlite-vec backed chunk store.
func NewStore(ctx context.Context, c Config, logger *slog.Logger) (*Store, error) {
	if !c.AllowLossy {
		return nil, chunkstore.ErrLossyNotAllowed
	}

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	s := &Store{
		db:         db,
		dimensions: int(c.Dimensions),
		logger:     logger,
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec chunk store initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vec_meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vec_collections (
			name TEXT PRIMARY KEY,
			next_id INTEGER NOT NULL DEFAULT 1
		)`,
		// vec0 virtual tables key rows by integer rowid, so chunks get a
		// global rowid that links them to their embedding.
		`CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id INTEGER NOT NULL,
			text TEXT NOT NULL,
			UNIQUE (collection, id)
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	var stored int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM vec_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO vec_meta(key, value) VALUES ('dimensions', ?)`, s.dimensions,
		); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	case stored != s.dimensions:
		return fmt.Errorf("database was created with %d dimensions, configured %d", stored, s.dimensions)
	}

	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) nextID(ctx context.Context, q queryer, name string) (int64, error) {
	var nextID int64
	err := q.QueryRowContext(ctx, `SELECT next_id FROM vec_collections WHERE name = ?`, name).Scan(&nextID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &chunkstore.CollectionNotFoundError{Name: name}
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return nextID, nil
}

// CreateCollection creates an empty collection.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	_, err := s.nextID(ctx, s.db, name)
	if err == nil {
		return &chunkstore.DuplicateCollectionError{Name: name}
	}
	if !errors.Is(err, chunkstore.ErrCollectionNotFound) {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO vec_collections(name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	return nil
}

// Insert stores the chunk text and its float32 embedding in one transaction.
func (s *Store) Insert(ctx context.Context, name, text string, vec vector.Vector) (uint64, error) {
	if vec.Dim() == 0 {
		return 0, &chunkstore.EmptyVectorError{Collection: name}
	}

	defer s.locks.Writer(name)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	nextID, err := s.nextID(ctx, tx, name)
	if err != nil {
		return 0, err
	}

	if vec.Dim() != s.dimensions {
		return 0, &vector.DimensionMismatchError{
			Collection: name,
			Expected:   s.dimensions,
			Actual:     vec.Dim(),
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO vec_chunks(collection, id, text) VALUES (?, ?, ?)`,
		name, nextID, text,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting chunk into %s: %w", name, err)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting rowid for chunk %d of %s: %w", nextID, name, err)
	}

	// Insert embedding into vec0 table with matching rowid
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
		rowID, serializeFloat32(vec.Float32()),
	); err != nil {
		return 0, fmt.Errorf("inserting embedding for chunk %d of %s: %w", nextID, name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vec_collections SET next_id = ? WHERE name = ?`, nextID+1, name,
	); err != nil {
		return 0, fmt.Errorf("advancing id counter for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return uint64(nextID), nil
}

// ListCollections returns all collection names, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vec_collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}

	return names, nil
}

// All pages through the collection by ascending ID, bounded by the last ID
// assigned when each iteration began.
func (s *Store) All(ctx context.Context, name string) (iter.Seq2[chunkstore.Chunk, error], error) {
	if _, err := s.nextID(ctx, s.db, name); err != nil {
		return nil, err
	}

	return func(yield func(chunkstore.Chunk, error) bool) {
		nextID, err := s.nextID(ctx, s.db, name)
		if err != nil {
			yield(chunkstore.Chunk{}, err)
			return
		}
		maxID := nextID - 1

		var after int64
		for after < maxID {
			page, err := s.page(ctx, name, after, maxID)
			if err != nil {
				yield(chunkstore.Chunk{}, err)
				return
			}
			if len(page) == 0 {
				return
			}

			for _, chunk := range page {
				if !yield(chunk, nil) {
					return
				}
			}
			after = int64(page[len(page)-1].ID)
		}
	}, nil
}

func (s *Store) page(ctx context.Context, name string, after, maxID int64) ([]chunkstore.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, id, text
		FROM vec_chunks
		WHERE collection = ? AND id > ? AND id <= ?
		ORDER BY id
		LIMIT ?
	`, name, after, maxID, defaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("reading chunks of %s: %w", name, err)
	}

	// Collect results first so we can close the rows cursor before
	// issuing additional queries (SQLite uses a single connection).
	type chunkRow struct {
		rowID int64
		id    int64
		text  string
	}
	var chunkRows []chunkRow

	for rows.Next() {
		var cr chunkRow
		if err := rows.Scan(&cr.rowID, &cr.id, &cr.text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunkRows = append(chunkRows, cr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	rows.Close()

	chunks := make([]chunkstore.Chunk, 0, len(chunkRows))
	for _, cr := range chunkRows {
		var blob []byte
		if err := s.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, cr.rowID,
		).Scan(&blob); err != nil {
			return nil, fmt.Errorf("reading embedding of chunk %d of %s: %w", cr.id, name, err)
		}

		values, err := deserializeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk %d of %s: %w", cr.id, name, err)
		}

		chunks = append(chunks, chunkstore.Chunk{
			ID:     uint64(cr.id),
			Text:   cr.text,
			Vector: vector.FromFloat32(values),
		})
	}

	return chunks, nil
}

// Info returns the collection's size. Dimensions is the configured
// dimensionality once the collection holds a chunk.
func (s *Store) Info(ctx context.Context, name string) (chunkstore.CollectionInfo, error) {
	nextID, err := s.nextID(ctx, s.db, name)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	info := chunkstore.CollectionInfo{
		Name: name,
		Size: int(nextID - 1),
	}
	if info.Size > 0 {
		info.Dimensions = s.dimensions
	}

	return info, nil
}

// DeleteCollection removes the collection, its chunks and their embeddings.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// vec0 tables do not take part in foreign keys, so embeddings are
	// removed by rowid first.
	rows, err := tx.QueryContext(ctx, `SELECT rowid FROM vec_chunks WHERE collection = ?`, name)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.locks.Forget(name)
	s.logger.Debug("deleted collection from sqlite-vec", "collection", name)
	return nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return s.db.Close()
}
