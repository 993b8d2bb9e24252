// Package sqlstore implements chunkstore.Store on top of database/sql using
// ent's dialect-aware SQL builder. It backs both the sqlite and postgres
// chunk stores.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// DefaultPageSize is the number of chunks fetched per round trip by All.
const DefaultPageSize = 256

// Store implements chunkstore.Store over a SQL database.
type Store struct {
	DB       *sql.DB
	dialect  string
	pageSize int
	logger   *slog.Logger

	// mu makes create and delete exclusive with respect to inserts.
	// Inserts hold the read lock plus the collection's own mutex.
	mu      sync.RWMutex
	writers sync.Map // collection name -> *sync.Mutex
}

// New wraps an open database and creates the schema. dialectName is one of
// entgo.io/ent/dialect.SQLite or dialect.Postgres.
func New(ctx context.Context, db *sql.DB, dialectName string, logger *slog.Logger) (*Store, error) {
	if err := migrate(ctx, db, dialectName); err != nil {
		return nil, err
	}

	return &Store{
		DB:       db,
		dialect:  dialectName,
		pageSize: DefaultPageSize,
		logger:   logger,
	}, nil
}

// SetPageSize overrides the number of rows fetched per page by All.
func (s *Store) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) writer(name string) *sync.Mutex {
	m, _ := s.writers.LoadOrStore(name, &sync.Mutex{})
	return m.(*sync.Mutex)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// collectionRow reads the collection's bookkeeping row. lock requests a row
// lock where the dialect supports one.
func (s *Store) collectionRow(ctx context.Context, q queryer, name string, lock bool) (dims int, nextID int64, err error) {
	b := s.builder()
	selector := b.Select("dimensions", "next_id").
		From(b.Table(collectionsTable)).
		Where(entsql.EQ("name", name))
	if lock && s.dialect == dialect.Postgres {
		selector.ForUpdate()
	}

	query, args := selector.Query()
	err = q.QueryRowContext(ctx, query, args...).Scan(&dims, &nextID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, &chunkstore.CollectionNotFoundError{Name: name}
	}
	if err != nil {
		return 0, 0, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return dims, nextID, nil
}

// CreateCollection creates an empty collection.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, err := s.collectionRow(ctx, s.DB, name, false)
	if err == nil {
		return &chunkstore.DuplicateCollectionError{Name: name}
	}
	if !errors.Is(err, chunkstore.ErrCollectionNotFound) {
		return err
	}

	query, args := s.builder().Insert(collectionsTable).
		Columns("name", "dimensions", "next_id").
		Values(name, 0, 1).
		Query()
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Debug("created collection", "collection", name)
	return nil
}

// Insert appends a chunk inside a transaction that also advances the
// collection's next_id counter.
func (s *Store) Insert(ctx context.Context, name, text string, vec vector.Vector) (uint64, error) {
	if vec.Dim() == 0 {
		return 0, &chunkstore.EmptyVectorError{Collection: name}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.writer(name)
	w.Lock()
	defer w.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dims, nextID, err := s.collectionRow(ctx, tx, name, true)
	if err != nil {
		return 0, err
	}
	if dims != 0 && dims != vec.Dim() {
		return 0, &vector.DimensionMismatchError{
			Collection: name,
			Expected:   dims,
			Actual:     vec.Dim(),
		}
	}

	b := s.builder()
	query, args := b.Insert(chunksTable).
		Columns("collection", "id", "text", "vector").
		Values(name, nextID, text, EncodeVector(vec)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("inserting chunk into %s: %w", name, err)
	}

	query, args = b.Update(collectionsTable).
		Set("next_id", nextID+1).
		Set("dimensions", vec.Dim()).
		Where(entsql.EQ("name", name)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("advancing id counter for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return uint64(nextID), nil
}

// ListCollections returns all collection names, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	b := s.builder()
	query, args := b.Select("name").
		From(b.Table(collectionsTable)).
		OrderBy("name").
		Query()

	rows, err := s.DB.QueryContext(ctx, query, args...)
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

// All pages through the collection by ascending ID. Each iteration is bounded
// by the last ID assigned when that iteration began, so chunks inserted while
// ranging are not observed.
func (s *Store) All(ctx context.Context, name string) (iter.Seq2[chunkstore.Chunk, error], error) {
	if _, _, err := s.collectionRow(ctx, s.DB, name, false); err != nil {
		return nil, err
	}

	return func(yield func(chunkstore.Chunk, error) bool) {
		_, nextID, err := s.collectionRow(ctx, s.DB, name, false)
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

// page reads up to pageSize chunks with after < id <= maxID. Rows are fully
// drained before returning so no connection is held while the caller yields.
func (s *Store) page(ctx context.Context, name string, after, maxID int64) ([]chunkstore.Chunk, error) {
	b := s.builder()
	query, args := b.Select("id", "text", "vector").
		From(b.Table(chunksTable)).
		Where(entsql.And(
			entsql.EQ("collection", name),
			entsql.GT("id", after),
			entsql.LTE("id", maxID),
		)).
		OrderBy("id").
		Limit(s.pageSize).
		Query()

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading chunks of %s: %w", name, err)
	}
	defer rows.Close()

	chunks := make([]chunkstore.Chunk, 0, s.pageSize)
	for rows.Next() {
		var (
			id   int64
			text string
			blob []byte
		)
		if err := rows.Scan(&id, &text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk %d of %s: %w", id, name, err)
		}

		chunks = append(chunks, chunkstore.Chunk{
			ID:     uint64(id),
			Text:   text,
			Vector: vec,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// Info returns the collection's dimensionality and size.
func (s *Store) Info(ctx context.Context, name string) (chunkstore.CollectionInfo, error) {
	dims, nextID, err := s.collectionRow(ctx, s.DB, name, false)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	return chunkstore.CollectionInfo{
		Name:       name,
		Dimensions: dims,
		Size:       int(nextID - 1),
	}, nil
}

// DeleteCollection removes the collection and its chunks.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	b := s.builder()
	query, args := b.Delete(chunksTable).Where(entsql.EQ("collection", name)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", name, err)
	}

	query, args = b.Delete(collectionsTable).Where(entsql.EQ("name", name)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.writers.Delete(name)
	s.logger.Debug("deleted collection", "collection", name)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
