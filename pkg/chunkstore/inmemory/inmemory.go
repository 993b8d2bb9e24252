// Package inmemory provides a chunk store held entirely in process memory.
package inmemory

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// collection is a single bucket. Its chunks slice is append-only, so a
// prefix captured under the read lock stays valid after the lock is released.
type collection struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []chunkstore.Chunk
}

// Store implements chunkstore.Store using in-memory maps.
type Store struct {
	// mu guards the collections map. Per-collection state is guarded by
	// the collection's own lock so inserts into different buckets do not
	// contend.
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collection),
	}
}

// lookup must be called with s.mu held.
func (s *Store) lookup(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, &chunkstore.CollectionNotFoundError{Name: name}
	}
	return c, nil
}

// CreateCollection creates an empty collection.
func (s *Store) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return &chunkstore.DuplicateCollectionError{Name: name}
	}

	s.collections[name] = &collection{}
	return nil
}

// Insert appends a chunk to the collection.
// The store read lock is held for the whole insert so that a concurrent
// DeleteCollection of the same name waits for it.
func (s *Store) Insert(_ context.Context, name, text string, vec vector.Vector) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.lookup(name)
	if err != nil {
		return 0, err
	}

	if vec.Dim() == 0 {
		return 0, &chunkstore.EmptyVectorError{Collection: name}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dimensions != 0 && vec.Dim() != c.dimensions {
		return 0, &vector.DimensionMismatchError{
			Collection: name,
			Expected:   c.dimensions,
			Actual:     vec.Dim(),
		}
	}
	if c.dimensions == 0 {
		c.dimensions = vec.Dim()
	}

	id := uint64(len(c.chunks)) + 1
	c.chunks = append(c.chunks, chunkstore.Chunk{
		ID:     id,
		Text:   text,
		Vector: vec.Clone(),
	})

	return id, nil
}

// ListCollections returns all collection names, sorted.
func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}

// All returns every chunk in the collection in ascending ID order. Each
// iteration observes the chunks present when that iteration began.
func (s *Store) All(ctx context.Context, name string) (iter.Seq2[chunkstore.Chunk, error], error) {
	s.mu.RLock()
	c, err := s.lookup(name)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return func(yield func(chunkstore.Chunk, error) bool) {
		c.mu.RLock()
		snapshot := c.chunks[:len(c.chunks):len(c.chunks)]
		c.mu.RUnlock()

		for _, chunk := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(chunkstore.Chunk{}, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}, nil
}

// Info returns the collection's dimensionality and size.
func (s *Store) Info(_ context.Context, name string) (chunkstore.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.lookup(name)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return chunkstore.CollectionInfo{
		Name:       name,
		Dimensions: c.dimensions,
		Size:       len(c.chunks),
	}, nil
}

// DeleteCollection removes the collection. Missing collections are ignored.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
