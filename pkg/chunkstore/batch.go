package chunkstore

import (
	"context"
	"fmt"

	"github.com/papercomputeco/stacks/pkg/vector"
)

// InsertBatch inserts entries into the named collection in order. It stops at
// the first failure and returns the number of entries written before it.
func InsertBatch(ctx context.Context, store Store, name string, entries []Entry) (int, error) {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if _, err := store.Insert(ctx, name, entry.Text, entry.Vector); err != nil {
			return i, fmt.Errorf("inserting entry %d into %s: %w", i, name, err)
		}
	}

	return len(entries), nil
}

// CheckEntries verifies that every entry has a non-empty vector of one shared
// dimensionality, and that it equals dims when dims is non-zero. It returns
// the shared dimensionality. Nothing is written, so callers can reject a
// batch before touching the collection.
func CheckEntries(name string, entries []Entry, dims int) (int, error) {
	for i, entry := range entries {
		if entry.Vector.Dim() == 0 {
			return 0, fmt.Errorf("entry %d: %w", i, &EmptyVectorError{Collection: name})
		}
		if dims == 0 {
			dims = entry.Vector.Dim()
			continue
		}
		if entry.Vector.Dim() != dims {
			return 0, fmt.Errorf("entry %d: %w", i, &vector.DimensionMismatchError{
				Collection: name,
				Expected:   dims,
				Actual:     entry.Vector.Dim(),
			})
		}
	}

	return dims, nil
}

// Recreate deletes the named collection if present and creates it empty.
// Re-ingesting a bucket always goes through Recreate since chunks are never
// updated in place.
func Recreate(ctx context.Context, store Store, name string) error {
	if err := store.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	if err := store.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	return nil
}

// Collect drains a collection into a slice.
func Collect(ctx context.Context, store Store, name string) ([]Chunk, error) {
	seq, err := store.All(ctx, name)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for chunk, err := range seq {
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
